package config

const (
	defaultWorkDir   = "~/.local/share/redub/work"
	defaultOutputDir = "~/.local/share/redub/output"
	defaultLogDir    = "~/.local/share/redub/logs"
	defaultModelsDir = "~/.local/share/redub/models"
	defaultASRCache  = "~/.local/share/redub/cache/asr"

	defaultPushBind = "tcp://127.0.0.1:5755"
	defaultPubBind  = "tcp://127.0.0.1:5756"

	defaultMaxRetries              = 3
	defaultInitialDelayMS          = 100
	defaultMaxDelayMS              = 1000
	defaultBackoffMultiplier       = 2.0
	defaultCircuitFailureThreshold = 0.5
	defaultCircuitWindowSize       = 20
	defaultCircuitCooldownMS       = 30000
	defaultRequestTimeoutMS        = 120000
	defaultSweepIntervalMS         = 5000
	defaultMaxFrameMB              = 64
	defaultInlineAudioLimitBytes   = 32 * 1024

	defaultMaxReassemblyGapMS          = 3000
	defaultSegmentDurationTolerancePct = 10.0
	defaultAlignSimilarityThreshold    = 0.7
	defaultMaxStretchRatio             = 2.0

	defaultASRModel = "large-v3-turbo"

	defaultTranslatorBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslatorModel   = "google/gemini-3-flash-preview"
	defaultTranslatorTimeout = 60

	defaultPreferredBackend       = "chatterbox"
	defaultModelDownloadTimeoutMS = 600000
	defaultModelBaseURL           = "https://huggingface.co"

	defaultJobPollInterval   = 5
	defaultHeartbeatInterval = 15

	defaultNtfyTimeoutSec = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			ModelsDir: defaultModelsDir,
		},
		Transport: Transport{
			PushBind:                defaultPushBind,
			PubBind:                 defaultPubBind,
			MaxRetries:              defaultMaxRetries,
			InitialDelayMS:          defaultInitialDelayMS,
			MaxDelayMS:              defaultMaxDelayMS,
			BackoffMultiplier:       defaultBackoffMultiplier,
			CircuitFailureThreshold: defaultCircuitFailureThreshold,
			CircuitWindowSize:       defaultCircuitWindowSize,
			CircuitCooldownMS:       defaultCircuitCooldownMS,
			RequestTimeoutMS:        defaultRequestTimeoutMS,
			SweepIntervalMS:         defaultSweepIntervalMS,
			MaxFrameMB:              defaultMaxFrameMB,
			InlineAudioLimitBytes:   defaultInlineAudioLimitBytes,
		},
		Dubbing: Dubbing{
			MaxReassemblyGapMS:          defaultMaxReassemblyGapMS,
			SegmentDurationTolerancePct: defaultSegmentDurationTolerancePct,
			AlignSimilarityThreshold:    defaultAlignSimilarityThreshold,
			MaxStretchRatio:             defaultMaxStretchRatio,
		},
		ASR: ASR{
			Model:    defaultASRModel,
			CacheDir: defaultASRCache,
		},
		Translator: Translator{
			BaseURL:        defaultTranslatorBaseURL,
			Model:          defaultTranslatorModel,
			TimeoutSeconds: defaultTranslatorTimeout,
		},
		TTS: TTS{
			PreferredBackend:       defaultPreferredBackend,
			ModelDownloadTimeoutMS: defaultModelDownloadTimeoutMS,
			ModelBaseURL:           defaultModelBaseURL,
			Devices:                []string{"cpu"},
		},
		Workflow: Workflow{
			JobPollInterval:   defaultJobPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
		},
		Notifications: Notifications{
			RequestTimeoutSec: defaultNtfyTimeoutSec,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
