package config

import (
	_ "embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	ModelsDir string `toml:"models_dir"`
}

// Transport contains the socket binds and the retry/circuit-breaker policy
// applied to every outbound request.
type Transport struct {
	PushBind string `toml:"push_bind"`
	PubBind  string `toml:"pub_bind"`

	MaxRetries              int     `toml:"max_retries"`
	InitialDelayMS          int     `toml:"initial_delay_ms"`
	MaxDelayMS              int     `toml:"max_delay_ms"`
	BackoffMultiplier       float64 `toml:"backoff_multiplier"`
	CircuitFailureThreshold float64 `toml:"circuit_failure_threshold"`
	CircuitWindowSize       int     `toml:"circuit_window_size"`
	CircuitCooldownMS       int     `toml:"circuit_cooldown_ms"`
	RequestTimeoutMS        int     `toml:"request_timeout_ms"`
	SweepIntervalMS         int     `toml:"sweep_interval_ms"`
	MaxFrameMB              int     `toml:"max_frame_mb"`
	InlineAudioLimitBytes   int     `toml:"inline_audio_limit_bytes"`
}

// Dubbing contains tuning for the multi-speaker dubbing pipeline.
type Dubbing struct {
	MaxReassemblyGapMS          int     `toml:"max_reassembly_gap_ms"`
	SegmentDurationTolerancePct float64 `toml:"segment_duration_tolerance_pct"`
	AlignSimilarityThreshold    float64 `toml:"align_similarity_threshold"`
	MaxStretchRatio             float64 `toml:"max_stretch_ratio"`
}

// ASR contains configuration for the transcription service.
type ASR struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	CacheDir    string `toml:"cache_dir"`
}

// Translator contains connection settings for the translation service.
type Translator struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains configuration for the speech-synthesis engine.
type TTS struct {
	PreferredBackend       string   `toml:"preferred_backend"`
	ModelDownloadTimeoutMS int      `toml:"model_download_timeout_ms"`
	ModelBaseURL           string   `toml:"model_base_url"`
	Devices                []string `toml:"devices"`
}

// Workflow contains daemon timing intervals.
type Workflow struct {
	JobPollInterval   int `toml:"job_poll_interval"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
}

// Notifications contains settings for ntfy push notifications. An empty
// topic disables notifications entirely.
type Notifications struct {
	NtfyTopic         string `toml:"ntfy_topic"`
	RequestTimeoutSec int    `toml:"request_timeout_sec"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration for the redub daemon and CLI.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transport     Transport     `toml:"transport"`
	Dubbing       Dubbing       `toml:"dubbing"`
	ASR           ASR           `toml:"asr"`
	Translator    Translator    `toml:"translator"`
	TTS           TTS           `toml:"tts"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/redub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, statErr := os.Stat(expanded)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", statErr)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	info, statErr := os.Stat(defaultPath)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", statErr)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", defaultPath)
	}
	return defaultPath, true, nil
}

// WriteSample writes the embedded sample configuration to the provided path.
// It refuses to overwrite an existing file unless force is set.
func WriteSample(path string, force bool) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if !force {
		if _, statErr := os.Stat(expanded); statErr == nil {
			return "", fmt.Errorf("config file already exists at %s", expanded)
		} else if !os.IsNotExist(statErr) {
			return "", fmt.Errorf("stat config: %w", statErr)
		}
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), fs.FileMode(0o644)); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.ModelsDir, c.ASR.CacheDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the control socket location for the daemon.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "redubd.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "redubd.lock")
}

// JobDBPath returns the job-tracking database location.
func (c *Config) JobDBPath() string {
	return filepath.Join(c.Paths.LogDir, "jobs.db")
}

// LogFilePath returns the daemon log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "redub.log")
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
