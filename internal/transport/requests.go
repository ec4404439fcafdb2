package transport

// Typed headers for the request and response envelopes the offload protocol
// defines. Every request embeds Meta; the dispatcher fills in the type,
// correlation id, and frame map before sending.

// TranslateRequest asks a worker to translate text into one or more target
// languages.
type TranslateRequest struct {
	Meta
	Text            string   `json:"text"`
	SourceLanguage  string   `json:"source_language"`
	TargetLanguages []string `json:"target_languages"`
	SpeakerID       string   `json:"speaker_id,omitempty"`
}

// TranslateResult carries the per-language translations back.
type TranslateResult struct {
	Meta
	Translations map[string]string `json:"translations"`
	Error        string            `json:"error,omitempty"`
}

// AudioProcessRequest submits audio for the full dub path: transcription,
// translation, and synthesis in the speaker's cloned voice. The audio rides
// in a binary frame referenced by the frame map; InlineAudio is the base64
// fallback for tiny payloads.
type AudioProcessRequest struct {
	Meta
	SourceLanguage  string   `json:"source_language"`
	TargetLanguages []string `json:"target_languages"`
	SpeakerID       string   `json:"speaker_id,omitempty"`
	SampleRate      int      `json:"sample_rate,omitempty"`
	InlineAudio     string   `json:"audio,omitempty"`
}

// AudioProcessResult returns the synthesized audio (binary frame) plus the
// intermediate transcript and translations.
type AudioProcessResult struct {
	Meta
	Transcript     string            `json:"transcript,omitempty"`
	Translations   map[string]string `json:"translations,omitempty"`
	DurationMS     int64             `json:"duration_ms,omitempty"`
	FailedSegments []int             `json:"failed_segments,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// TranscribeOnlyRequest asks for a transcript without translation or
// synthesis.
type TranscribeOnlyRequest struct {
	Meta
	SourceLanguage string `json:"source_language,omitempty"`
	SampleRate     int    `json:"sample_rate,omitempty"`
	InlineAudio    string `json:"audio,omitempty"`
}

// TranscribeOnlyResult carries the transcript and word timings.
type TranscribeOnlyResult struct {
	Meta
	Transcript string      `json:"transcript"`
	Words      []TimedWord `json:"words,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// TimedWord is one recognized word with its offsets in milliseconds.
type TimedWord struct {
	Word    string `json:"word"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// Voice API operations. An empty operation means synthesize.
const (
	VoiceOpSynthesize = "synthesize"
	VoiceOpAnalyze    = "analyze"
	VoiceOpVerify     = "verify"
	VoiceOpCompare    = "compare"
)

// VoiceAPIRequest covers the voice operations: synthesis from text, vocal
// analysis of a clip, speaker verification against a stored profile, and
// clip-to-clip comparison. For synthesis a voice-profile binary frame
// overrides VoiceName; for compare the second clip rides in that frame
// slot instead.
type VoiceAPIRequest struct {
	Meta
	Operation   string  `json:"operation,omitempty"`
	Text        string  `json:"text,omitempty"`
	Language    string  `json:"language,omitempty"`
	VoiceName   string  `json:"voice_name,omitempty"`
	SpeakerID   string  `json:"speaker_id,omitempty"`
	Speed       float64 `json:"speed,omitempty"`
	InlineAudio string  `json:"audio,omitempty"`
}

// VoiceMetrics summarizes the vocal characteristics of one audio clip.
type VoiceMetrics struct {
	PitchMeanHz     float64 `json:"pitch_mean_hz"`
	PitchStdHz      float64 `json:"pitch_std_hz"`
	PitchMinHz      float64 `json:"pitch_min_hz"`
	PitchMaxHz      float64 `json:"pitch_max_hz"`
	VoiceType       string  `json:"voice_type"`
	BrightnessHz    float64 `json:"brightness_hz"`
	EnergyMean      float64 `json:"energy_mean"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
}

// VoiceSimilarity scores how closely two clips match, per metric and as a
// weighted overall score in [0,1].
type VoiceSimilarity struct {
	Pitch      float64 `json:"pitch_similarity"`
	Brightness float64 `json:"brightness_similarity"`
	Energy     float64 `json:"energy_similarity"`
	Overall    float64 `json:"overall_similarity"`
}

// VoiceAPIResult answers a voice operation. Synthesis returns audio in a
// binary frame; the analysis operations fill the metric fields instead.
type VoiceAPIResult struct {
	Meta
	Operation  string           `json:"operation,omitempty"`
	DurationMS int64            `json:"duration_ms,omitempty"`
	SampleRate int              `json:"sample_rate,omitempty"`
	Metrics    *VoiceMetrics    `json:"metrics,omitempty"`
	Reference  *VoiceMetrics    `json:"reference_metrics,omitempty"`
	Similarity *VoiceSimilarity `json:"similarity,omitempty"`
	Verified   *bool            `json:"verified,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// VoiceProfileRequest builds a reusable voice profile from reference audio.
type VoiceProfileRequest struct {
	Meta
	SpeakerID   string `json:"speaker_id"`
	Language    string `json:"language,omitempty"`
	InlineAudio string `json:"audio,omitempty"`
}

// VoiceProfileResult returns the serialized profile in a binary frame.
type VoiceProfileResult struct {
	Meta
	SpeakerID string `json:"speaker_id"`
	Error     string `json:"error,omitempty"`
}

// TranscriptionCompletedEvent announces the transcription stage of a dub
// job finishing; subscribers see it before the final response.
type TranscriptionCompletedEvent struct {
	Meta
	Transcript string `json:"transcript"`
	Segments   int    `json:"segments"`
}

// JobCompletedEvent announces a finished dub job to every subscriber.
type JobCompletedEvent struct {
	Meta
	TargetLanguage string `json:"target_language"`
	DurationMS     int64  `json:"duration_ms"`
	FailedSegments []int  `json:"failed_segments,omitempty"`
	OutputPath     string `json:"output_path,omitempty"`
}

// PingRequest probes worker liveness.
type PingRequest struct {
	Meta
}

// PongResult acknowledges a ping.
type PongResult struct {
	Meta
	Uptime int64 `json:"uptime_seconds,omitempty"`
}
