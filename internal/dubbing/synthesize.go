package dubbing

import (
	"context"
	"path/filepath"
	"strings"

	"redub/internal/services"
	"redub/internal/tts"
)

// Synthesizer renders one speaker's full translated utterance as one
// continuous audio stream in that speaker's voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, speakerID, text, language string) (SpeakerAudio, error)
}

// EngineSynthesizer synthesizes through a serialized tts.Engine. Callers may
// invoke it concurrently from per-speaker pipelines; the engine's own lock
// sequences the native calls.
type EngineSynthesizer struct {
	engine   *tts.Engine
	workDir  string
	profiles VoiceProfileResolver
}

// VoiceProfileResolver maps a speaker id to a voice profile path, or ""
// when no profile exists and the backend's default voice applies.
type VoiceProfileResolver func(speakerID string) string

// NewEngineSynthesizer builds a synthesizer writing renders under workDir.
func NewEngineSynthesizer(engine *tts.Engine, workDir string, profiles VoiceProfileResolver) *EngineSynthesizer {
	if profiles == nil {
		profiles = func(string) string { return "" }
	}
	return &EngineSynthesizer{engine: engine, workDir: workDir, profiles: profiles}
}

// Synthesize issues exactly one render call for the speaker. A failure here
// is this speaker's alone; the caller isolates it from other speakers.
func (s *EngineSynthesizer) Synthesize(ctx context.Context, speakerID, text, language string) (SpeakerAudio, error) {
	if strings.TrimSpace(text) == "" {
		return SpeakerAudio{}, services.Wrap(services.ErrInvalidRequest, "synthesize", "speaker",
			"empty text for speaker "+speakerID, nil)
	}
	result, err := s.engine.Render(ctx, tts.RenderRequest{
		Text:             text,
		Language:         language,
		SpeakerID:        speakerID,
		VoiceProfilePath: s.profiles(speakerID),
		OutputPath:       filepath.Join(s.workDir, "speaker_"+sanitize(speakerID)+".wav"),
	})
	if err != nil {
		return SpeakerAudio{}, err
	}
	return SpeakerAudio{
		SpeakerID:  speakerID,
		AudioPath:  result.AudioPath,
		DurationMS: result.DurationMS,
	}, nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
