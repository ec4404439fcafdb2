package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"redub/internal/services"
)

// Type identifies the job or event a wire envelope carries.
type Type string

const (
	TypeTranslate      Type = "translate"
	TypeAudioProcess   Type = "audio_process"
	TypeTranscribeOnly Type = "transcribe_only"
	TypeVoiceAPI       Type = "voice_api"
	TypeVoiceProfile   Type = "voice_profile"
	TypePing           Type = "ping"
	TypePong           Type = "pong"

	// Unsolicited event published when a worker finishes transcribing an
	// attachment that nobody is synchronously waiting on.
	TypeTranscriptionCompleted Type = "transcription_completed"
	TypeJobCompleted           Type = "job_completed"
	TypeError                  Type = "error"
)

// ResultType returns the response type paired with a request type.
func ResultType(t Type) Type {
	return t + "_result"
}

// FrameMap records which binary frame holds which payload. Frame indices are
// 1-based: frame 0 is always the JSON header.
type FrameMap struct {
	Audio            int    `json:"audio,omitempty"`
	AudioMimeType    string `json:"audioMimeType,omitempty"`
	AudioSize        int    `json:"audioSize,omitempty"`
	VoiceProfile     int    `json:"voiceProfile,omitempty"`
	VoiceProfileSize int    `json:"voiceProfileSize,omitempty"`
}

// Meta is the portion of the JSON header every envelope shares. Typed request
// and response payloads embed it so the router can classify an inbound
// envelope without knowing its full shape.
type Meta struct {
	Type          Type      `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	FrameMap      *FrameMap `json:"frame_map,omitempty"`
}

// EnvelopeMeta returns the shared header fields, satisfying the payload
// interface used by the dispatcher.
func (m *Meta) EnvelopeMeta() *Meta { return m }

// Payload is any typed header that embeds Meta.
type Payload interface {
	EnvelopeMeta() *Meta
}

// Envelope is one logical wire message: a JSON header frame followed by zero
// or more binary frames. Binary payloads are referenced from the header by
// frame index only, never inlined.
type Envelope struct {
	Header []byte
	Frames [][]byte
}

// Meta decodes the shared header fields from the envelope's JSON frame.
func (e *Envelope) Meta() (Meta, error) {
	var meta Meta
	if err := json.Unmarshal(e.Header, &meta); err != nil {
		return Meta{}, services.Wrap(services.ErrTransport, "envelope", "decode", "malformed header", err)
	}
	if meta.Type == "" {
		return Meta{}, services.Wrap(services.ErrTransport, "envelope", "decode", "header missing type", nil)
	}
	return meta, nil
}

// Decode unmarshals the full JSON header into the provided payload struct.
func (e *Envelope) Decode(payload any) error {
	if err := json.Unmarshal(e.Header, payload); err != nil {
		return services.Wrap(services.ErrTransport, "envelope", "decode", "malformed payload", err)
	}
	return nil
}

// AudioFrame returns the binary audio frame referenced by the frame map.
func (e *Envelope) AudioFrame() ([]byte, error) {
	meta, err := e.Meta()
	if err != nil {
		return nil, err
	}
	return e.frameAt(meta.FrameMap, func(fm *FrameMap) int { return fm.Audio }, "audio")
}

// VoiceProfileFrame returns the binary voice-profile frame referenced by the
// frame map, or nil if the envelope carries none.
func (e *Envelope) VoiceProfileFrame() ([]byte, error) {
	meta, err := e.Meta()
	if err != nil {
		return nil, err
	}
	if meta.FrameMap == nil || meta.FrameMap.VoiceProfile == 0 {
		return nil, nil
	}
	return e.frameAt(meta.FrameMap, func(fm *FrameMap) int { return fm.VoiceProfile }, "voice profile")
}

func (e *Envelope) frameAt(fm *FrameMap, index func(*FrameMap) int, name string) ([]byte, error) {
	if fm == nil {
		return nil, services.Wrap(services.ErrTransport, "envelope", "frame", fmt.Sprintf("no frame map for %s frame", name), nil)
	}
	idx := index(fm)
	if idx < 1 || idx > len(e.Frames) {
		return nil, services.Wrap(services.ErrTransport, "envelope", "frame", fmt.Sprintf("%s frame index %d out of range (%d frames)", name, idx, len(e.Frames)), nil)
	}
	return e.Frames[idx-1], nil
}

// Seal marshals a typed payload into an envelope, assigning frame-map
// indices for the provided binary frames. frames[0] becomes wire frame 1.
func Seal(payload Payload, frames ...[]byte) (Envelope, error) {
	header, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, services.Wrap(services.ErrTransport, "envelope", "encode", "marshal header", err)
	}
	return Envelope{Header: header, Frames: frames}, nil
}

// InlineAudio encodes small audio payloads as base64 text for the legacy
// inline path. It is a fallback only; the dispatcher uses binary frames for
// anything above the configured inline limit.
func InlineAudio(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeInlineAudio reverses InlineAudio.
func DecodeInlineAudio(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "envelope", "decode", "inline audio", err)
	}
	return data, nil
}
