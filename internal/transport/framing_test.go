package transport

import (
	"bytes"
	"errors"
	"testing"

	"redub/internal/services"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		header string
		frames [][]byte
	}{
		{name: "header only", header: `{"type":"ping"}`},
		{name: "single binary frame", header: `{"type":"audio_process"}`, frames: [][]byte{{0x01, 0x02, 0x03}}},
		{name: "multiple frames", header: `{"type":"voice_api"}`, frames: [][]byte{{0xAA}, {0xBB, 0xCC}, {}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			in := Envelope{Header: []byte(tc.header), Frames: tc.frames}
			if err := writeEnvelope(&buf, in); err != nil {
				t.Fatalf("writeEnvelope: %v", err)
			}
			out, err := readEnvelope(&buf, 0)
			if err != nil {
				t.Fatalf("readEnvelope: %v", err)
			}
			if string(out.Header) != tc.header {
				t.Errorf("header = %q, want %q", out.Header, tc.header)
			}
			if len(out.Frames) != len(tc.frames) {
				t.Fatalf("frames = %d, want %d", len(out.Frames), len(tc.frames))
			}
			for i := range tc.frames {
				if !bytes.Equal(out.Frames[i], tc.frames[i]) {
					t.Errorf("frame %d = %v, want %v", i, out.Frames[i], tc.frames[i])
				}
			}
		})
	}
}

func TestReadEnvelopeFrameLimit(t *testing.T) {
	var buf bytes.Buffer
	env := Envelope{Header: []byte(`{"type":"ping"}`), Frames: [][]byte{make([]byte, 128)}}
	if err := writeEnvelope(&buf, env); err != nil {
		t.Fatalf("writeEnvelope: %v", err)
	}
	if _, err := readEnvelope(&buf, 64); err == nil {
		t.Fatal("expected oversized frame to be rejected")
	} else if !errors.Is(err, services.ErrTransport) {
		t.Errorf("error = %v, want transport marker", err)
	}
}

func TestReadEnvelopeTruncated(t *testing.T) {
	var buf bytes.Buffer
	env := Envelope{Header: []byte(`{"type":"ping"}`), Frames: [][]byte{{1, 2, 3, 4}}}
	if err := writeEnvelope(&buf, env); err != nil {
		t.Fatalf("writeEnvelope: %v", err)
	}
	wire := buf.Bytes()
	if _, err := readEnvelope(bytes.NewReader(wire[:len(wire)-2]), 0); err == nil {
		t.Fatal("expected truncated stream to fail")
	}
}

func TestFrameMapAccess(t *testing.T) {
	env := Envelope{
		Header: []byte(`{"type":"audio_process","frame_map":{"audio":1,"voiceProfile":2}}`),
		Frames: [][]byte{{0x01}, {0x02}},
	}
	audio, err := env.AudioFrame()
	if err != nil {
		t.Fatalf("AudioFrame: %v", err)
	}
	if !bytes.Equal(audio, []byte{0x01}) {
		t.Errorf("audio frame = %v", audio)
	}
	profile, err := env.VoiceProfileFrame()
	if err != nil {
		t.Fatalf("VoiceProfileFrame: %v", err)
	}
	if !bytes.Equal(profile, []byte{0x02}) {
		t.Errorf("voice profile frame = %v", profile)
	}

	bad := Envelope{Header: []byte(`{"type":"audio_process","frame_map":{"audio":3}}`), Frames: [][]byte{{0x01}}}
	if _, err := bad.AudioFrame(); err == nil {
		t.Fatal("expected out-of-range frame index to fail")
	}
}

func TestInlineAudioRoundTrip(t *testing.T) {
	data := []byte{0x00, 0x10, 0xFF, 0x42}
	decoded, err := DecodeInlineAudio(InlineAudio(data))
	if err != nil {
		t.Fatalf("DecodeInlineAudio: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("decoded = %v, want %v", decoded, data)
	}
	if _, err := DecodeInlineAudio("not base64!!"); err == nil {
		t.Fatal("expected invalid base64 to fail")
	}
}
