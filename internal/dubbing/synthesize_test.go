package dubbing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"redub/internal/services"
	"redub/internal/tts"
)

type stubRenderer struct {
	lastReq tts.RenderRequest
	err     error
}

func (r *stubRenderer) Render(_ context.Context, req tts.RenderRequest) (tts.RenderResult, error) {
	r.lastReq = req
	if r.err != nil {
		return tts.RenderResult{}, r.err
	}
	return tts.RenderResult{AudioPath: req.OutputPath, DurationMS: 1234}, nil
}

func TestEngineSynthesizerRendersSpeaker(t *testing.T) {
	renderer := &stubRenderer{}
	engine := tts.NewEngine("cpu", renderer)
	synthesizer := NewEngineSynthesizer(engine, t.TempDir(), func(speakerID string) string {
		return "/profiles/" + speakerID + ".npz"
	})

	audio, err := synthesizer.Synthesize(context.Background(), "s1", "Bonjour tout le monde", "fr")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if audio.SpeakerID != "s1" || audio.DurationMS != 1234 {
		t.Errorf("audio = %+v", audio)
	}
	if renderer.lastReq.VoiceProfilePath != "/profiles/s1.npz" {
		t.Errorf("voice profile = %q", renderer.lastReq.VoiceProfilePath)
	}
	if !strings.Contains(renderer.lastReq.OutputPath, "speaker_s1") {
		t.Errorf("output path = %q", renderer.lastReq.OutputPath)
	}
}

func TestEngineSynthesizerRejectsEmptyText(t *testing.T) {
	engine := tts.NewEngine("cpu", &stubRenderer{})
	synthesizer := NewEngineSynthesizer(engine, t.TempDir(), nil)
	if _, err := synthesizer.Synthesize(context.Background(), "s1", "   ", "fr"); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("error = %v, want invalid request", err)
	}
}

func TestEngineSynthesizerSanitizesSpeakerID(t *testing.T) {
	renderer := &stubRenderer{}
	engine := tts.NewEngine("cpu", renderer)
	synthesizer := NewEngineSynthesizer(engine, t.TempDir(), nil)
	if _, err := synthesizer.Synthesize(context.Background(), "user/../etc", "text", "en"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if strings.Contains(renderer.lastReq.OutputPath, "..") {
		t.Errorf("unsanitized output path %q", renderer.lastReq.OutputPath)
	}
}
