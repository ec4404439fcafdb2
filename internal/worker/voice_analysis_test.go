package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/transport"
)

// sineWAV renders a mono 16-bit PCM sine tone.
func sineWAV(t *testing.T, freqHz float64, durationMS, sampleRate int) []byte {
	t.Helper()
	n := sampleRate * durationMS / 1000
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func TestAnalyzeVoiceFileSineTone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, sineWAV(t, 220, 200, 16000), 0o644); err != nil {
		t.Fatal(err)
	}
	metrics, err := analyzeVoiceFile(path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if metrics.SampleRate != 16000 {
		t.Errorf("sample rate = %d", metrics.SampleRate)
	}
	if math.Abs(metrics.DurationSeconds-0.2) > 0.01 {
		t.Errorf("duration = %.3fs, want 0.2s", metrics.DurationSeconds)
	}
	if metrics.PitchMeanHz < 210 || metrics.PitchMeanHz > 230 {
		t.Errorf("pitch = %.1fHz, want ~220Hz", metrics.PitchMeanHz)
	}
	if metrics.VoiceType != "High (female/child)" {
		t.Errorf("voice type = %q", metrics.VoiceType)
	}
	if metrics.EnergyMean <= 0 || metrics.BrightnessHz <= 0 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestAnalyzeVoiceFileRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := analyzeVoiceFile(path); err == nil {
		t.Fatal("expected malformed audio error")
	}
}

func TestVoiceAPIAnalyzeOperation(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, t.TempDir(), nil, nil)
	clip := sineWAV(t, 220, 200, 16000)
	req := transport.VoiceAPIRequest{
		Meta: transport.Meta{
			Type:          transport.TypeVoiceAPI,
			CorrelationID: "voice-1",
			FrameMap:      &transport.FrameMap{Audio: 1, AudioSize: len(clip)},
		},
		Operation: transport.VoiceOpAnalyze,
	}
	env, _ := transport.Seal(&req, clip)
	response, err := h.VoiceAPI(context.Background(), env)
	if err != nil {
		t.Fatalf("voice api: %v", err)
	}
	var result transport.VoiceAPIResult
	if err := response.Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Operation != transport.VoiceOpAnalyze || result.Metrics == nil {
		t.Fatalf("result = %+v", result)
	}
	if result.Metrics.PitchMeanHz < 210 || result.Metrics.PitchMeanHz > 230 {
		t.Errorf("pitch = %.1fHz, want ~220Hz", result.Metrics.PitchMeanHz)
	}
}

func TestVoiceAPIVerifyOperation(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, t.TempDir(), nil, nil)
	reference := sineWAV(t, 220, 200, 16000)
	if _, err := h.profiles.Save("s1", reference); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	verify := func(clip []byte) transport.VoiceAPIResult {
		t.Helper()
		req := transport.VoiceAPIRequest{
			Meta: transport.Meta{
				Type:     transport.TypeVoiceAPI,
				FrameMap: &transport.FrameMap{Audio: 1, AudioSize: len(clip)},
			},
			Operation: transport.VoiceOpVerify,
			SpeakerID: "s1",
		}
		env, _ := transport.Seal(&req, clip)
		response, err := h.VoiceAPI(context.Background(), env)
		if err != nil {
			t.Fatalf("voice api: %v", err)
		}
		var result transport.VoiceAPIResult
		if err := response.Decode(&result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return result
	}

	same := verify(sineWAV(t, 220, 200, 16000))
	if same.Verified == nil || !*same.Verified {
		t.Fatalf("matching clip not verified: %+v", same)
	}
	if same.Similarity == nil || same.Similarity.Overall < 0.9 {
		t.Fatalf("similarity = %+v", same.Similarity)
	}

	other := verify(sineWAV(t, 100, 200, 16000))
	if other.Verified == nil || *other.Verified {
		t.Fatalf("mismatched clip verified: %+v", other)
	}
}

func TestVoiceAPIVerifyUnknownSpeaker(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, t.TempDir(), nil, nil)
	clip := sineWAV(t, 220, 100, 16000)
	req := transport.VoiceAPIRequest{
		Meta: transport.Meta{
			Type:     transport.TypeVoiceAPI,
			FrameMap: &transport.FrameMap{Audio: 1, AudioSize: len(clip)},
		},
		Operation: transport.VoiceOpVerify,
		SpeakerID: "nobody",
	}
	env, _ := transport.Seal(&req, clip)
	if _, err := h.VoiceAPI(context.Background(), env); err == nil {
		t.Fatal("expected missing profile error")
	}
}

func TestVoiceAPICompareOperation(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, t.TempDir(), nil, nil)
	clip := sineWAV(t, 220, 200, 16000)
	reference := sineWAV(t, 220, 200, 16000)
	req := transport.VoiceAPIRequest{
		Meta: transport.Meta{
			Type: transport.TypeVoiceAPI,
			FrameMap: &transport.FrameMap{
				Audio: 1, AudioSize: len(clip),
				VoiceProfile: 2, VoiceProfileSize: len(reference),
			},
		},
		Operation: transport.VoiceOpCompare,
	}
	env, _ := transport.Seal(&req, clip, reference)
	response, err := h.VoiceAPI(context.Background(), env)
	if err != nil {
		t.Fatalf("voice api: %v", err)
	}
	var result transport.VoiceAPIResult
	if err := response.Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Similarity == nil || result.Similarity.Overall < 0.95 {
		t.Fatalf("similarity = %+v", result.Similarity)
	}
	if result.Metrics == nil || result.Reference == nil {
		t.Fatalf("result = %+v", result)
	}
}

func TestVoiceAPIUnknownOperation(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, t.TempDir(), nil, nil)
	req := transport.VoiceAPIRequest{
		Meta:      transport.Meta{Type: transport.TypeVoiceAPI},
		Operation: "forecast",
	}
	env, _ := transport.Seal(&req)
	if _, err := h.VoiceAPI(context.Background(), env); err == nil {
		t.Fatal("expected unknown operation error")
	}
}
