package dubbing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"redub/internal/media"
	"redub/internal/services"
)

func newTestReassembler(t *testing.T, log *commandLog, maxGapMS int64) (*Reassembler, string) {
	t.Helper()
	dir := t.TempDir()
	toolkit := media.NewToolkit("", "").WithRunner(log.runner)
	return NewReassembler(toolkit, maxGapMS, dir, nil), dir
}

func result(orderIndex int, speaker string, startMS, endMS, durationMS int64, success bool) SegmentResult {
	r := SegmentResult{
		OrderIndex:      orderIndex,
		SpeakerID:       speaker,
		OriginalStartMS: startMS,
		OriginalEndMS:   endMS,
		DurationMS:      durationMS,
		Success:         success,
	}
	if success {
		r.AudioPath = "seg.wav"
	} else {
		r.Err = errors.New("failed upstream")
	}
	return r
}

func TestAssembleRestoresChronologicalOrder(t *testing.T) {
	log := &commandLog{}
	reassembler, dir := newTestReassembler(t, log, 3000)

	// Results arrive out of order, as per-speaker pipelines finish.
	results := []SegmentResult{
		result(2, "s1", 1500, 2200, 700, true),
		result(0, "s1", 0, 600, 600, true),
		result(1, "s0", 700, 1400, 700, true),
	}
	out := filepath.Join(dir, "final.wav")
	dub, err := reassembler.Assemble(context.Background(), results, out)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if dub.AudioPath != out {
		t.Errorf("audio path = %s", dub.AudioPath)
	}
	// 600 + 100 gap + 700 + 100 gap + 700.
	if dub.DurationMS != 2200 {
		t.Errorf("duration = %dms, want 2200", dub.DurationMS)
	}
	if len(dub.FailedSegments) != 0 {
		t.Errorf("failed segments = %v", dub.FailedSegments)
	}
	if got := log.containing("anullsrc"); got != 2 {
		t.Errorf("silence invocations = %d, want 2", got)
	}
	if got := log.containing("-f concat"); got != 1 {
		t.Errorf("concat invocations = %d, want 1", got)
	}
}

func TestAssembleCapsSilenceGaps(t *testing.T) {
	log := &commandLog{}
	reassembler, dir := newTestReassembler(t, log, 3000)

	// 50 seconds of source-clock gap between segments must clamp to 3s.
	results := []SegmentResult{
		result(0, "s0", 0, 1000, 1000, true),
		result(1, "s0", 51000, 52000, 1000, true),
	}
	dub, err := reassembler.Assemble(context.Background(), results, filepath.Join(dir, "final.wav"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if dub.DurationMS != 1000+3000+1000 {
		t.Errorf("duration = %dms, want 5000", dub.DurationMS)
	}
	if got := log.containing("-t 3.000"); got != 1 {
		t.Errorf("capped silence invocations = %d, want 1", got)
	}
}

func TestAssembleSkipsFailedSegments(t *testing.T) {
	log := &commandLog{}
	reassembler, dir := newTestReassembler(t, log, 3000)

	results := []SegmentResult{
		result(0, "s0", 0, 500, 500, true),
		result(1, "s1", 600, 1100, 0, false),
		result(2, "s0", 1200, 1700, 500, true),
	}
	dub, err := reassembler.Assemble(context.Background(), results, filepath.Join(dir, "final.wav"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(dub.FailedSegments) != 1 || dub.FailedSegments[0] != 1 {
		t.Errorf("failed segments = %v, want [1]", dub.FailedSegments)
	}
	// Gap spans from segment 0's end to segment 2's start: 700ms.
	if dub.DurationMS != 500+700+500 {
		t.Errorf("duration = %dms, want 1700", dub.DurationMS)
	}
}

func TestAssembleAllFailed(t *testing.T) {
	reassembler, dir := newTestReassembler(t, &commandLog{}, 3000)
	results := []SegmentResult{
		result(0, "s0", 0, 500, 0, false),
		result(1, "s1", 600, 1100, 0, false),
	}
	if _, err := reassembler.Assemble(context.Background(), results, filepath.Join(dir, "final.wav")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Assemble error = %v, want validation marker", err)
	}
}

func TestAssembleOverlappingTimestampsNoNegativeGap(t *testing.T) {
	log := &commandLog{}
	reassembler, dir := newTestReassembler(t, log, 3000)
	results := []SegmentResult{
		result(0, "s0", 0, 1000, 1000, true),
		result(1, "s1", 900, 1900, 1000, true), // overlaps previous
	}
	dub, err := reassembler.Assemble(context.Background(), results, filepath.Join(dir, "final.wav"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if dub.DurationMS != 2000 {
		t.Errorf("duration = %dms, want 2000 with no silence", dub.DurationMS)
	}
	if got := log.containing("anullsrc"); got != 0 {
		t.Errorf("silence invocations = %d, want 0", got)
	}
}
