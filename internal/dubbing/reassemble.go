package dubbing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"redub/internal/logging"
	"redub/internal/media"
	"redub/internal/services"
)

// Reassembler restores chronological order across speakers and concatenates
// segment slices into the final dub. This explicit sort on OrderIndex is
// the only ordering guarantee in the pipeline.
type Reassembler struct {
	toolkit  *media.Toolkit
	maxGapMS int64
	workDir  string
	logger   *slog.Logger
}

// NewReassembler builds a reassembler. maxGapMS caps inserted silences so
// clock skew in source timestamps cannot produce pathological gaps.
func NewReassembler(toolkit *media.Toolkit, maxGapMS int64, workDir string, logger *slog.Logger) *Reassembler {
	if maxGapMS <= 0 {
		maxGapMS = 3000
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reassembler{toolkit: toolkit, maxGapMS: maxGapMS, workDir: workDir, logger: logger}
}

// Assemble sorts results by OrderIndex, skips failed segments, inserts a
// silence between consecutive segments sized to the gap between their
// source timestamps, and concatenates everything into outputPath. Failed
// segments are reported, never silently dropped.
func (r *Reassembler) Assemble(ctx context.Context, results []SegmentResult, outputPath string) (FinalDub, error) {
	ordered := make([]SegmentResult, len(results))
	copy(ordered, results)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].OrderIndex < ordered[j].OrderIndex })

	var kept []SegmentResult
	var failed []int
	for _, result := range ordered {
		if result.Success {
			kept = append(kept, result)
		} else {
			failed = append(failed, result.OrderIndex)
		}
	}
	if len(kept) == 0 {
		return FinalDub{}, services.Wrap(services.ErrValidation, "reassembler", "assemble",
			"no successful segments to assemble", nil)
	}

	var sources []string
	var total int64
	for i, segment := range kept {
		if i > 0 {
			gap := r.gapBetween(kept[i-1], segment)
			if gap > 0 {
				silencePath := filepath.Join(r.workDir, fmt.Sprintf("gap_%04d.wav", segment.OrderIndex))
				if err := r.toolkit.Silence(ctx, gap, silencePath); err != nil {
					return FinalDub{}, services.Wrap(services.ErrExternalTool, "reassembler", "silence",
						fmt.Sprintf("generate %dms gap before segment %d", gap, segment.OrderIndex), err)
				}
				sources = append(sources, silencePath)
				total += gap
			}
		}
		sources = append(sources, segment.AudioPath)
		total += segment.DurationMS
	}

	if err := r.toolkit.Concat(ctx, sources, outputPath); err != nil {
		return FinalDub{}, services.Wrap(services.ErrExternalTool, "reassembler", "concat", "final concatenation failed", err)
	}
	if len(failed) > 0 {
		r.logger.Warn("assembled partial dub",
			logging.String(logging.FieldComponent, "reassembler"),
			slog.Int("segments", len(kept)),
			slog.Any("failed_indices", failed))
	}
	return FinalDub{AudioPath: outputPath, DurationMS: total, FailedSegments: failed}, nil
}

// gapBetween sizes the silence between two consecutive kept segments from
// their original timestamps, clamped to [0, maxGapMS].
func (r *Reassembler) gapBetween(prev, next SegmentResult) int64 {
	gap := next.OriginalStartMS - prev.OriginalEndMS
	if gap < 0 {
		return 0
	}
	if gap > r.maxGapMS {
		return r.maxGapMS
	}
	return gap
}
