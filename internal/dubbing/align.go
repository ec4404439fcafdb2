package dubbing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"redub/internal/logging"
	"redub/internal/media"
	"redub/internal/services"
)

// WordTranscriber re-transcribes rendered audio with word-level timestamps.
type WordTranscriber interface {
	TranscribeWords(ctx context.Context, audioPath, language string) ([]Word, error)
}

// AlignerConfig tunes forced alignment and duration recovery.
type AlignerConfig struct {
	// SimilarityThreshold is the minimum fuzzy word-match score for a
	// segment boundary to be trusted.
	SimilarityThreshold float64
	// DurationTolerancePct is how far (percent) a slice's duration may
	// deviate from the original segment before time-stretching kicks in.
	DurationTolerancePct float64
	// MaxStretchRatio bounds the tempo correction in either direction.
	MaxStretchRatio float64
}

// Aligner recovers per-segment boundaries from a speaker's continuous
// render: it re-transcribes the render, fuzzy-matches each original
// segment's expected translated words against the next unconsumed
// transcript words, slices the audio at the matched word timestamps, and
// time-stretches slices whose duration drifted past tolerance.
type Aligner struct {
	transcriber WordTranscriber
	toolkit     *media.Toolkit
	cfg         AlignerConfig
	workDir     string
	logger      *slog.Logger
}

// matchLookahead is how many transcript words past the cursor the aligner
// scans for a segment's first word before declaring the segment lost.
const matchLookahead = 5

// NewAligner builds an aligner writing segment slices under workDir.
func NewAligner(transcriber WordTranscriber, toolkit *media.Toolkit, cfg AlignerConfig, workDir string, logger *slog.Logger) *Aligner {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.7
	}
	if cfg.DurationTolerancePct <= 0 {
		cfg.DurationTolerancePct = 10
	}
	if cfg.MaxStretchRatio <= 1 {
		cfg.MaxStretchRatio = 2
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aligner{transcriber: transcriber, toolkit: toolkit, cfg: cfg, workDir: workDir, logger: logger}
}

// Resegment slices one speaker's continuous render back into the original
// segment boundaries. A segment whose words cannot be matched is marked
// failed rather than guessed at; the remaining segments still resolve.
// Failure to re-transcribe the render fails the whole speaker.
func (a *Aligner) Resegment(ctx context.Context, audio SpeakerAudio, group SpeakerText, translation SpeakerTranslation) ([]SegmentResult, error) {
	words, err := a.transcriber.TranscribeWords(ctx, audio.AudioPath, "")
	if err != nil {
		return nil, services.Wrap(services.ErrAlignment, "aligner", "transcribe",
			"re-transcription of render failed for speaker "+audio.SpeakerID, err)
	}

	results := make([]SegmentResult, 0, len(group.Segments))
	cursor := 0
	for i, segment := range group.Segments {
		result := SegmentResult{
			OrderIndex:      segment.OrderIndex,
			SpeakerID:       segment.SpeakerID,
			OriginalStartMS: segment.StartMS,
			OriginalEndMS:   segment.EndMS,
		}
		expected := expectedWords(translation, i)
		first, last, ok := a.match(words, cursor, expected)
		if !ok {
			result.Err = services.Wrap(services.ErrAlignment, "aligner", "match",
				fmt.Sprintf("no word match for segment %d", segment.OrderIndex), nil)
			a.logger.Warn("segment alignment failed",
				logging.String(logging.FieldComponent, "aligner"),
				logging.String(logging.FieldSpeakerID, segment.SpeakerID),
				slog.Int("order_index", segment.OrderIndex))
			results = append(results, result)
			continue
		}
		cursor = last + 1

		sliced, err := a.slice(ctx, audio, segment, words[first].StartMS, words[last].EndMS)
		if err != nil {
			result.Err = err
			results = append(results, result)
			continue
		}
		result.AudioPath = sliced.path
		result.DurationMS = sliced.durationMS
		result.Success = true
		results = append(results, result)
	}
	return results, nil
}

type slicedSegment struct {
	path       string
	durationMS int64
}

// slice extracts [startMS, endMS) from the render and corrects its tempo
// when the duration drifted past tolerance.
func (a *Aligner) slice(ctx context.Context, audio SpeakerAudio, segment Segment, startMS, endMS int64) (slicedSegment, error) {
	sliceDur := endMS - startMS
	if sliceDur <= 0 {
		return slicedSegment{}, services.Wrap(services.ErrAlignment, "aligner", "slice",
			fmt.Sprintf("degenerate slice bounds %d..%dms for segment %d", startMS, endMS, segment.OrderIndex), nil)
	}
	path := filepath.Join(a.workDir, fmt.Sprintf("segment_%04d.wav", segment.OrderIndex))
	if err := a.toolkit.Slice(ctx, audio.AudioPath, startMS, sliceDur, path); err != nil {
		return slicedSegment{}, services.Wrap(services.ErrExternalTool, "aligner", "slice", "ffmpeg slice failed", err)
	}

	target := segment.DurationMS()
	if target <= 0 {
		return slicedSegment{path: path, durationMS: sliceDur}, nil
	}
	drift := math.Abs(float64(sliceDur-target)) / float64(target) * 100
	if drift <= a.cfg.DurationTolerancePct {
		return slicedSegment{path: path, durationMS: sliceDur}, nil
	}

	ratio := float64(sliceDur) / float64(target)
	if ratio > a.cfg.MaxStretchRatio || ratio < 1/a.cfg.MaxStretchRatio {
		return slicedSegment{}, services.Wrap(services.ErrDurationDrift, "aligner", "stretch",
			fmt.Sprintf("segment %d needs tempo %.2f, beyond safe ratio %.2f", segment.OrderIndex, ratio, a.cfg.MaxStretchRatio), nil)
	}
	stretched := filepath.Join(a.workDir, fmt.Sprintf("segment_%04d_fit.wav", segment.OrderIndex))
	if err := a.toolkit.TimeStretch(ctx, path, ratio, stretched); err != nil {
		return slicedSegment{}, services.Wrap(services.ErrExternalTool, "aligner", "stretch", "ffmpeg time-stretch failed", err)
	}
	return slicedSegment{path: stretched, durationMS: target}, nil
}

// match finds expected's words among the transcript words at or after
// cursor. The first expected word may appear up to matchLookahead positions
// past the cursor; subsequent words are paired in order and the mean
// similarity across pairs must clear the threshold.
func (a *Aligner) match(words []Word, cursor int, expected []string) (first, last int, ok bool) {
	if len(expected) == 0 || cursor >= len(words) {
		return 0, 0, false
	}
	start := -1
	limit := min(cursor+matchLookahead, len(words)-1)
	for i := cursor; i <= limit; i++ {
		if wordSimilarity(words[i].Text, expected[0]) >= a.cfg.SimilarityThreshold {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, 0, false
	}
	count := min(len(expected), len(words)-start)
	var total float64
	for i := 0; i < count; i++ {
		total += wordSimilarity(words[start+i].Text, expected[i])
	}
	if total/float64(count) < a.cfg.SimilarityThreshold {
		return 0, 0, false
	}
	return start, start + count - 1, true
}

// expectedWords returns the translated words hinted at by segment i's
// rescaled span, snapped outward to whole words.
func expectedWords(translation SpeakerTranslation, i int) []string {
	if i >= len(translation.Spans) {
		return nil
	}
	text := translation.TranslatedText
	span := translation.Spans[i]
	start := snapRuneBoundary(text, span.Start)
	end := snapRuneBoundary(text, span.End)
	// Widen to word boundaries so a span cutting mid-word still yields the
	// whole word.
	for start > 0 && !isWordGap(text, start) {
		start--
	}
	for end < len(text) && !isWordGap(text, end) {
		end++
	}
	return strings.Fields(text[start:end])
}

func snapRuneBoundary(text string, i int) int {
	if i < 0 {
		return 0
	}
	if i > len(text) {
		return len(text)
	}
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func isWordGap(text string, i int) bool {
	if i <= 0 || i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	prev, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsSpace(r) || unicode.IsSpace(prev)
}

// wordSimilarity scores two words in [0,1], tolerant of punctuation and
// casing, using a normalized edit distance.
func wordSimilarity(a, b string) float64 {
	a = normalizeWord(a)
	b = normalizeWord(b)
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	longest := max(len(ra), len(rb))
	return 1 - float64(editDistance(ra, rb))/float64(longest)
}

func normalizeWord(w string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(w) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

func editDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
