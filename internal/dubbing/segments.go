package dubbing

// Segment is one diarized transcript segment. OrderIndex is the
// authoritative chronological position across all speakers; no stage other
// than the reassembler's final sort may assume its inputs arrive in that
// order.
type Segment struct {
	Text       string
	SpeakerID  string
	StartMS    int64
	EndMS      int64
	OrderIndex int
}

// DurationMS is the segment's original on-screen duration.
func (s Segment) DurationMS() int64 { return s.EndMS - s.StartMS }

// Span is a half-open character range [Start, End) inside a speaker's
// concatenated text.
type Span struct {
	Start int
	End   int
}

// Len returns the span's character count.
func (s Span) Len() int { return s.End - s.Start }

// SpeakerText is one speaker's segments concatenated into a single
// utterance. Spans[i] locates Segments[i]'s text inside FullText.
type SpeakerText struct {
	SpeakerID string
	FullText  string
	Segments  []Segment
	Spans     []Span
}

// SpeakerTranslation is the result of the single translation call for one
// speaker. Spans carry the original per-segment offsets forward; after
// translation they are approximate hints only, refined later by forced
// alignment.
type SpeakerTranslation struct {
	SpeakerID      string
	OriginalText   string
	TranslatedText string
	Spans          []Span
}

// Word is one recognized word with millisecond offsets inside a rendered
// audio file.
type Word struct {
	Text    string
	StartMS int64
	EndMS   int64
}

// SpeakerAudio is the continuous render produced by the single synthesis
// call for one speaker.
type SpeakerAudio struct {
	SpeakerID  string
	AudioPath  string
	DurationMS int64
}

// SegmentResult is one original segment after re-slicing the speaker's
// continuous render. Failed segments keep their identity so reassembly can
// report exactly which indices are missing.
type SegmentResult struct {
	OrderIndex      int
	SpeakerID       string
	AudioPath       string
	DurationMS      int64
	OriginalStartMS int64
	OriginalEndMS   int64
	Success         bool
	Err             error
}

// FinalDub is the single reassembled artifact. FailedSegments lists the
// order indices that were skipped, so a partial dub is always explicit.
type FinalDub struct {
	AudioPath      string
	DurationMS     int64
	FailedSegments []int
}
