package dubbing

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingTranslator counts calls and applies a fixed mapping.
type recordingTranslator struct {
	mu      sync.Mutex
	calls   []string
	mapping map[string]string
	err     error
}

func (tr *recordingTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	tr.mu.Lock()
	tr.calls = append(tr.calls, text)
	tr.mu.Unlock()
	if tr.err != nil {
		return "", tr.err
	}
	if out, ok := tr.mapping[text]; ok {
		return out, nil
	}
	return text, nil
}

func TestTranslateSpeakerSingleCall(t *testing.T) {
	tr := &recordingTranslator{mapping: map[string]string{
		"Hello, I am fine": "Bonjour, je vais bien",
	}}
	group := GroupBySpeaker([]Segment{
		{Text: "Hello,", SpeakerID: "s1", OrderIndex: 0},
		{Text: "I am fine", SpeakerID: "s1", OrderIndex: 2},
	})[0]

	translation, err := TranslateSpeaker(context.Background(), tr, group, "en", "fr")
	if err != nil {
		t.Fatalf("TranslateSpeaker: %v", err)
	}
	if len(tr.calls) != 1 {
		t.Errorf("translator calls = %d, want exactly 1 per speaker", len(tr.calls))
	}
	if translation.TranslatedText != "Bonjour, je vais bien" {
		t.Errorf("translated = %q", translation.TranslatedText)
	}
	if len(translation.Spans) != len(group.Spans) {
		t.Fatalf("spans = %d, want %d", len(translation.Spans), len(group.Spans))
	}
	for i, span := range translation.Spans {
		if span.Start < 0 || span.End > len(translation.TranslatedText) || span.Start > span.End {
			t.Errorf("span %d out of bounds: %+v", i, span)
		}
	}
}

func TestTranslateSpeakerEmptyTextSkipsCall(t *testing.T) {
	tr := &recordingTranslator{}
	group := SpeakerText{SpeakerID: "s1", FullText: "", Segments: []Segment{{SpeakerID: "s1"}}, Spans: []Span{{}}}
	translation, err := TranslateSpeaker(context.Background(), tr, group, "en", "fr")
	if err != nil {
		t.Fatalf("TranslateSpeaker: %v", err)
	}
	if len(tr.calls) != 0 {
		t.Errorf("translator called %d times for empty text", len(tr.calls))
	}
	if translation.TranslatedText != "" {
		t.Errorf("translated = %q, want empty", translation.TranslatedText)
	}
}

func TestTranslateSpeakerFailure(t *testing.T) {
	tr := &recordingTranslator{err: errors.New("model overloaded")}
	group := SpeakerText{SpeakerID: "s1", FullText: "hello", Spans: []Span{{Start: 0, End: 5}}}
	if _, err := TranslateSpeaker(context.Background(), tr, group, "en", "fr"); err == nil {
		t.Fatal("expected translation failure to surface")
	}
}

func TestRescaleSpans(t *testing.T) {
	spans := []Span{{Start: 0, End: 5}, {Start: 6, End: 10}}
	out := rescaleSpans(spans, 10, 20)
	if out[0].Start != 0 || out[0].End != 10 {
		t.Errorf("span 0 = %+v", out[0])
	}
	if out[1].Start != 12 || out[1].End != 20 {
		t.Errorf("span 1 = %+v", out[1])
	}
	// Shrinking never produces out-of-range or inverted spans.
	out = rescaleSpans(spans, 10, 3)
	for i, span := range out {
		if span.Start < 0 || span.End > 3 || span.Start > span.End {
			t.Errorf("shrunk span %d = %+v", i, span)
		}
	}
	if out := rescaleSpans(spans, 0, 5); out[0] != (Span{}) {
		t.Errorf("zero-length source span = %+v", out[0])
	}
}
