package dubbing

import (
	"context"
	"strings"

	"redub/internal/services"
)

// Translator turns text from one language into another. The dubbing
// pipeline calls it exactly once per speaker, over the speaker's full
// concatenated utterance, never segment by segment: per-segment translation
// breaks cross-segment discourse and multiplies external call volume.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

// TranslateSpeaker issues the single translation call for one speaker and
// carries the segment spans forward, rescaled onto the translated text as
// approximate hints for alignment.
func TranslateSpeaker(ctx context.Context, translator Translator, group SpeakerText, sourceLanguage, targetLanguage string) (SpeakerTranslation, error) {
	if strings.TrimSpace(group.FullText) == "" {
		return SpeakerTranslation{
			SpeakerID:    group.SpeakerID,
			OriginalText: group.FullText,
			Spans:        rescaleSpans(group.Spans, len(group.FullText), 0),
		}, nil
	}
	translated, err := translator.Translate(ctx, group.FullText, sourceLanguage, targetLanguage)
	if err != nil {
		return SpeakerTranslation{}, services.Wrap(services.ErrTransient, "translate", "speaker",
			"translation failed for speaker "+group.SpeakerID, err)
	}
	return SpeakerTranslation{
		SpeakerID:      group.SpeakerID,
		OriginalText:   group.FullText,
		TranslatedText: translated,
		Spans:          rescaleSpans(group.Spans, len(group.FullText), len(translated)),
	}, nil
}

// rescaleSpans maps character spans proportionally from the original text
// length onto the translated length. The result is a hint only; forced
// alignment recovers the real boundaries from audio.
func rescaleSpans(spans []Span, fromLen, toLen int) []Span {
	out := make([]Span, len(spans))
	if fromLen == 0 {
		return out
	}
	scale := float64(toLen) / float64(fromLen)
	for i, span := range spans {
		out[i] = Span{
			Start: int(float64(span.Start) * scale),
			End:   int(float64(span.End) * scale),
		}
		if out[i].End > toLen {
			out[i].End = toLen
		}
		if out[i].Start > out[i].End {
			out[i].Start = out[i].End
		}
	}
	return out
}
