package dubbing

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"redub/internal/logging"
	"redub/internal/services"
)

// Job is one dubbing request: diarized transcript segments plus the
// language pair and the path the final dub should land at.
type Job struct {
	ID             string
	Segments       []Segment
	SourceLanguage string
	TargetLanguage string
	OutputPath     string
}

// Pipeline wires the dubbing stages together: group by speaker, translate
// and synthesize once per speaker, realign segment boundaries, reassemble.
// All collaborators arrive as explicit dependencies so each stage tests in
// isolation.
type Pipeline struct {
	translator  Translator
	synthesizer Synthesizer
	aligner     *Aligner
	reassembler *Reassembler
	logger      *slog.Logger
}

// NewPipeline assembles a pipeline from its stage implementations.
func NewPipeline(translator Translator, synthesizer Synthesizer, aligner *Aligner, reassembler *Reassembler, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		translator:  translator,
		synthesizer: synthesizer,
		aligner:     aligner,
		reassembler: reassembler,
		logger:      logger,
	}
}

// Run executes a dubbing job. Speakers are processed concurrently; one
// speaker's failure marks only that speaker's segments failed and never
// aborts the others. The caller receives either a full dub, a partial dub
// with the failed indices listed, or a typed error.
func (p *Pipeline) Run(ctx context.Context, job Job) (FinalDub, error) {
	if len(job.Segments) == 0 {
		return FinalDub{}, services.Wrap(services.ErrInvalidRequest, "pipeline", "run", "job has no segments", nil)
	}
	groups := GroupBySpeaker(job.Segments)
	p.logger.Info("dubbing job started",
		logging.String(logging.FieldComponent, "pipeline"),
		logging.String(logging.FieldJobID, job.ID),
		slog.Int("segments", len(job.Segments)),
		slog.Int("speakers", len(groups)))

	var mu sync.Mutex
	var results []SegmentResult
	collect := func(batch []SegmentResult) {
		mu.Lock()
		results = append(results, batch...)
		mu.Unlock()
	}

	group, ctx := errgroup.WithContext(ctx)
	for _, speaker := range groups {
		group.Go(func() error {
			batch := p.runSpeaker(ctx, job, speaker)
			collect(batch)
			return nil
		})
	}
	group.Wait() //nolint:errcheck // speaker failures are carried in results

	return p.reassembler.Assemble(ctx, results, job.OutputPath)
}

// runSpeaker drives one speaker through translate, synthesize, and align.
// Any stage failure converts every one of the speaker's segments into a
// failed SegmentResult.
func (p *Pipeline) runSpeaker(ctx context.Context, job Job, speaker SpeakerText) []SegmentResult {
	fail := func(err error) []SegmentResult {
		p.logger.Warn("speaker failed",
			logging.String(logging.FieldComponent, "pipeline"),
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldSpeakerID, speaker.SpeakerID),
			logging.Error(err))
		out := make([]SegmentResult, 0, len(speaker.Segments))
		for _, segment := range speaker.Segments {
			out = append(out, SegmentResult{
				OrderIndex:      segment.OrderIndex,
				SpeakerID:       segment.SpeakerID,
				OriginalStartMS: segment.StartMS,
				OriginalEndMS:   segment.EndMS,
				Err:             err,
			})
		}
		return out
	}

	translation, err := TranslateSpeaker(ctx, p.translator, speaker, job.SourceLanguage, job.TargetLanguage)
	if err != nil {
		return fail(err)
	}
	audio, err := p.synthesizer.Synthesize(ctx, speaker.SpeakerID, translation.TranslatedText, job.TargetLanguage)
	if err != nil {
		return fail(err)
	}
	results, err := p.aligner.Resegment(ctx, audio, speaker, translation)
	if err != nil {
		return fail(err)
	}
	return results
}
