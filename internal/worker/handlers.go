package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/asr"
	"redub/internal/dubbing"
	"redub/internal/fileutil"
	"redub/internal/jobs"
	"redub/internal/logging"
	"redub/internal/services"
	"redub/internal/transport"
	"redub/internal/tts"
)

// Translator produces one translation per call.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

// Transcriber produces word-timed transcripts from an audio file.
type Transcriber interface {
	TranscribeFile(ctx context.Context, source, outputDir, language string) (asr.Result, error)
}

// Dubber runs the full dubbing pipeline for one job.
type Dubber interface {
	Run(ctx context.Context, job dubbing.Job) (dubbing.FinalDub, error)
}

// Speech renders synthesized audio for one utterance.
type Speech interface {
	Render(ctx context.Context, req tts.RenderRequest) (tts.RenderResult, error)
}

// Notifier publishes dub job outcomes to an external channel. Delivery
// failures are logged, never surfaced to the requester.
type Notifier interface {
	NotifyJobCompleted(ctx context.Context, sourcePath, targetLanguage string, duration time.Duration) error
	NotifyJobPartial(ctx context.Context, sourcePath string, failedSegments int) error
	NotifyJobFailed(ctx context.Context, sourcePath, reason string) error
}

// Handlers binds the worker's request types to the services that serve
// them. Any nil collaborator leaves its request type unregistered, so a
// worker can run with a reduced capability set.
type Handlers struct {
	translator  Translator
	transcriber Transcriber
	dubber      Dubber
	speech      Speech
	store       *jobs.Store
	workDir     string
	exportDir   string
	profiles    *ProfileStore
	notifier    Notifier
	logger      *slog.Logger
	uptime      func() int64
	publish     func(transport.Envelope)
}

// NewHandlers wires a handler set. workDir receives transient audio files;
// profiles holds saved voice profiles and may be shared with the dubbing
// synthesizer.
func NewHandlers(translator Translator, transcriber Transcriber, dubber Dubber, speech Speech, store *jobs.Store, workDir string, profiles *ProfileStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	if profiles == nil {
		profiles = NewProfileStore(filepath.Join(workDir, "profiles"))
	}
	return &Handlers{
		translator:  translator,
		transcriber: transcriber,
		dubber:      dubber,
		speech:      speech,
		store:       store,
		workDir:     workDir,
		profiles:    profiles,
		logger:      logger,
		uptime:      func() int64 { return 0 },
	}
}

// WithExportDir copies every finished dub into dir so it survives work-dir
// cleanup.
func (h *Handlers) WithExportDir(dir string) *Handlers {
	h.exportDir = strings.TrimSpace(dir)
	return h
}

// WithNotifier routes job outcomes through n.
func (h *Handlers) WithNotifier(n Notifier) *Handlers {
	h.notifier = n
	return h
}

// Register installs every handler the set can serve onto the server.
func (h *Handlers) Register(s *Server) {
	h.uptime = func() int64 { return int64(s.Uptime().Seconds()) }
	h.publish = s.Publish
	s.Handle(transport.TypePing, h.Ping)
	if h.translator != nil {
		s.Handle(transport.TypeTranslate, h.Translate)
	}
	if h.transcriber != nil {
		s.Handle(transport.TypeTranscribeOnly, h.TranscribeOnly)
	}
	if h.dubber != nil && h.transcriber != nil {
		s.Handle(transport.TypeAudioProcess, h.AudioProcess)
	}
	if h.speech != nil {
		s.Handle(transport.TypeVoiceAPI, h.VoiceAPI)
	}
	s.Handle(transport.TypeVoiceProfile, h.VoiceProfile)
}

// Ping answers immediately regardless of backend readiness.
func (h *Handlers) Ping(ctx context.Context, env transport.Envelope) (transport.Envelope, error) {
	var req transport.PingRequest
	if err := env.Decode(&req); err != nil {
		return transport.Envelope{}, err
	}
	result := transport.PongResult{
		Meta:   transport.Meta{Type: transport.TypePong, CorrelationID: req.CorrelationID},
		Uptime: h.uptime(),
	}
	return transport.Seal(&result)
}

// Translate serves text-only translation into each requested target
// language.
func (h *Handlers) Translate(ctx context.Context, env transport.Envelope) (transport.Envelope, error) {
	var req transport.TranslateRequest
	if err := env.Decode(&req); err != nil {
		return transport.Envelope{}, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return transport.Envelope{}, services.Wrap(services.ErrInvalidRequest, "worker", "translate", "empty text", nil)
	}
	if len(req.TargetLanguages) == 0 {
		return transport.Envelope{}, services.Wrap(services.ErrInvalidRequest, "worker", "translate", "no target languages", nil)
	}
	translations := make(map[string]string, len(req.TargetLanguages))
	for _, target := range req.TargetLanguages {
		translated, err := h.translator.Translate(ctx, req.Text, req.SourceLanguage, target)
		if err != nil {
			return transport.Envelope{}, err
		}
		translations[target] = translated
	}
	result := transport.TranslateResult{
		Meta:         transport.Meta{Type: transport.ResultType(transport.TypeTranslate), CorrelationID: req.CorrelationID},
		Translations: translations,
	}
	return transport.Seal(&result)
}

// TranscribeOnly extracts the audio payload, transcribes it, and returns
// the transcript with word timings.
func (h *Handlers) TranscribeOnly(ctx context.Context, env transport.Envelope) (transport.Envelope, error) {
	var req transport.TranscribeOnlyRequest
	if err := env.Decode(&req); err != nil {
		return transport.Envelope{}, err
	}
	audioPath, cleanup, err := h.materializeAudio(env, req.InlineAudio, "transcribe")
	if err != nil {
		return transport.Envelope{}, err
	}
	defer cleanup()

	res, err := h.transcriber.TranscribeFile(ctx, audioPath, filepath.Dir(audioPath), req.SourceLanguage)
	if err != nil {
		return transport.Envelope{}, err
	}
	result := transport.TranscribeOnlyResult{
		Meta:       transport.Meta{Type: transport.ResultType(transport.TypeTranscribeOnly), CorrelationID: req.CorrelationID},
		Transcript: res.Text,
		Words:      timedWords(res.Segments),
	}
	return transport.Seal(&result)
}

// AudioProcess runs the full dub path: transcribe the incoming audio,
// build per-speaker segments, and drive the pipeline. The job table tracks
// progress so the CLI can report on it afterwards.
func (h *Handlers) AudioProcess(ctx context.Context, env transport.Envelope) (transport.Envelope, error) {
	var req transport.AudioProcessRequest
	if err := env.Decode(&req); err != nil {
		return transport.Envelope{}, err
	}
	if len(req.TargetLanguages) == 0 {
		return transport.Envelope{}, services.Wrap(services.ErrInvalidRequest, "worker", "audio_process", "no target languages", nil)
	}
	target := req.TargetLanguages[0]
	started := time.Now()

	audioPath, cleanup, err := h.materializeAudio(env, req.InlineAudio, "dub")
	if err != nil {
		return transport.Envelope{}, err
	}
	defer cleanup()

	var row *jobs.Job
	if h.store != nil {
		row, err = h.store.NewJob(ctx, audioPath, req.SourceLanguage, target)
		if err != nil {
			h.logger.Warn("could not record job",
				logging.String(logging.FieldComponent, "worker"),
				logging.Error(err))
		}
	}

	res, err := h.transcriber.TranscribeFile(ctx, audioPath, filepath.Dir(audioPath), req.SourceLanguage)
	if err != nil {
		h.failJob(ctx, row, audioPath, err)
		return transport.Envelope{}, err
	}

	segments := dubSegments(res.Segments, req.SpeakerID)
	if row != nil {
		h.store.UpdateStatus(ctx, row.ID, jobs.StatusDubbing)
		h.store.SetCounts(ctx, row.ID, len(segments), speakerCount(segments))
	}
	h.publishEvent(&transport.TranscriptionCompletedEvent{
		Meta:       transport.Meta{Type: transport.TypeTranscriptionCompleted, CorrelationID: req.CorrelationID},
		Transcript: res.Text,
		Segments:   len(segments),
	})

	outputPath := filepath.Join(filepath.Dir(audioPath), "dub.wav")
	dub, err := h.dubber.Run(ctx, dubbing.Job{
		ID:             req.CorrelationID,
		Segments:       segments,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: target,
		OutputPath:     outputPath,
	})
	if err != nil {
		h.failJob(ctx, row, audioPath, err)
		return transport.Envelope{}, err
	}

	finalPath := h.exportDub(req.CorrelationID, dub.AudioPath)
	if row != nil {
		h.store.MarkCompleted(ctx, row.ID, finalPath, dub.DurationMS, dub.FailedSegments)
	}
	h.notifyOutcome(ctx, audioPath, target, started, dub.FailedSegments)
	h.publishEvent(&transport.JobCompletedEvent{
		Meta:           transport.Meta{Type: transport.TypeJobCompleted, CorrelationID: req.CorrelationID},
		TargetLanguage: target,
		DurationMS:     dub.DurationMS,
		FailedSegments: dub.FailedSegments,
		OutputPath:     finalPath,
	})

	audio, err := os.ReadFile(dub.AudioPath)
	if err != nil {
		return transport.Envelope{}, services.Wrap(services.ErrExternalTool, "worker", "audio_process", "read dubbed audio", err)
	}
	result := transport.AudioProcessResult{
		Meta: transport.Meta{
			Type:          transport.ResultType(transport.TypeAudioProcess),
			CorrelationID: req.CorrelationID,
			FrameMap:      &transport.FrameMap{Audio: 1, AudioMimeType: "audio/wav", AudioSize: len(audio)},
		},
		Transcript:     res.Text,
		DurationMS:     dub.DurationMS,
		FailedSegments: dub.FailedSegments,
	}
	return transport.Seal(&result, audio)
}

// VoiceAPI serves the voice operations: synthesis, vocal analysis, speaker
// verification, and clip comparison.
func (h *Handlers) VoiceAPI(ctx context.Context, env transport.Envelope) (transport.Envelope, error) {
	var req transport.VoiceAPIRequest
	if err := env.Decode(&req); err != nil {
		return transport.Envelope{}, err
	}
	switch req.Operation {
	case "", transport.VoiceOpSynthesize:
		return h.synthesizeVoice(ctx, env, req)
	case transport.VoiceOpAnalyze:
		return h.analyzeVoice(env, req)
	case transport.VoiceOpVerify:
		return h.verifyVoice(env, req)
	case transport.VoiceOpCompare:
		return h.compareVoices(env, req)
	default:
		return transport.Envelope{}, services.Wrap(services.ErrInvalidRequest, "worker", "voice_api", "unknown operation "+req.Operation, nil)
	}
}

func (h *Handlers) synthesizeVoice(ctx context.Context, env transport.Envelope, req transport.VoiceAPIRequest) (transport.Envelope, error) {
	if strings.TrimSpace(req.Text) == "" {
		return transport.Envelope{}, services.Wrap(services.ErrInvalidRequest, "worker", "voice_api", "empty text", nil)
	}

	profilePath := ""
	profile, err := env.VoiceProfileFrame()
	if err != nil {
		return transport.Envelope{}, err
	}
	switch {
	case len(profile) > 0:
		path, cleanup, werr := h.writeTemp("profile", "profile.bin", profile)
		if werr != nil {
			return transport.Envelope{}, werr
		}
		defer cleanup()
		profilePath = path
	case req.VoiceName != "":
		profilePath = h.profiles.Resolve(req.VoiceName)
	case req.SpeakerID != "":
		profilePath = h.profiles.Resolve(req.SpeakerID)
	}

	outPath, cleanup, err := h.tempPath("voice", "speech.wav")
	if err != nil {
		return transport.Envelope{}, err
	}
	defer cleanup()

	rendered, err := h.speech.Render(ctx, tts.RenderRequest{
		Text:             req.Text,
		Language:         req.Language,
		SpeakerID:        req.SpeakerID,
		VoiceProfilePath: profilePath,
		OutputPath:       outPath,
		Speed:            req.Speed,
	})
	if err != nil {
		return transport.Envelope{}, err
	}
	audio, err := os.ReadFile(rendered.AudioPath)
	if err != nil {
		return transport.Envelope{}, services.Wrap(services.ErrExternalTool, "worker", "voice_api", "read rendered audio", err)
	}
	result := transport.VoiceAPIResult{
		Meta: transport.Meta{
			Type:          transport.ResultType(transport.TypeVoiceAPI),
			CorrelationID: req.CorrelationID,
			FrameMap:      &transport.FrameMap{Audio: 1, AudioMimeType: "audio/wav", AudioSize: len(audio)},
		},
		Operation:  transport.VoiceOpSynthesize,
		DurationMS: rendered.DurationMS,
		SampleRate: rendered.SampleRate,
	}
	return transport.Seal(&result, audio)
}

// analyzeVoice extracts vocal metrics from the request clip.
func (h *Handlers) analyzeVoice(env transport.Envelope, req transport.VoiceAPIRequest) (transport.Envelope, error) {
	clipPath, cleanup, err := h.materializeAudio(env, req.InlineAudio, "analyze")
	if err != nil {
		return transport.Envelope{}, err
	}
	defer cleanup()
	metrics, err := analyzeVoiceFile(clipPath)
	if err != nil {
		return transport.Envelope{}, err
	}
	h.logger.Info("voice analyzed",
		logging.String(logging.FieldComponent, "worker"),
		slog.String("voice_type", metrics.VoiceType),
		slog.Float64("pitch_mean_hz", metrics.PitchMeanHz))
	result := transport.VoiceAPIResult{
		Meta:      transport.Meta{Type: transport.ResultType(transport.TypeVoiceAPI), CorrelationID: req.CorrelationID},
		Operation: transport.VoiceOpAnalyze,
		Metrics:   &metrics,
	}
	return transport.Seal(&result)
}

// verifyVoice compares the request clip against the speaker's stored voice
// profile (or a supplied reference clip) and reports whether it matches.
func (h *Handlers) verifyVoice(env transport.Envelope, req transport.VoiceAPIRequest) (transport.Envelope, error) {
	clipPath, cleanup, err := h.materializeAudio(env, req.InlineAudio, "verify")
	if err != nil {
		return transport.Envelope{}, err
	}
	defer cleanup()

	referencePath, refCleanup, err := h.resolveReferenceClip(env, req.SpeakerID, "verify")
	if err != nil {
		return transport.Envelope{}, err
	}
	defer refCleanup()

	reference, clip, sim, err := h.scoreClips(referencePath, clipPath)
	if err != nil {
		return transport.Envelope{}, err
	}
	verified := sim.Overall >= voiceVerifyThreshold
	h.logger.Info("voice verified",
		logging.String(logging.FieldComponent, "worker"),
		logging.String(logging.FieldSpeakerID, req.SpeakerID),
		slog.Float64("overall_similarity", sim.Overall),
		slog.Bool("verified", verified))
	result := transport.VoiceAPIResult{
		Meta:       transport.Meta{Type: transport.ResultType(transport.TypeVoiceAPI), CorrelationID: req.CorrelationID},
		Operation:  transport.VoiceOpVerify,
		Metrics:    clip,
		Reference:  reference,
		Similarity: sim,
		Verified:   &verified,
	}
	return transport.Seal(&result)
}

// compareVoices scores the request clip against the reference clip riding
// in the voice-profile frame slot.
func (h *Handlers) compareVoices(env transport.Envelope, req transport.VoiceAPIRequest) (transport.Envelope, error) {
	clipPath, cleanup, err := h.materializeAudio(env, req.InlineAudio, "compare")
	if err != nil {
		return transport.Envelope{}, err
	}
	defer cleanup()

	referencePath, refCleanup, err := h.resolveReferenceClip(env, "", "compare")
	if err != nil {
		return transport.Envelope{}, err
	}
	defer refCleanup()

	reference, clip, sim, err := h.scoreClips(referencePath, clipPath)
	if err != nil {
		return transport.Envelope{}, err
	}
	h.logger.Info("voices compared",
		logging.String(logging.FieldComponent, "worker"),
		slog.Float64("overall_similarity", sim.Overall))
	result := transport.VoiceAPIResult{
		Meta:       transport.Meta{Type: transport.ResultType(transport.TypeVoiceAPI), CorrelationID: req.CorrelationID},
		Operation:  transport.VoiceOpCompare,
		Metrics:    clip,
		Reference:  reference,
		Similarity: sim,
	}
	return transport.Seal(&result)
}

// resolveReferenceClip locates the reference audio for verify and compare:
// the voice-profile frame when present, otherwise the speaker's stored
// profile.
func (h *Handlers) resolveReferenceClip(env transport.Envelope, speakerID, label string) (string, func(), error) {
	frame, err := env.VoiceProfileFrame()
	if err != nil {
		return "", nil, err
	}
	if len(frame) > 0 {
		return h.writeTemp(label, "reference.wav", frame)
	}
	if speakerID != "" {
		if path := h.profiles.Resolve(speakerID); path != "" {
			return path, func() {}, nil
		}
		return "", nil, services.Wrap(services.ErrNotFound, "worker", "voice_api", "no stored profile for speaker "+speakerID, nil)
	}
	return "", nil, services.Wrap(services.ErrInvalidRequest, "worker", "voice_api", "missing reference clip", nil)
}

func (h *Handlers) scoreClips(referencePath, clipPath string) (*transport.VoiceMetrics, *transport.VoiceMetrics, *transport.VoiceSimilarity, error) {
	reference, err := analyzeVoiceFile(referencePath)
	if err != nil {
		return nil, nil, nil, err
	}
	clip, err := analyzeVoiceFile(clipPath)
	if err != nil {
		return nil, nil, nil, err
	}
	sim := compareVoiceMetrics(reference, clip)
	return &reference, &clip, &sim, nil
}

// VoiceProfile stores the reference audio under the speaker's profile path
// and echoes the stored profile back.
func (h *Handlers) VoiceProfile(ctx context.Context, env transport.Envelope) (transport.Envelope, error) {
	var req transport.VoiceProfileRequest
	if err := env.Decode(&req); err != nil {
		return transport.Envelope{}, err
	}
	if strings.TrimSpace(req.SpeakerID) == "" {
		return transport.Envelope{}, services.Wrap(services.ErrInvalidRequest, "worker", "voice_profile", "missing speaker id", nil)
	}
	audio, err := env.AudioFrame()
	if err != nil && req.Meta.FrameMap != nil {
		return transport.Envelope{}, err
	}
	if len(audio) == 0 && req.InlineAudio != "" {
		if audio, err = transport.DecodeInlineAudio(req.InlineAudio); err != nil {
			return transport.Envelope{}, err
		}
	}
	if len(audio) == 0 {
		return transport.Envelope{}, services.Wrap(services.ErrInvalidRequest, "worker", "voice_profile", "missing reference audio", nil)
	}

	if _, err := h.profiles.Save(req.SpeakerID, audio); err != nil {
		return transport.Envelope{}, err
	}
	h.logger.Info("voice profile stored",
		logging.String(logging.FieldComponent, "worker"),
		logging.String(logging.FieldSpeakerID, req.SpeakerID),
		slog.Int("bytes", len(audio)))

	result := transport.VoiceProfileResult{
		Meta: transport.Meta{
			Type:          transport.ResultType(transport.TypeVoiceProfile),
			CorrelationID: req.CorrelationID,
			FrameMap:      &transport.FrameMap{VoiceProfile: 1, VoiceProfileSize: len(audio)},
		},
		SpeakerID: req.SpeakerID,
	}
	return transport.Seal(&result, audio)
}

// publishEvent fans a progress event out to the subscribers; it is a no-op
// until Register binds the server.
func (h *Handlers) publishEvent(payload transport.Payload) {
	if h.publish == nil {
		return
	}
	env, err := transport.Seal(payload)
	if err != nil {
		h.logger.Warn("could not seal event",
			logging.String(logging.FieldComponent, "worker"),
			logging.Error(err))
		return
	}
	h.publish(env)
}

func (h *Handlers) failJob(ctx context.Context, row *jobs.Job, sourcePath string, err error) {
	if row != nil && h.store != nil {
		if merr := h.store.MarkFailed(ctx, row.ID, err.Error()); merr != nil {
			h.logger.Warn("could not mark job failed",
				logging.String(logging.FieldComponent, "worker"),
				logging.Error(merr))
		}
	}
	if h.notifier != nil {
		if nerr := h.notifier.NotifyJobFailed(ctx, sourcePath, err.Error()); nerr != nil {
			h.logger.Warn("notification delivery failed",
				logging.String(logging.FieldComponent, "worker"),
				logging.Error(nerr))
		}
	}
}

// exportDub copies the finished dub into the export directory, named after
// the request's correlation id. Returns the path callers should record; on
// copy failure the work-dir path is kept.
func (h *Handlers) exportDub(correlationID, dubPath string) string {
	if h.exportDir == "" {
		return dubPath
	}
	name := fmt.Sprintf("dub-%d", time.Now().UnixNano())
	if strings.TrimSpace(correlationID) != "" {
		name = sanitizeName(correlationID)
	}
	exported := filepath.Join(h.exportDir, name+".wav")
	if err := fileutil.CopyFileVerified(dubPath, exported); err != nil {
		h.logger.Warn("could not export dub",
			logging.String(logging.FieldComponent, "worker"),
			logging.String("path", exported),
			logging.Error(err))
		return dubPath
	}
	return exported
}

func (h *Handlers) notifyOutcome(ctx context.Context, sourcePath, target string, started time.Time, failedSegments []int) {
	if h.notifier == nil {
		return
	}
	var err error
	if len(failedSegments) > 0 {
		err = h.notifier.NotifyJobPartial(ctx, sourcePath, len(failedSegments))
	} else {
		err = h.notifier.NotifyJobCompleted(ctx, sourcePath, target, time.Since(started))
	}
	if err != nil {
		h.logger.Warn("notification delivery failed",
			logging.String(logging.FieldComponent, "worker"),
			logging.Error(err))
	}
}

// materializeAudio writes the request's audio payload (binary frame first,
// inline base64 fallback) to a temp file and returns a cleanup func.
func (h *Handlers) materializeAudio(env transport.Envelope, inline, label string) (string, func(), error) {
	meta, err := env.Meta()
	if err != nil {
		return "", nil, err
	}
	var data []byte
	switch {
	case meta.FrameMap != nil && meta.FrameMap.Audio > 0:
		data, err = env.AudioFrame()
		if err != nil {
			return "", nil, err
		}
	case inline != "":
		data, err = transport.DecodeInlineAudio(inline)
		if err != nil {
			return "", nil, err
		}
	default:
		return "", nil, services.Wrap(services.ErrInvalidRequest, "worker", label, "request carries no audio", nil)
	}
	if len(data) == 0 {
		return "", nil, services.Wrap(services.ErrInvalidRequest, "worker", label, "empty audio payload", nil)
	}
	return h.writeTemp(label, "input.wav", data)
}

func (h *Handlers) writeTemp(label, name string, data []byte) (string, func(), error) {
	path, cleanup, err := h.tempPath(label, name)
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		cleanup()
		return "", nil, services.Wrap(services.ErrExternalTool, "worker", label, "write temp audio", err)
	}
	return path, cleanup, nil
}

func (h *Handlers) tempPath(label, name string) (string, func(), error) {
	dir, err := os.MkdirTemp(h.workDir, label+"-*")
	if err != nil {
		return "", nil, services.Wrap(services.ErrExternalTool, "worker", label, "create temp dir", err)
	}
	return filepath.Join(dir, name), func() { os.RemoveAll(dir) }, nil
}

func timedWords(segments []asr.Segment) []transport.TimedWord {
	var words []transport.TimedWord
	for _, seg := range segments {
		for _, w := range seg.Words {
			words = append(words, transport.TimedWord{
				Word:    w.Word,
				StartMS: int64(w.Start * 1000),
				EndMS:   int64(w.End * 1000),
			})
		}
	}
	return words
}

// dubSegments converts transcription segments to pipeline segments. When the
// request names a speaker, every segment belongs to them; otherwise each
// segment gets a synthetic speaker id so the pipeline still groups cleanly.
func dubSegments(segments []asr.Segment, speakerID string) []dubbing.Segment {
	out := make([]dubbing.Segment, 0, len(segments))
	for i, seg := range segments {
		speaker := speakerID
		if speaker == "" {
			speaker = "speaker_0"
		}
		out = append(out, dubbing.Segment{
			Text:       strings.TrimSpace(seg.Text),
			SpeakerID:  speaker,
			StartMS:    int64(seg.Start * 1000),
			EndMS:      int64(seg.End * 1000),
			OrderIndex: i,
		})
	}
	return out
}

func speakerCount(segments []dubbing.Segment) int {
	seen := make(map[string]struct{})
	for _, seg := range segments {
		seen[seg.SpeakerID] = struct{}{}
	}
	return len(seen)
}
