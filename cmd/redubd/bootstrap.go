package main

import (
	"context"
	"path/filepath"
	"time"

	"log/slog"

	"redub/internal/asr"
	"redub/internal/config"
	"redub/internal/daemon"
	"redub/internal/dubbing"
	"redub/internal/jobs"
	"redub/internal/logging"
	"redub/internal/media"
	"redub/internal/notifications"
	"redub/internal/services/translate"
	"redub/internal/tts"
	"redub/internal/worker"
)

// buildDaemon assembles the full service graph: media toolkit, transcription,
// translation, synthesis lifecycle, dubbing pipeline, worker handlers, and
// the daemon that supervises them.
func buildDaemon(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	toolkit := media.NewToolkit("", "")
	workDir := cfg.Paths.WorkDir

	asrService := asr.NewService(asr.Config{
		Model:       cfg.ASR.Model,
		CUDAEnabled: cfg.ASR.CUDAEnabled,
		CacheDir:    cfg.ASR.CacheDir,
	}, "")
	translator := translate.NewClient(cfg.Translator)

	backends := tts.DefaultBackends(cfg.TTS)
	downloadTimeout := time.Duration(cfg.TTS.ModelDownloadTimeoutMS) * time.Millisecond
	lifecycle := tts.NewLifecycleManager(backends, cfg.Paths.ModelsDir, downloadTimeout, logging.NewComponentLogger(logger, "tts"))

	pool := tts.NewPool(func(device string) *tts.Engine {
		renderer := tts.NewReadyRenderer(lifecycle, cfg.Paths.ModelsDir, device, toolkit)
		return tts.NewEngine(device, renderer)
	})
	device := "cpu"
	if len(cfg.TTS.Devices) > 0 {
		device = cfg.TTS.Devices[0]
	}
	engine := pool.ForDevice(device)

	profiles := worker.NewProfileStore(filepath.Join(workDir, "profiles"))
	synthesizer := dubbing.NewEngineSynthesizer(engine, workDir, profiles.Resolve)
	aligner := dubbing.NewAligner(wordTranscriber{svc: asrService, cacheDir: cfg.ASR.CacheDir}, toolkit, dubbing.AlignerConfig{
		SimilarityThreshold:  cfg.Dubbing.AlignSimilarityThreshold,
		DurationTolerancePct: cfg.Dubbing.SegmentDurationTolerancePct,
		MaxStretchRatio:      cfg.Dubbing.MaxStretchRatio,
	}, workDir, logger)
	reassembler := dubbing.NewReassembler(toolkit, int64(cfg.Dubbing.MaxReassemblyGapMS), workDir, logger)
	pipeline := dubbing.NewPipeline(translator, synthesizer, aligner, reassembler, logger)

	server := worker.NewServer(cfg.Transport.PushBind, cfg.Transport.PubBind, cfg.Transport.MaxFrameMB<<20, logger)
	handlers := worker.NewHandlers(translator, asrService, pipeline, engine, store, workDir, profiles, logger).
		WithExportDir(cfg.Paths.OutputDir).
		WithNotifier(notifications.NewService(cfg))
	handlers.Register(server)

	return daemon.New(cfg, store, server, lifecycle, logger)
}

// wordTranscriber adapts the transcription service to the aligner's
// word-level contract.
type wordTranscriber struct {
	svc      *asr.Service
	cacheDir string
}

func (w wordTranscriber) TranscribeWords(ctx context.Context, audioPath, language string) ([]dubbing.Word, error) {
	res, err := w.svc.TranscribeFile(ctx, audioPath, w.cacheDir, language)
	if err != nil {
		return nil, err
	}
	raw := asr.Words(res.Segments)
	words := make([]dubbing.Word, 0, len(raw))
	for _, word := range raw {
		words = append(words, dubbing.Word{
			Text:    word.Word,
			StartMS: int64(word.Start * 1000),
			EndMS:   int64(word.End * 1000),
		})
	}
	return words, nil
}
