package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redub/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "redub", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Transport.MaxRetries != 3 {
		t.Fatalf("unexpected max retries: %d", cfg.Transport.MaxRetries)
	}
	if cfg.Transport.RequestTimeoutMS != 120000 {
		t.Fatalf("unexpected request timeout: %d", cfg.Transport.RequestTimeoutMS)
	}
	if cfg.Dubbing.MaxReassemblyGapMS != 3000 {
		t.Fatalf("unexpected reassembly gap cap: %d", cfg.Dubbing.MaxReassemblyGapMS)
	}
	if cfg.Dubbing.AlignSimilarityThreshold != 0.7 {
		t.Fatalf("unexpected alignment threshold: %v", cfg.Dubbing.AlignSimilarityThreshold)
	}
	if cfg.TTS.PreferredBackend != "chatterbox" {
		t.Fatalf("unexpected preferred backend: %q", cfg.TTS.PreferredBackend)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.ModelsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[transport]",
		`push_bind = "tcp://0.0.0.0:9001"`,
		"max_retries = 7",
		"request_timeout_ms = 5000",
		"",
		"[dubbing]",
		"max_reassembly_gap_ms = 1500",
		"",
		"[logging]",
		`level = "debug"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Transport.PushBind != "tcp://0.0.0.0:9001" {
		t.Fatalf("unexpected push bind: %q", cfg.Transport.PushBind)
	}
	if cfg.Transport.MaxRetries != 7 {
		t.Fatalf("unexpected max retries: %d", cfg.Transport.MaxRetries)
	}
	if cfg.Transport.RequestTimeoutMS != 5000 {
		t.Fatalf("unexpected request timeout: %d", cfg.Transport.RequestTimeoutMS)
	}
	if cfg.Dubbing.MaxReassemblyGapMS != 1500 {
		t.Fatalf("unexpected gap cap: %d", cfg.Dubbing.MaxReassemblyGapMS)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"threshold above one", func(c *config.Config) { c.Transport.CircuitFailureThreshold = 1.5 }},
		{"max delay below initial", func(c *config.Config) {
			c.Transport.InitialDelayMS = 500
			c.Transport.MaxDelayMS = 100
		}},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"zero tolerance", func(c *config.Config) { c.Dubbing.SegmentDurationTolerancePct = 0 }},
		{"no devices", func(c *config.Config) { c.TTS.Devices = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Logging.Format = "console"
			cfg.Logging.Level = "info"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	written, err := config.WriteSample(path, false)
	if err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if written != path {
		t.Fatalf("unexpected path: %q", written)
	}

	if _, err := config.WriteSample(path, false); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if _, err := config.WriteSample(path, true); err != nil {
		t.Fatalf("forced WriteSample failed: %v", err)
	}
}
