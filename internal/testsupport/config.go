package testsupport

import (
	"path/filepath"
	"testing"

	"redub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Transport binds use unix sockets under the temp dir so parallel tests
// never collide on ports.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ModelsDir = filepath.Join(base, "models")
	cfg.ASR.CacheDir = filepath.Join(base, "asr-cache")
	cfg.Transport.PushBind = "unix://" + filepath.Join(base, "push.sock")
	cfg.Transport.PubBind = "unix://" + filepath.Join(base, "pub.sock")
	cfg.Translator.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithTranslatorKey sets the translator API key on the test config.
func WithTranslatorKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Translator.APIKey = key
	}
}

// WithPreferredBackend overrides the synthesis backend preference.
func WithPreferredBackend(name string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.TTS.PreferredBackend = name
	}
}
