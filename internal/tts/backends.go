package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/config"
	"redub/internal/services"
)

// Backend names, in default preference order.
const (
	BackendChatterbox = "chatterbox"
	BackendXTTS       = "xtts_v2"
	BackendMMS        = "mms"
)

// CommandBackend is a synthesis backend that runs as an external Python
// package through uvx, with model weights fetched over HTTP into the models
// directory.
type CommandBackend struct {
	name       string
	pkg        string
	modelFiles []string
	baseURL    string

	lookPath func(string) (string, error)
	client   *http.Client
}

// NewCommandBackend constructs a backend definition. baseURL is the root the
// model files are fetched from, laid out as baseURL/<backend>/<file>.
func NewCommandBackend(name, pkg string, modelFiles []string, baseURL string) *CommandBackend {
	return &CommandBackend{
		name:       name,
		pkg:        pkg,
		modelFiles: modelFiles,
		baseURL:    strings.TrimRight(baseURL, "/"),
		lookPath:   exec.LookPath,
		client:     &http.Client{Timeout: 10 * time.Minute},
	}
}

func (b *CommandBackend) Name() string { return b.name }

// Installed reports whether uvx is on PATH; the package itself resolves at
// first run.
func (b *CommandBackend) Installed() bool {
	_, err := b.lookPath("uvx")
	return err == nil
}

// ModelPresent reports whether every model file already exists locally.
func (b *CommandBackend) ModelPresent(modelsDir string) bool {
	for _, file := range b.modelFiles {
		info, err := os.Stat(filepath.Join(modelsDir, b.name, file))
		if err != nil || info.Size() == 0 {
			return false
		}
	}
	return len(b.modelFiles) > 0
}

// Download fetches each missing model file, writing through a temp file so a
// partial fetch never looks like a present model.
func (b *CommandBackend) Download(ctx context.Context, modelsDir string) error {
	dir := filepath.Join(modelsDir, b.name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "backend", "download", "create model directory", err)
	}
	for _, file := range b.modelFiles {
		target := filepath.Join(dir, file)
		if info, err := os.Stat(target); err == nil && info.Size() > 0 {
			continue
		}
		if err := b.fetch(ctx, b.baseURL+"/"+b.name+"/"+file, target); err != nil {
			return err
		}
	}
	return nil
}

func (b *CommandBackend) fetch(ctx context.Context, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrTransport, "backend", "download", "build request", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "backend", "download", "fetch "+url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransport, "backend", "download",
			fmt.Sprintf("fetch %s: status %d", url, resp.StatusCode), nil)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "backend", "download", "create temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return services.Wrap(services.ErrTransport, "backend", "download", "write model file", err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrConfiguration, "backend", "download", "close temp file", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return services.Wrap(services.ErrConfiguration, "backend", "download", "finalize model file", err)
	}
	return nil
}

// DefaultBackends returns the known backends with the configured preference
// first.
func DefaultBackends(cfg config.TTS) []Backend {
	all := []Backend{
		NewCommandBackend(BackendChatterbox, "chatterbox-tts", []string{"t3_cfg.safetensors", "ve.safetensors", "tokenizer.json"}, cfg.ModelBaseURL),
		NewCommandBackend(BackendXTTS, "coqui-tts", []string{"model.pth", "config.json", "vocab.json"}, cfg.ModelBaseURL),
		NewCommandBackend(BackendMMS, "transformers-tts", []string{"pytorch_model.bin", "config.json"}, cfg.ModelBaseURL),
	}
	if cfg.PreferredBackend == "" {
		return all
	}
	ordered := make([]Backend, 0, len(all))
	for _, backend := range all {
		if backend.Name() == cfg.PreferredBackend {
			ordered = append(ordered, backend)
		}
	}
	for _, backend := range all {
		if backend.Name() != cfg.PreferredBackend {
			ordered = append(ordered, backend)
		}
	}
	return ordered
}
