package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"redub/internal/media"
	"redub/internal/services"
)

// CommandRenderer drives a backend's synthesis CLI through uvx and probes
// the produced file for its duration.
type CommandRenderer struct {
	backend   string
	pkg       string
	modelsDir string
	device    string

	runner  media.Runner
	toolkit *media.Toolkit
}

// NewCommandRenderer builds a renderer for one backend on one device.
func NewCommandRenderer(backend Backend, modelsDir, device string, toolkit *media.Toolkit) *CommandRenderer {
	r := &CommandRenderer{
		backend:   backend.Name(),
		modelsDir: modelsDir,
		device:    device,
		runner:    media.DefaultRunner,
		toolkit:   toolkit,
	}
	if cmd, ok := backend.(*CommandBackend); ok {
		r.pkg = cmd.pkg
	}
	return r
}

// WithRunner substitutes the process runner, for tests.
func (r *CommandRenderer) WithRunner(runner media.Runner) *CommandRenderer {
	r.runner = runner
	return r
}

// Render synthesizes req.Text to req.OutputPath and reports the rendered
// duration. The caller (Engine) provides serialization; Render itself
// assumes exclusive access to the device.
func (r *CommandRenderer) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return RenderResult{}, services.Wrap(services.ErrInvalidRequest, "renderer", "render", "empty text", nil)
	}
	if req.OutputPath == "" {
		return RenderResult{}, services.Wrap(services.ErrInvalidRequest, "renderer", "render", "missing output path", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return RenderResult{}, services.Wrap(services.ErrConfiguration, "renderer", "render", "create output directory", err)
	}
	args := r.buildArgs(req)
	if _, err := r.runner(ctx, "uvx", args...); err != nil {
		return RenderResult{}, services.Wrap(services.ErrExternalTool, "renderer", "render",
			fmt.Sprintf("%s synthesis failed", r.backend), err)
	}
	if _, err := os.Stat(req.OutputPath); err != nil {
		return RenderResult{}, services.Wrap(services.ErrExternalTool, "renderer", "render",
			"synthesis produced no output file", err)
	}
	duration, err := r.toolkit.ProbeDurationMS(ctx, req.OutputPath)
	if err != nil {
		return RenderResult{}, err
	}
	return RenderResult{AudioPath: req.OutputPath, DurationMS: duration, SampleRate: 24000}, nil
}

// ReadyRenderer defers rendering until the lifecycle reports a usable
// backend. Requests made before initialization completes block on WaitReady;
// requests made after a terminal failure are rejected immediately with the
// recorded reason.
type ReadyRenderer struct {
	lifecycle *LifecycleManager
	modelsDir string
	device    string
	toolkit   *media.Toolkit

	once     sync.Once
	delegate *CommandRenderer
}

// NewReadyRenderer wraps the lifecycle manager for one device.
func NewReadyRenderer(lifecycle *LifecycleManager, modelsDir, device string, toolkit *media.Toolkit) *ReadyRenderer {
	return &ReadyRenderer{lifecycle: lifecycle, modelsDir: modelsDir, device: device, toolkit: toolkit}
}

// Render waits for backend readiness, then delegates to the backend CLI.
func (r *ReadyRenderer) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	if err := r.lifecycle.WaitReady(ctx); err != nil {
		return RenderResult{}, err
	}
	backend := r.lifecycle.ActiveBackend()
	if backend == nil {
		return RenderResult{}, services.Wrap(services.ErrBackendUnavailable, "renderer", "render", "no active backend", nil)
	}
	r.once.Do(func() {
		r.delegate = NewCommandRenderer(backend, r.modelsDir, r.device, r.toolkit)
	})
	return r.delegate.Render(ctx, req)
}

func (r *CommandRenderer) buildArgs(req RenderRequest) []string {
	args := []string{
		"--from", r.pkg,
		r.backend,
		"--text", req.Text,
		"--output", req.OutputPath,
		"--model-dir", filepath.Join(r.modelsDir, r.backend),
		"--device", r.device,
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	if req.VoiceProfilePath != "" {
		args = append(args, "--voice", req.VoiceProfilePath)
	}
	if req.Speed > 0 && req.Speed != 1.0 {
		args = append(args, "--speed", fmt.Sprintf("%.2f", req.Speed))
	}
	return args
}
