package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"redub/internal/logging"
	"redub/internal/services"
)

// State is the lifecycle manager's position in the model readiness state
// machine.
type State int

const (
	StateUninitialized State = iota
	StateNoBackend
	StateLocalModelReady
	StateDownloading
	StateModelReady
	StateDownloadFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNoBackend:
		return "no_backend_available"
	case StateLocalModelReady:
		return "local_model_ready"
	case StateDownloading:
		return "downloading"
	case StateModelReady:
		return "model_ready"
	case StateDownloadFailed:
		return "download_failed"
	default:
		return "unknown"
	}
}

// Backend is one installable synthesis backend.
type Backend interface {
	Name() string
	// Installed reports whether the backend's runtime is usable on this host.
	Installed() bool
	// ModelPresent reports whether the backend's model files already exist
	// under the models directory.
	ModelPresent(modelsDir string) bool
	// Download fetches the backend's model files into the models directory.
	Download(ctx context.Context, modelsDir string) error
}

// LifecycleManager verifies that a synthesis backend actually exists before
// anything reports readiness. Readiness is broadcast exactly once by closing
// a channel; waiters block on that signal instead of polling, and once a
// terminal failure state is reached every wait fails immediately.
type LifecycleManager struct {
	backends  []Backend
	modelsDir string
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	active  Backend
	failure error

	ready     chan struct{}
	readyOnce sync.Once
}

// NewLifecycleManager builds a manager over the candidate backends in
// preference order.
func NewLifecycleManager(backends []Backend, modelsDir string, downloadTimeout time.Duration, logger *slog.Logger) *LifecycleManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LifecycleManager{
		backends:  backends,
		modelsDir: modelsDir,
		timeout:   downloadTimeout,
		logger:    logger,
		state:     StateUninitialized,
		ready:     make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (m *LifecycleManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActiveBackend returns the backend selected during initialization, or nil.
func (m *LifecycleManager) ActiveBackend() Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Initialize selects the first installed backend. With no backend installed
// it fails immediately rather than reporting optimistic success. A locally
// present model makes the manager ready at once; otherwise a background
// download starts and WaitReady blocks until its one-shot outcome.
func (m *LifecycleManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		state := m.state
		m.mu.Unlock()
		return services.Wrap(services.ErrConfiguration, "lifecycle", "initialize",
			"already initialized in state "+state.String(), nil)
	}

	var selected Backend
	for _, backend := range m.backends {
		if backend.Installed() {
			selected = backend
			break
		}
	}
	if selected == nil {
		m.state = StateNoBackend
		err := services.Wrap(services.ErrBackendUnavailable, "lifecycle", "initialize",
			"no synthesis backend installed", nil)
		m.failure = err
		m.mu.Unlock()
		m.signal()
		return err
	}
	m.active = selected

	if selected.ModelPresent(m.modelsDir) {
		m.state = StateLocalModelReady
		m.mu.Unlock()
		m.logger.Info("local model present, backend ready",
			logging.String(logging.FieldComponent, "lifecycle"),
			slog.String("backend", selected.Name()))
		m.complete(nil)
		// Remaining backends fetch their models opportunistically; failures
		// here never affect readiness.
		go m.downloadSecondary(ctx, selected)
		return nil
	}

	m.state = StateDownloading
	m.mu.Unlock()
	m.logger.Info("no local model, starting download",
		logging.String(logging.FieldComponent, "lifecycle"),
		slog.String("backend", selected.Name()))
	go m.download(ctx, selected)
	return nil
}

func (m *LifecycleManager) download(ctx context.Context, backend Backend) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	err := backend.Download(ctx, m.modelsDir)
	if err != nil {
		err = services.Wrap(services.ErrBackendUnavailable, "lifecycle", "download",
			backend.Name()+" model download failed", err)
		m.logger.Error("model download failed",
			logging.String(logging.FieldComponent, "lifecycle"),
			slog.String("backend", backend.Name()),
			logging.Error(err))
	} else {
		m.logger.Info("model download complete",
			logging.String(logging.FieldComponent, "lifecycle"),
			slog.String("backend", backend.Name()))
	}
	m.complete(err)
}

func (m *LifecycleManager) downloadSecondary(ctx context.Context, primary Backend) {
	for _, backend := range m.backends {
		if backend == primary || !backend.Installed() || backend.ModelPresent(m.modelsDir) {
			continue
		}
		if err := backend.Download(ctx, m.modelsDir); err != nil {
			m.logger.Warn("secondary model download failed",
				logging.String(logging.FieldComponent, "lifecycle"),
				slog.String("backend", backend.Name()),
				logging.Error(err))
		}
	}
}

// complete records the terminal outcome and fires the one-shot readiness
// broadcast.
func (m *LifecycleManager) complete(err error) {
	m.mu.Lock()
	if err != nil {
		m.state = StateDownloadFailed
		m.failure = err
	} else {
		m.state = StateModelReady
	}
	m.mu.Unlock()
	m.signal()
}

func (m *LifecycleManager) signal() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// WaitReady blocks until the backend is usable. It fails fast when the
// manager already knows no backend can become ready, and is bounded by the
// configured download timeout.
func (m *LifecycleManager) WaitReady(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateNoBackend, StateDownloadFailed:
		failure := m.failure
		m.mu.Unlock()
		return failure
	case StateModelReady, StateLocalModelReady:
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	var bound <-chan time.Time
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		bound = timer.C
	}
	select {
	case <-m.ready:
		m.mu.Lock()
		failure := m.failure
		m.mu.Unlock()
		return failure
	case <-bound:
		return services.Wrap(services.ErrTimeout, "lifecycle", "wait",
			"model not ready within download timeout", nil)
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, "lifecycle", "wait",
			"canceled while waiting for model", ctx.Err())
	}
}
