package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"redub/internal/services"
)

// fakeBackend scripts the lifecycle manager's view of a backend.
type fakeBackend struct {
	name      string
	installed bool
	present   bool

	mu        sync.Mutex
	downloads int
	download  func(ctx context.Context) error
}

func (b *fakeBackend) Name() string                 { return b.name }
func (b *fakeBackend) Installed() bool              { return b.installed }
func (b *fakeBackend) ModelPresent(string) bool     { return b.present }
func (b *fakeBackend) Download(ctx context.Context, _ string) error {
	b.mu.Lock()
	b.downloads++
	b.mu.Unlock()
	if b.download != nil {
		return b.download(ctx)
	}
	return nil
}

func TestLifecycleNoBackendFailsFast(t *testing.T) {
	m := NewLifecycleManager([]Backend{
		&fakeBackend{name: "a", installed: false},
		&fakeBackend{name: "b", installed: false},
	}, t.TempDir(), time.Minute, nil)

	start := time.Now()
	err := m.Initialize(context.Background())
	if !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("Initialize error = %v, want backend unavailable", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Initialize took %v, want immediate failure", elapsed)
	}
	if got := m.State(); got != StateNoBackend {
		t.Errorf("state = %v, want no_backend_available", got)
	}
	// Waiters must not sit out the download timeout.
	if err := m.WaitReady(context.Background()); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Errorf("WaitReady = %v, want backend unavailable", err)
	}
}

func TestLifecycleLocalModelReadyImmediately(t *testing.T) {
	backend := &fakeBackend{name: "chatterbox", installed: true, present: true}
	m := NewLifecycleManager([]Backend{backend}, t.TempDir(), time.Minute, nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if got := m.State(); got != StateModelReady {
		t.Errorf("state = %v, want model_ready", got)
	}
	if m.ActiveBackend() != backend {
		t.Error("active backend not the selected one")
	}
}

func TestLifecycleDownloadSuccessWakesWaiters(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		name:      "xtts_v2",
		installed: true,
		download: func(context.Context) error {
			<-release
			return nil
		},
	}
	m := NewLifecycleManager([]Backend{backend}, t.TempDir(), time.Minute, nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := m.State(); got != StateDownloading {
		t.Fatalf("state = %v, want downloading", got)
	}

	const waiters = 3
	results := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() { results <- m.WaitReady(context.Background()) }()
	}
	close(release)
	for i := 0; i < waiters; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Errorf("WaitReady: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter never woke")
		}
	}
	if got := m.State(); got != StateModelReady {
		t.Errorf("state = %v, want model_ready", got)
	}
}

func TestLifecycleDownloadFailureIsTerminal(t *testing.T) {
	backend := &fakeBackend{
		name:      "xtts_v2",
		installed: true,
		download: func(context.Context) error {
			return errors.New("mirror unreachable")
		},
	}
	m := NewLifecycleManager([]Backend{backend}, t.TempDir(), time.Minute, nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.WaitReady(context.Background()); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("WaitReady = %v, want backend unavailable", err)
	}
	if got := m.State(); got != StateDownloadFailed {
		t.Errorf("state = %v, want download_failed", got)
	}
	// Subsequent waits fail immediately with the recorded error.
	if err := m.WaitReady(context.Background()); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Errorf("second WaitReady = %v", err)
	}
}

func TestLifecycleDoubleInitializeRejected(t *testing.T) {
	backend := &fakeBackend{name: "chatterbox", installed: true, present: true}
	m := NewLifecycleManager([]Backend{backend}, t.TempDir(), time.Minute, nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.Initialize(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("second Initialize = %v, want configuration error", err)
	}
}

func TestLifecyclePrefersFirstInstalledBackend(t *testing.T) {
	skipped := &fakeBackend{name: "chatterbox", installed: false}
	chosen := &fakeBackend{name: "xtts_v2", installed: true, present: true}
	m := NewLifecycleManager([]Backend{skipped, chosen}, t.TempDir(), time.Minute, nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if m.ActiveBackend().Name() != "xtts_v2" {
		t.Errorf("active backend = %s", m.ActiveBackend().Name())
	}
}
