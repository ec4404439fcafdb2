package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"redub/internal/config"
	"redub/internal/deps"
	"redub/internal/jobs"
	"redub/internal/logging"
	"redub/internal/logs"
	"redub/internal/services"
	"redub/internal/tts"
	"redub/internal/worker"
)

// Daemon coordinates the worker server, the speech-model lifecycle, and the
// job store, and enforces single-instance execution via a lock file.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobs.Store
	server    *worker.Server
	lifecycle *tts.LifecycleManager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	UptimeSeconds int64
	LockFilePath  string
	JobDBPath     string
	PushBind      string
	PubBind       string
	TTSState      string
	TTSBackend    string
	Subscribers   int
	JobStats      map[string]int
}

// New constructs a daemon with initialized dependencies. The lifecycle
// manager is optional; without one the TTS state reports as uninitialized.
func New(cfg *config.Config, store *jobs.Store, server *worker.Server, lifecycle *tts.LifecycleManager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || server == nil {
		return nil, errors.New("daemon requires config, store, and worker server")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		server:    server,
		lifecycle: lifecycle,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers jobs left in flight by a previous
// run, kicks off speech-model initialization, and launches the worker server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another redub daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	if missing := deps.MissingRequired(deps.CheckBinaries(deps.Defaults())); len(missing) > 0 {
		// Requests needing the missing tools will fail with a typed
		// error; liveness and job inspection keep working.
		d.logger.Warn("external tools missing",
			logging.String("tools", strings.Join(missing, ", ")))
	}

	if reset, err := d.store.FailInFlight(runCtx); err != nil {
		d.logger.Warn("could not reset in-flight jobs", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("reset jobs left in flight by previous run", slog.Int64("count", reset))
	}

	if d.lifecycle != nil {
		// A missing synthesis backend degrades the daemon rather than
		// killing it: translate and transcribe requests still work, and
		// synthesis requests fail fast with the recorded reason.
		if err := d.lifecycle.Initialize(runCtx); err != nil {
			if !errors.Is(err, services.ErrBackendUnavailable) {
				cancel()
				_ = d.lock.Unlock()
				return fmt.Errorf("initialize speech backend: %w", err)
			}
			d.logger.Warn("speech synthesis unavailable", logging.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.server.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("worker server exited", logging.Error(err))
		}
	}()

	d.cancel = cancel
	d.done = done
	d.started = time.Now()
	d.running.Store(true)
	d.logger.Info("redub daemon started",
		logging.String("lock", d.lockPath),
		logging.String("push", d.cfg.Transport.PushBind),
		logging.String("pub", d.cfg.Transport.PubBind))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		select {
		case <-d.done:
		case <-time.After(5 * time.Second):
			d.logger.Warn("worker server did not stop in time")
		}
		d.done = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("redub daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports daemon runtime information for the control socket.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		JobDBPath:    d.cfg.JobDBPath(),
		PushBind:     d.cfg.Transport.PushBind,
		PubBind:      d.cfg.Transport.PubBind,
		Subscribers:  d.server.SubscriberCount(),
	}
	if status.Running {
		status.UptimeSeconds = int64(time.Since(d.started).Seconds())
	}
	if d.lifecycle != nil {
		status.TTSState = d.lifecycle.State().String()
		if backend := d.lifecycle.ActiveBackend(); backend != nil {
			status.TTSBackend = backend.Name()
		}
	}
	if counts, err := d.store.Counts(ctx); err == nil {
		status.JobStats = make(map[string]int, len(counts))
		for k, v := range counts {
			status.JobStats[string(k)] = v
		}
	}
	return status
}

// ListJobs returns job rows filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []jobs.Status) ([]*jobs.Job, error) {
	return d.store.List(ctx, statuses...)
}

// GetJob returns one job row by id.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*jobs.Job, error) {
	return d.store.GetByID(ctx, id)
}

// TailLogs reads from the daemon's log file. The file may not exist yet
// when tailing starts before the first log line is written.
func (d *Daemon) TailLogs(ctx context.Context, opts logs.TailOptions) (logs.TailResult, error) {
	return logs.Tail(ctx, d.cfg.LogFilePath(), opts)
}
