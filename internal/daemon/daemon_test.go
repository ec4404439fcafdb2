package daemon

import (
	"context"
	"testing"
	"time"

	"redub/internal/jobs"
	"redub/internal/testsupport"
	"redub/internal/worker"
)

func newTestDaemon(t *testing.T) (*Daemon, *jobs.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	server := worker.NewServer(cfg.Transport.PushBind, cfg.Transport.PubBind, 4<<20, nil)
	d, err := New(cfg, store, server, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("status should report running")
	}
	if status.PID <= 0 {
		t.Fatalf("pid = %d", status.PID)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second start should fail while running")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("status should report stopped")
	}
	// Restart must work once the lock is released.
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	d.Stop()
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	first, store := newTestDaemon(t)
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first: %v", err)
	}
	t.Cleanup(first.Stop)

	cfgCopy := *first.cfg
	server := worker.NewServer("unix://"+t.TempDir()+"/p.sock", "unix://"+t.TempDir()+"/s.sock", 4<<20, nil)
	second, err := New(&cfgCopy, store, server, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second instance should fail to acquire the lock")
	}
}

func TestDaemonRecoversInFlightJobs(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	row, err := store.NewJob(ctx, "/tmp/in.wav", "en", "es")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := store.UpdateStatus(ctx, row.ID, jobs.StatusDubbing); err != nil {
		t.Fatalf("update status: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(d.Stop)

	recovered, err := store.GetByID(ctx, row.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if recovered.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want %s", recovered.Status, jobs.StatusFailed)
	}
	if recovered.ErrorMessage != jobs.DaemonStopReason {
		t.Fatalf("error message = %q", recovered.ErrorMessage)
	}
}

func TestDaemonStatusJobStats(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	if _, err := store.NewJob(ctx, "/tmp/a.wav", "en", "es"); err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(d.Stop)

	deadline := time.Now().Add(time.Second)
	for {
		status := d.Status(ctx)
		if status.JobStats[string(jobs.StatusPending)] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stats = %v", status.JobStats)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
