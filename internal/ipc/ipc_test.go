package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/config"
	"redub/internal/daemon"
	"redub/internal/jobs"
	"redub/internal/testsupport"
	"redub/internal/worker"
)

func startIPC(t *testing.T) (*Client, *jobs.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	server := worker.NewServer(cfg.Transport.PushBind, cfg.Transport.PubBind, 4<<20, nil)
	d, err := daemon.New(cfg, store, server, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	socket := filepath.Join(t.TempDir(), "control.sock")
	srv, err := NewServer(context.Background(), socket, d, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, store, cfg
}

func TestPingRoundTrip(t *testing.T) {
	client, _, _ := startIPC(t)
	resp, err := client.Ping()
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !resp.Pong || resp.PID <= 0 {
		t.Fatalf("ping response = %+v", resp)
	}
}

func TestStatusReportsStoppedDaemon(t *testing.T) {
	client, _, _ := startIPC(t)
	resp, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.Running {
		t.Fatal("daemon was never started")
	}
	if resp.JobDBPath == "" || resp.LockPath == "" {
		t.Fatalf("status missing paths: %+v", resp)
	}
}

func TestJobsListFiltersByStatus(t *testing.T) {
	client, store, _ := startIPC(t)
	ctx := context.Background()

	pending, err := store.NewJob(ctx, "/tmp/a.wav", "en", "es")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	failed, err := store.NewJob(ctx, "/tmp/b.wav", "en", "fr")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := store.MarkFailed(ctx, failed.ID, "synthesis crashed"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	all, err := client.JobsList(nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all.Items) != 2 {
		t.Fatalf("all jobs = %d, want 2", len(all.Items))
	}

	onlyFailed, err := client.JobsList([]string{string(jobs.StatusFailed)})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(onlyFailed.Items) != 1 || onlyFailed.Items[0].ID != failed.ID {
		t.Fatalf("failed jobs = %+v", onlyFailed.Items)
	}
	if onlyFailed.Items[0].ErrorMessage != "synthesis crashed" {
		t.Fatalf("error message = %q", onlyFailed.Items[0].ErrorMessage)
	}

	if _, err := client.JobsList([]string{"bogus"}); err == nil {
		t.Fatal("unknown status should be rejected")
	}

	described, err := client.JobDescribe(pending.ID)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if described.Item.Status != string(jobs.StatusPending) {
		t.Fatalf("described status = %s", described.Item.Status)
	}
}

func TestJobDescribeRejectsBadID(t *testing.T) {
	client, _, _ := startIPC(t)
	if _, err := client.JobDescribe(0); err == nil {
		t.Fatal("id 0 should be rejected")
	}
	if _, err := client.JobDescribe(9999); err == nil {
		t.Fatal("missing job should be rejected")
	}
}

func TestLogTailReturnsTrailingLines(t *testing.T) {
	client, _, cfg := startIPC(t)

	content := "first line\nsecond line\nthird line\n"
	if err := os.WriteFile(cfg.LogFilePath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	resp, err := client.LogTail(LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("log tail: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "second line" || resp.Lines[1] != "third line" {
		t.Fatalf("unexpected lines: %#v", resp.Lines)
	}
	if resp.Offset != int64(len(content)) {
		t.Fatalf("offset = %d, want %d", resp.Offset, len(content))
	}
}

func TestLogTailMissingFile(t *testing.T) {
	client, _, _ := startIPC(t)

	resp, err := client.LogTail(LogTailRequest{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("log tail: %v", err)
	}
	if len(resp.Lines) != 0 || resp.Offset != 0 {
		t.Fatalf("expected empty result, got %#v", resp)
	}
}
