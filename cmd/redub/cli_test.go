package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redub/internal/config"
	"redub/internal/daemon"
	"redub/internal/ipc"
	"redub/internal/testsupport"
	"redub/internal/worker"
)

func startDaemonIPC(t *testing.T) (string, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	server := worker.NewServer(cfg.Transport.PushBind, cfg.Transport.PubBind, 4<<20, nil)
	d, err := daemon.New(cfg, store, server, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if _, err := store.NewJob(context.Background(), "/tmp/show.wav", "en", "de"); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(context.Background(), socket, d, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	return socket, cfg
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	socket, _ := startDaemonIPC(t)
	output, err := runCommand(t, "status", "--socket", socket)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, output)
	}
	if !strings.Contains(output, "stopped") {
		t.Fatalf("status should report a stopped daemon:\n%s", output)
	}
	if !strings.Contains(output, "pending:") {
		t.Fatalf("status should include job stats:\n%s", output)
	}
}

func TestPingCommand(t *testing.T) {
	socket, _ := startDaemonIPC(t)
	output, err := runCommand(t, "ping", "--socket", socket)
	if err != nil {
		t.Fatalf("ping: %v\n%s", err, output)
	}
	if !strings.Contains(output, "pong") {
		t.Fatalf("ping output = %q", output)
	}
}

func TestPingCommandNoDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	if _, err := runCommand(t, "ping", "--socket", socket); err == nil {
		t.Fatal("ping should fail without a daemon")
	}
}

func TestJobsListCommand(t *testing.T) {
	socket, _ := startDaemonIPC(t)
	output, err := runCommand(t, "jobs", "list", "--socket", socket)
	if err != nil {
		t.Fatalf("jobs list: %v\n%s", err, output)
	}
	if !strings.Contains(output, "en -> de") {
		t.Fatalf("jobs list output = %s", output)
	}
	if !strings.Contains(output, "pending") {
		t.Fatalf("jobs list should show status:\n%s", output)
	}
}

func TestJobsDescribeCommand(t *testing.T) {
	socket, _ := startDaemonIPC(t)
	output, err := runCommand(t, "jobs", "describe", "1", "--socket", socket)
	if err != nil {
		t.Fatalf("jobs describe: %v\n%s", err, output)
	}
	if !strings.Contains(output, "/tmp/show.wav") {
		t.Fatalf("describe output = %s", output)
	}

	if _, err := runCommand(t, "jobs", "describe", "banana", "--socket", socket); err == nil {
		t.Fatal("non-numeric id should be rejected")
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	output, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, output)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read generated config: %v", err)
	}
	if !strings.Contains(string(data), "[transport]") {
		t.Fatalf("sample config missing transport section:\n%s", data)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "-" {
		t.Fatalf("formatDuration(0) = %q", got)
	}
	if got := formatDuration(2200); got != "2.2s" {
		t.Fatalf("formatDuration(2200) = %q", got)
	}
}

func TestLogsCommand(t *testing.T) {
	socket, cfg := startDaemonIPC(t)
	if err := os.WriteFile(cfg.LogFilePath(), []byte("daemon started\njob accepted\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	output, err := runCommand(t, "logs", "--socket", socket, "--lines", "1")
	if err != nil {
		t.Fatalf("logs: %v\n%s", err, output)
	}
	if strings.Contains(output, "daemon started") {
		t.Fatalf("expected only the last line, got:\n%s", output)
	}
	if !strings.Contains(output, "job accepted") {
		t.Fatalf("missing log line in output:\n%s", output)
	}
}
