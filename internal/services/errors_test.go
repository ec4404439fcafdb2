package services_test

import (
	"errors"
	"strings"
	"testing"

	"redub/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "dispatch", "send", "push failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"dispatch", "send", "push failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "align", "match", "no words", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestTerminalClassification(t *testing.T) {
	terminal := []error{
		services.Wrap(services.ErrInvalidRequest, "dispatch", "build", "no audio", nil),
		services.Wrap(services.ErrBackendUnavailable, "tts", "init", "nothing installable", nil),
		services.ErrCircuitOpen,
	}
	for _, err := range terminal {
		if !services.Terminal(err) {
			t.Fatalf("expected %v to be terminal", err)
		}
	}

	retryable := []error{
		services.Wrap(services.ErrTransport, "conn", "recv", "reset", errors.New("io")),
		services.Wrap(services.ErrTimeout, "router", "sweep", "expired", nil),
		services.ErrTransient,
	}
	for _, err := range retryable {
		if services.Terminal(err) {
			t.Fatalf("expected %v to be retryable", err)
		}
	}
}
