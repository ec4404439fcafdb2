package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify every failure the transport and dubbing pipeline
// can surface. Callers match with errors.Is; the raw cause stays wrapped.
var (
	// ErrTransport marks socket or framing I/O failures.
	ErrTransport = errors.New("transport error")
	// ErrTimeout marks a request with no matching response within its bound.
	ErrTimeout = errors.New("timeout")
	// ErrCircuitOpen marks calls rejected while the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrBackendUnavailable marks the absence of any installable synthesis backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrAlignment marks a segment whose words could not be matched in the re-transcription.
	ErrAlignment = errors.New("alignment mismatch")
	// ErrDurationDrift marks a slice whose time-stretch would exceed the safe ratio.
	ErrDurationDrift = errors.New("duration drift")
	// ErrInvalidRequest marks a malformed or unresolvable request rejected before send.
	ErrInvalidRequest = errors.New("invalid request")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Terminal reports whether the error is one retries cannot fix. The retry
// handler stops immediately on terminal errors instead of burning attempts.
func Terminal(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, ErrCircuitOpen):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
