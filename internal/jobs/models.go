package jobs

import (
	"errors"
	"time"

	"redub/internal/services"
)

// Status is the lifecycle of a dubbing job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusDubbing      Status = "dubbing"
	StatusAssembling   Status = "assembling"
	StatusCompleted    Status = "completed"
	StatusPartial      Status = "partial"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusTranscribing,
	StatusDubbing,
	StatusAssembling,
	StatusCompleted,
	StatusPartial,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ValidStatus reports whether s names a known status.
func ValidStatus(s Status) bool {
	_, ok := statusSet[s]
	return ok
}

var processingStatuses = map[Status]struct{}{
	StatusTranscribing: {},
	StatusDubbing:      {},
	StatusAssembling:   {},
}

// Processing reports whether the status is an in-flight stage.
func (s Status) Processing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// Terminal reports whether no further transitions apply.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// DaemonStopReason is recorded when in-flight jobs are failed at shutdown.
const DaemonStopReason = "daemon stopped"

// Job is one dubbing request tracked in the store.
type Job struct {
	ID             int64
	CorrelationID  string
	SourcePath     string
	OutputPath     string
	SourceLanguage string
	TargetLanguage string
	Status         Status
	ErrorMessage   string
	FailedSegments []int
	SegmentCount   int
	SpeakerCount   int
	DurationMS     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FailureStatus maps a pipeline error to the terminal status a job should
// record. Alignment and drift failures usually accompany a partial dub;
// anything else is a hard failure.
func FailureStatus(err error) Status {
	if errors.Is(err, services.ErrAlignment) || errors.Is(err, services.ErrDurationDrift) {
		return StatusPartial
	}
	return StatusFailed
}
