package ipc

import "time"

// PingRequest probes daemon liveness.
type PingRequest struct{}

// PingResponse acknowledges a ping.
type PingResponse struct {
	Pong bool `json:"pong"`
	PID  int  `json:"pid"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon runtime information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	LockPath      string         `json:"lock_path"`
	JobDBPath     string         `json:"job_db_path"`
	PushBind      string         `json:"push_bind"`
	PubBind       string         `json:"pub_bind"`
	TTSState      string         `json:"tts_state"`
	TTSBackend    string         `json:"tts_backend"`
	Subscribers   int            `json:"subscribers"`
	JobStats      map[string]int `json:"job_stats"`
}

// JobsListRequest filters job listing by status.
type JobsListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobItem mirrors a job row for IPC callers.
type JobItem struct {
	ID             int64     `json:"id"`
	CorrelationID  string    `json:"correlation_id"`
	SourcePath     string    `json:"source_path"`
	OutputPath     string    `json:"output_path"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	Status         string    `json:"status"`
	ErrorMessage   string    `json:"error_message"`
	FailedSegments []int     `json:"failed_segments"`
	SegmentCount   int       `json:"segment_count"`
	SpeakerCount   int       `json:"speaker_count"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// JobsListResponse contains job entries.
type JobsListResponse struct {
	Items []JobItem `json:"items"`
}

// JobDescribeRequest fetches a single job by id.
type JobDescribeRequest struct {
	ID int64 `json:"id"`
}

// JobDescribeResponse contains a single job entry.
type JobDescribeResponse struct {
	Item JobItem `json:"item"`
}

// LogTailRequest reads daemon log lines. A negative offset requests the
// last Limit lines; Follow makes the daemon hold the request for up to
// WaitMS when no new lines are available.
type LogTailRequest struct {
	Offset int64 `json:"offset"`
	Limit  int   `json:"limit"`
	Follow bool  `json:"follow"`
	WaitMS int   `json:"wait_ms"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
