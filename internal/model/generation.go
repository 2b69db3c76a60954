package model

import "time"

// Generation status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// GenerationEvent is a single persisted status observation from the remote
// job poll loop.
type GenerationEvent struct {
	ID           int64     `json:"id"`
	GenerationID string    `json:"generation_id"`
	Seq          int       `json:"seq"`
	Status       string    `json:"status"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Generation represents one image-generation request driven through the
// remote inference service. ImageData holds the decoded artifact for
// completed generations; it is served from its own endpoint and never
// embedded in JSON responses.
type Generation struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	ModelID     string     `json:"model_id"`
	Prompt      string     `json:"prompt"`
	RequestID   string     `json:"request_id,omitempty"`
	OutputURL   string     `json:"output_url,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
	ImageData   []byte     `json:"-"`
	Error       string     `json:"error,omitempty"`
	DurationMS  *int       `json:"duration_ms,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the status is one no generation leaves.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
