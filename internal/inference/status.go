package inference

import (
	"strings"

	"github.com/tidwall/gjson"
)

// JobStatus is the normalized state of a remote job.
type JobStatus int

const (
	JobPending JobStatus = iota
	JobRunning
	JobComplete
	JobFailed
	JobUnknown
)

func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobComplete:
		return "complete"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// NormalizeStatus maps the free-form status strings returned by the
// inference service onto a JobStatus. Matching is case-insensitive and
// unrecognized values count as still in flight.
func NormalizeStatus(raw string) JobStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETE", "SUCCEEDED", "SUCCESS":
		return JobComplete
	case "FAILED", "ERROR":
		return JobFailed
	case "PENDING", "QUEUED", "IN_QUEUE":
		return JobPending
	case "RUNNING", "IN_PROGRESS", "PROCESSING":
		return JobRunning
	default:
		return JobUnknown
	}
}

// statusKeys are the payload keys that may carry the job state, in
// priority order.
var statusKeys = []string{"status", "state"}

// statusFromPayload reads the first present status key from a raw status
// payload and normalizes it.
func statusFromPayload(payload []byte) JobStatus {
	for _, key := range statusKeys {
		if v := gjson.GetBytes(payload, key); v.Exists() {
			return NormalizeStatus(v.String())
		}
	}
	return JobUnknown
}
