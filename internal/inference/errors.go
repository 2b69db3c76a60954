package inference

import (
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionError reports a submit call that failed at the transport
// level or returned a non-2xx status.
type SubmissionError struct {
	StatusCode int             // zero when no response was received
	Body       json.RawMessage // raw response body, when any
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submit job: %v", e.Err)
	}
	return fmt.Sprintf("submit job: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// MalformedResponseError reports a 2xx submit response that carried no
// recognizable request identifier. Response holds the raw body for
// diagnostics.
type MalformedResponseError struct {
	Response json.RawMessage
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("no request id in async-invoke response: %s", e.Response)
}

// TransportError reports a failed status, result, or asset fetch.
type TransportError struct {
	Op         string // "status", "result", or "asset"
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// JobFailedError reports a job the remote service moved to a terminal
// failure state. Status holds the last status payload.
type JobFailedError struct {
	RequestID string
	Status    json.RawMessage
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.RequestID, e.Status)
}

// PollTimeoutError reports a job that did not reach a terminal state
// within the polling deadline.
type PollTimeoutError struct {
	RequestID string
	Timeout   time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("job %s: polling timed out after %s", e.RequestID, e.Timeout)
}

// NoImageFoundError reports a completed result in which no extraction
// strategy found an image reference. Result holds the full payload.
type NoImageFoundError struct {
	Result json.RawMessage
}

func (e *NoImageFoundError) Error() string {
	return "no image found in inference result"
}
