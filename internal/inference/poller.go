package inference

import (
	"context"
	"time"
)

// Default polling cadence for the status loop. Interval and timeout are
// independent settings; both can be overridden per call.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 60 * time.Second
)

// PollOptions controls the status loop. Zero values fall back to the
// defaults. OnStatus, when set, observes every status check with the
// normalized state and the raw payload.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	OnStatus func(status JobStatus, payload []byte)
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultPollTimeout
	}
	return o
}

// AwaitCompletion polls the status endpoint until the job reaches a
// terminal state, then fetches the final payload from the result
// endpoint. The deadline is checked after each status fetch, never
// before, so a job discovered terminal exactly on the boundary still
// resolves within the same iteration. Between checks the loop waits on
// the context, so polling stops when the calling request is aborted.
// There is no iteration cap beyond the wall-clock timeout.
func (c *Client) AwaitCompletion(ctx context.Context, h JobHandle, opts PollOptions) (JobResult, error) {
	opts = opts.withDefaults()
	start := time.Now()

	for {
		payload, err := c.Status(ctx, h)
		if err != nil {
			return nil, err
		}

		status := statusFromPayload(payload)
		c.logger.Debug("job status", "request_id", h.RequestID, "status", status.String())
		if opts.OnStatus != nil {
			opts.OnStatus(status, payload)
		}

		switch status {
		case JobComplete:
			return c.Result(ctx, h)
		case JobFailed:
			return nil, &JobFailedError{RequestID: h.RequestID, Status: payload}
		}

		if time.Since(start) > opts.Timeout {
			return nil, &PollTimeoutError{RequestID: h.RequestID, Timeout: opts.Timeout}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}
