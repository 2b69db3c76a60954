package inference

import (
	"context"
	"fmt"
)

// Generate drives one job through the full lifecycle: submit, poll to a
// terminal state, extract the image artifact. The returned handle is
// valid as soon as submission succeeds, including on later failures, so
// callers can correlate diagnostics with the remote job. Phase context
// is added to errors without converting them; errors.As still matches
// the underlying taxonomy type.
func (c *Client) Generate(ctx context.Context, modelID string, input map[string]any, tags []string, opts PollOptions) (JobHandle, *Artifact, error) {
	handle, err := c.Submit(ctx, modelID, input, tags)
	if err != nil {
		return JobHandle{}, nil, fmt.Errorf("submit phase: %w", err)
	}
	c.logger.Debug("job submitted", "model_id", modelID, "request_id", handle.RequestID)

	result, err := c.AwaitCompletion(ctx, handle, opts)
	if err != nil {
		return handle, nil, fmt.Errorf("poll phase for job %s: %w", handle.RequestID, err)
	}

	artifact, err := c.Extract(ctx, result)
	if err != nil {
		return handle, nil, fmt.Errorf("extract phase for job %s: %w", handle.RequestID, err)
	}

	return handle, artifact, nil
}
