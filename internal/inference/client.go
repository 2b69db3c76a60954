package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Per-call timeouts for outbound requests. Every call carries its own
// deadline so a slow result fetch cannot consume the status budget.
const (
	submitTimeout = 30 * time.Second
	statusTimeout = 10 * time.Second
	resultTimeout = 60 * time.Second
	assetTimeout  = 30 * time.Second
)

// maxResponseSize caps how much of an upstream body is read. Large enough
// for full-resolution images, small enough to bound memory per request.
const maxResponseSize = 64 << 20

// JobHandle correlates all calls about one remote job. Its lifetime is a
// single orchestration.
type JobHandle struct {
	RequestID string `json:"request_id"`
}

// JobResult is the raw JSON payload of a completed job. The shape is not
// contractually fixed across models, so it stays undecoded until
// extraction.
type JobResult []byte

// Artifact is the decoded image produced by a completed job.
type Artifact struct {
	Bytes       []byte
	ContentType string
}

// Config holds the settings for one inference upstream.
type Config struct {
	BaseURL   string // async-invoke endpoint, e.g. https://inference.do-ai.run/v1/async-invoke
	AccessKey string // bearer token sent on submit, status, and result calls
}

// Client drives jobs on a serverless inference async-invoke API.
// It is safe for concurrent use; each orchestration is independent.
type Client struct {
	baseURL   string
	accessKey string
	http      *http.Client
	logger    *slog.Logger
}

// NewClient creates a client for the given upstream.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accessKey: cfg.AccessKey,
		http:      &http.Client{},
		logger:    logger,
	}
}

// submitRequest is the JSON body of the submit call. Tags are omitted
// when absent.
type submitRequest struct {
	ModelID string         `json:"model_id"`
	Input   map[string]any `json:"input"`
	Tags    []string       `json:"tags,omitempty"`
}

// requestIDKeys are the submit-response keys that may carry the job
// identifier, in priority order.
var requestIDKeys = []string{"request_id", "id", "requestId"}

// Submit starts an async job and returns its handle. The submission is
// never retried; failures surface immediately as a SubmissionError, or a
// MalformedResponseError when the response carries no request id.
func (c *Client) Submit(ctx context.Context, modelID string, input map[string]any, tags []string) (JobHandle, error) {
	body, err := json.Marshal(submitRequest{ModelID: modelID, Input: input, Tags: tags})
	if err != nil {
		return JobHandle{}, &SubmissionError{Err: fmt.Errorf("encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return JobHandle{}, &SubmissionError{Err: err}
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return JobHandle{}, &SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return JobHandle{}, &SubmissionError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return JobHandle{}, &SubmissionError{StatusCode: resp.StatusCode, Body: respBody}
	}

	for _, key := range requestIDKeys {
		if v := gjson.GetBytes(respBody, key); v.Exists() && v.String() != "" {
			return JobHandle{RequestID: v.String()}, nil
		}
	}
	return JobHandle{}, &MalformedResponseError{Response: respBody}
}

// Status fetches the job's current raw status payload.
func (c *Client) Status(ctx context.Context, h JobHandle) ([]byte, error) {
	body, _, err := c.get(ctx, "status", c.baseURL+"/"+h.RequestID+"/status", statusTimeout, true)
	return body, err
}

// Result fetches the final payload of a completed job. The status
// endpoint alone is not authoritative for final data.
func (c *Client) Result(ctx context.Context, h JobHandle) (JobResult, error) {
	body, _, err := c.get(ctx, "result", c.baseURL+"/"+h.RequestID, resultTimeout, true)
	return JobResult(body), err
}

// FetchAsset downloads an image URL discovered in a job result and
// returns its bytes with the declared content type, defaulting to
// image/png when the header is absent.
func (c *Client) FetchAsset(ctx context.Context, url string) ([]byte, string, error) {
	body, contentType, err := c.get(ctx, "asset", url, assetTimeout, false)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	return body, contentType, nil
}

// get issues a GET with its own deadline, returning the body and content
// type on 2xx and a TransportError otherwise.
func (c *Client) get(ctx context.Context, op, url string, timeout time.Duration, auth bool) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &TransportError{Op: op, URL: url, Err: err}
	}
	if auth {
		c.setAuthHeaders(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", &TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode}
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	if c.accessKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessKey)
	}
}
