package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/photosnap/forge/internal/inference"
	"github.com/photosnap/forge/internal/service"
)

// generateRequest is the JSON body for POST /v1/generate, /v1/uploads,
// and /v1/generations.
type generateRequest struct {
	Prompt  string         `json:"prompt"`
	ModelID string         `json:"model_id"`
	Options map[string]any `json:"options"`
	Tags    []string       `json:"tags"`
}

// errorResponse carries an error message plus optional raw upstream
// payloads for diagnosing malformed or imageless results.
type errorResponse struct {
	Error    string          `json:"error"`
	Response json.RawMessage `json:"response,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// uploadResponse is the JSON response for POST /v1/uploads.
type uploadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	URL          string `json:"url"`
	Key          string `json:"key"`
	GenerationID string `json:"generation_id"`
}

// decodeGenerateRequest parses and validates the request body, applying
// the default model when none is given. Returns false after writing an
// error response.
func (s *Server) decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (service.Request, bool) {
	var req generateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return service.Request{}, false
	}

	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return service.Request{}, false
	}
	if req.ModelID == "" {
		req.ModelID = s.defaultModel
	}

	return service.Request{
		Prompt:  req.Prompt,
		ModelID: req.ModelID,
		Options: req.Options,
		Tags:    req.Tags,
	}, true
}

// handleGenerate runs a generation synchronously and responds with the
// raw image bytes.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGenerateRequest(w, r)
	if !ok {
		return
	}

	gen, artifact, err := s.service.Generate(r.Context(), req)
	observeGeneration(req.ModelID, err)
	if err != nil {
		s.logger.Error("generation failed", "model_id", req.ModelID, "error", err)
		s.writeGenerationError(w, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("X-Generation-Id", gen.ID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Bytes); err != nil {
		s.logger.Error("write image response", "generation_id", gen.ID, "error", err)
	}
}

// handleUpload runs a generation synchronously, stores the image in
// object storage, and responds with the public URL.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGenerateRequest(w, r)
	if !ok {
		return
	}
	req.Upload = true

	gen, _, err := s.service.Generate(r.Context(), req)
	if errors.Is(err, service.ErrNoUploader) {
		s.writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		return
	}
	observeGeneration(req.ModelID, err)
	if err != nil {
		s.logger.Error("upload generation failed", "model_id", req.ModelID, "error", err)
		s.writeGenerationError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Success:      true,
		Message:      "image generated and uploaded",
		URL:          gen.OutputURL,
		Key:          objectKeyFromURL(gen.OutputURL),
		GenerationID: gen.ID,
	})
}

// objectKeyFromURL recovers the object key from a bucket-subdomain
// public URL.
func objectKeyFromURL(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// writeGenerationError maps the generation error taxonomy onto HTTP
// status codes, attaching raw upstream payloads where they help
// diagnose the failure.
func (s *Server) writeGenerationError(w http.ResponseWriter, err error) {
	var (
		pollTimeout *inference.PollTimeoutError
		malformed   *inference.MalformedResponseError
		noImage     *inference.NoImageFoundError
		jobFailed   *inference.JobFailedError
		submission  *inference.SubmissionError
		transport   *inference.TransportError
	)

	switch {
	case errors.As(err, &pollTimeout):
		s.writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
	case errors.As(err, &malformed):
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Response: malformed.Response})
	case errors.As(err, &noImage):
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Result: noImage.Result})
	case errors.As(err, &jobFailed), errors.As(err, &submission), errors.As(err, &transport):
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "generation failed"})
	}
}
