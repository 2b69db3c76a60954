package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/photosnap/forge/internal/model"
	"github.com/photosnap/forge/internal/service"
	"github.com/photosnap/forge/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// listGenerationsResponse wraps the paginated list response.
type listGenerationsResponse struct {
	Generations []*model.Generation `json:"generations"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

// handleSubmitGeneration starts a generation asynchronously and responds
// with the pending record.
func (s *Server) handleSubmitGeneration(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGenerateRequest(w, r)
	if !ok {
		return
	}

	gen, err := s.service.Submit(r.Context(), req)
	if errors.Is(err, service.ErrNoUploader) {
		s.writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		return
	}
	if err != nil {
		s.logger.Error("submit generation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit generation")
		return
	}

	s.writeJSON(w, http.StatusAccepted, gen)
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	gen, err := s.store.GetGeneration(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "generation not found")
		return
	}
	if err != nil {
		s.logger.Error("get generation", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get generation")
		return
	}

	s.writeJSON(w, http.StatusOK, gen)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	generations, total, err := s.store.ListGenerations(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list generations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list generations")
		return
	}

	if generations == nil {
		generations = []*model.Generation{}
	}

	s.writeJSON(w, http.StatusOK, listGenerationsResponse{
		Generations: generations,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	})
}

// handleGetGenerationImage serves the stored artifact bytes of a
// completed generation.
func (s *Server) handleGetGenerationImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	gen, err := s.store.GetGeneration(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "generation not found")
		return
	}
	if err != nil {
		s.logger.Error("get generation image", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get generation")
		return
	}

	if gen.Status != model.StatusCompleted || len(gen.ImageData) == 0 {
		s.writeError(w, http.StatusNotFound, "no image available for this generation")
		return
	}

	contentType := gen.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(gen.ImageData); err != nil {
		s.logger.Error("write stored image", "generation_id", id, "error", err)
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
