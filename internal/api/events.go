package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/photosnap/forge/internal/model"
	"github.com/photosnap/forge/internal/store"
)

// handleStreamEvents streams a generation's poll-status events over SSE
// until the generation reaches a terminal state.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	gen, err := s.store.GetGeneration(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "generation not found")
		return
	}
	if err != nil {
		s.logger.Error("get generation for events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get generation")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// If already in a terminal state, return empty stream immediately.
	if model.Terminal(gen.Status) {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe to the event stream. This is safe even if the generation
	// completed between the status check above and this call — Subscribe
	// on a closed topic returns a closed channel, causing the loop below
	// to exit immediately.
	ch, unsub := s.service.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				// Generation finished; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEData(w, e); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// eventHistoryResponse is the JSON response for
// GET /v1/generations/:id/events/history.
type eventHistoryResponse struct {
	GenerationID string                  `json:"generation_id"`
	Events       []model.GenerationEvent `json:"events"`
}

func (s *Server) handleGetEventHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify generation exists.
	_, err := s.store.GetGeneration(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "generation not found")
		return
	}
	if err != nil {
		s.logger.Error("get generation for event history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get generation")
		return
	}

	events, err := s.store.GetEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("get events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}

	if events == nil {
		events = []model.GenerationEvent{}
	}

	s.writeJSON(w, http.StatusOK, eventHistoryResponse{
		GenerationID: id,
		Events:       events,
	})
}

// writeSSEData writes an event as a JSON-encoded SSE data frame.
func writeSSEData(w http.ResponseWriter, e model.GenerationEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
