package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/photosnap/forge/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.AvgDurationMS != 0 {
		t.Errorf("avg_duration_ms = %f, want 0", stats.AvgDurationMS)
	}
}

func TestGetStatsPopulated(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	// Three completed generations on the default model.
	for range 3 {
		g := &model.Generation{
			ID: model.NewID(), Status: model.StatusPending,
			ModelID: testModel, Prompt: "a lighthouse",
			CreatedAt: time.Now().UTC(),
		}
		if err := srv.store.CreateGeneration(ctx, g); err != nil {
			t.Fatalf("CreateGeneration: %v", err)
		}
		if err := srv.store.UpdateGenerationStatus(ctx, g.ID, model.StatusRunning); err != nil {
			t.Fatalf("pending→running: %v", err)
		}
		dur := 100
		g.Status = model.StatusCompleted
		g.DurationMS = &dur
		g.StartedAt = ptrTime(time.Now())
		g.FinishedAt = ptrTime(time.Now())
		if err := srv.store.UpdateGeneration(ctx, g); err != nil {
			t.Fatalf("UpdateGeneration: %v", err)
		}
	}

	// One failed generation on a different model.
	fg := &model.Generation{
		ID: model.NewID(), Status: model.StatusPending,
		ModelID: "stability/sdxl", Prompt: "doomed",
		CreatedAt: time.Now().UTC(),
	}
	if err := srv.store.CreateGeneration(ctx, fg); err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}
	if err := srv.store.UpdateGenerationStatus(ctx, fg.ID, model.StatusFailed); err != nil {
		t.Fatalf("pending→failed: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByStatus["completed"] != 3 {
		t.Errorf("by_status[completed] = %d, want 3", stats.ByStatus["completed"])
	}
	if stats.ByStatus["failed"] != 1 {
		t.Errorf("by_status[failed] = %d, want 1", stats.ByStatus["failed"])
	}
	if stats.ByModel[testModel] != 3 {
		t.Errorf("by_model[%s] = %d, want 3", testModel, stats.ByModel[testModel])
	}
	if stats.ByModel["stability/sdxl"] != 1 {
		t.Errorf("by_model[stability/sdxl] = %d, want 1", stats.ByModel["stability/sdxl"])
	}
	if stats.AvgDurationMS != 100 {
		t.Errorf("avg_duration_ms = %f, want 100", stats.AvgDurationMS)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
