package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/photosnap/forge/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestGeneration() *model.Generation {
	return &model.Generation{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		ModelID:   "fal-ai/flux/schnell",
		Prompt:    "a lighthouse at dusk",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGetGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := makeTestGeneration()

	if err := s.CreateGeneration(ctx, g); err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}

	got, err := s.GetGeneration(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}

	if got.ID != g.ID {
		t.Errorf("ID = %q, want %q", got.ID, g.ID)
	}
	if got.Status != g.Status {
		t.Errorf("Status = %q, want %q", got.Status, g.Status)
	}
	if got.ModelID != g.ModelID {
		t.Errorf("ModelID = %q, want %q", got.ModelID, g.ModelID)
	}
	if got.Prompt != g.Prompt {
		t.Errorf("Prompt = %q, want %q", got.Prompt, g.Prompt)
	}
}

func TestGetGenerationNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetGeneration(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGeneration error = %v, want ErrNotFound", err)
	}
}

func TestListGenerationsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g := makeTestGeneration()
		g.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second).Truncate(time.Second)
		if err := s.CreateGeneration(ctx, g); err != nil {
			t.Fatalf("CreateGeneration[%d]: %v", i, err)
		}
	}

	generations, total, err := s.ListGenerations(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListGenerations: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(generations) != 2 {
		t.Errorf("len(generations) = %d, want 2", len(generations))
	}

	page2, total2, err := s.ListGenerations(ctx, 2, 4)
	if err != nil {
		t.Fatalf("ListGenerations page 2: %v", err)
	}
	if total2 != 5 {
		t.Errorf("total page 2 = %d, want 5", total2)
	}
	if len(page2) != 1 {
		t.Errorf("len(generations) page 2 = %d, want 1", len(page2))
	}
}

func TestListGenerationsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g := makeTestGeneration()
		g.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if err := s.CreateGeneration(ctx, g); err != nil {
			t.Fatalf("CreateGeneration[%d]: %v", i, err)
		}
	}

	generations, _, err := s.ListGenerations(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListGenerations: %v", err)
	}

	// Newest first.
	for i := 1; i < len(generations); i++ {
		if generations[i].CreatedAt.After(generations[i-1].CreatedAt) {
			t.Errorf("generations[%d] is newer than generations[%d]", i, i-1)
		}
	}
}

func TestUpdateGenerationStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := makeTestGeneration()
	if err := s.CreateGeneration(ctx, g); err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}

	if err := s.UpdateGenerationStatus(ctx, g.ID, model.StatusRunning); err != nil {
		t.Fatalf("pending->running: %v", err)
	}
	running, _ := s.GetGeneration(ctx, g.ID)
	if running.StartedAt == nil {
		t.Error("started_at not set on running transition")
	}

	if err := s.UpdateGenerationStatus(ctx, g.ID, model.StatusCompleted); err != nil {
		t.Fatalf("running->completed: %v", err)
	}
	completed, _ := s.GetGeneration(ctx, g.ID)
	if completed.FinishedAt == nil {
		t.Error("finished_at not set on terminal transition")
	}

	// Terminal states accept no further transitions.
	err := s.UpdateGenerationStatus(ctx, g.ID, model.StatusRunning)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("completed->running error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateGenerationStatusNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateGenerationStatus(context.Background(), "nonexistent", model.StatusRunning)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateGenerationTerminalFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := makeTestGeneration()
	if err := s.CreateGeneration(ctx, g); err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	started := now.Add(-2 * time.Second)
	duration := 2000
	g.Status = model.StatusCompleted
	g.RequestID = "req-1"
	g.OutputURL = "https://bucket.sgp1.digitaloceanspaces.com/generated_images/x.png"
	g.ContentType = "image/png"
	g.ImageData = []byte("fake-png")
	g.SizeBytes = int64(len(g.ImageData))
	g.DurationMS = &duration
	g.StartedAt = &started
	g.FinishedAt = &now

	if err := s.UpdateGeneration(ctx, g); err != nil {
		t.Fatalf("UpdateGeneration: %v", err)
	}

	got, err := s.GetGeneration(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", got.RequestID)
	}
	if string(got.ImageData) != "fake-png" {
		t.Errorf("ImageData = %q, want fake-png", got.ImageData)
	}
	if got.SizeBytes != int64(len("fake-png")) {
		t.Errorf("SizeBytes = %d, want %d", got.SizeBytes, len("fake-png"))
	}
	if got.DurationMS == nil || *got.DurationMS != 2000 {
		t.Errorf("DurationMS = %v, want 2000", got.DurationMS)
	}
}

func TestUpdateGenerationNotFound(t *testing.T) {
	s := newTestStore(t)
	g := makeTestGeneration()

	err := s.UpdateGeneration(context.Background(), g)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetGenerationStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	durations := []int{1000, 3000}
	for i := range durations {
		g := makeTestGeneration()
		if err := s.CreateGeneration(ctx, g); err != nil {
			t.Fatalf("CreateGeneration: %v", err)
		}
		g.Status = model.StatusCompleted
		g.DurationMS = &durations[i]
		if err := s.UpdateGeneration(ctx, g); err != nil {
			t.Fatalf("UpdateGeneration: %v", err)
		}
	}
	failed := makeTestGeneration()
	failed.ModelID = "stability/sdxl"
	if err := s.CreateGeneration(ctx, failed); err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}

	stats, err := s.GetGenerationStats(ctx)
	if err != nil {
		t.Fatalf("GetGenerationStats: %v", err)
	}

	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.CountByStatus[model.StatusCompleted] != 2 {
		t.Errorf("completed count = %d, want 2", stats.CountByStatus[model.StatusCompleted])
	}
	if stats.CountByStatus[model.StatusPending] != 1 {
		t.Errorf("pending count = %d, want 1", stats.CountByStatus[model.StatusPending])
	}
	if stats.CountByModel["fal-ai/flux/schnell"] != 2 {
		t.Errorf("flux count = %d, want 2", stats.CountByModel["fal-ai/flux/schnell"])
	}
	if stats.AvgDurationMS != 2000 {
		t.Errorf("AvgDurationMS = %f, want 2000", stats.AvgDurationMS)
	}
}

func TestEventsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := makeTestGeneration()
	if err := s.CreateGeneration(ctx, g); err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}

	observations := []string{"pending", "running", "complete"}
	for i, status := range observations {
		if err := s.InsertEvent(ctx, g.ID, i, status, `{"status":"`+status+`"}`); err != nil {
			t.Fatalf("InsertEvent[%d]: %v", i, err)
		}
	}

	events, err := s.GetEvents(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	for i, e := range events {
		if e.Seq != i {
			t.Errorf("events[%d].Seq = %d, want %d", i, e.Seq, i)
		}
		if e.Status != observations[i] {
			t.Errorf("events[%d].Status = %q, want %q", i, e.Status, observations[i])
		}
		if e.GenerationID != g.ID {
			t.Errorf("events[%d].GenerationID = %q, want %q", i, e.GenerationID, g.ID)
		}
	}
}

func TestGetEventsEmpty(t *testing.T) {
	s := newTestStore(t)

	events, err := s.GetEvents(context.Background(), "no-such-generation")
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(events))
	}
}
