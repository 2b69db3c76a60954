// Package service drives generation records through the remote inference
// lifecycle, persisting progress and streaming status events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/photosnap/forge/internal/inference"
	"github.com/photosnap/forge/internal/model"
	"github.com/photosnap/forge/internal/storage"
	"github.com/photosnap/forge/internal/store"
)

// submitGrace pads the background deadline for asynchronous runs so the
// poll loop hits its own timeout before the context expires.
const submitGrace = 30 * time.Second

// ErrNoUploader is returned when an upload is requested but no object
// storage credentials were configured.
var ErrNoUploader = errors.New("object storage not configured")

// Request describes one generation to run.
type Request struct {
	Prompt  string
	ModelID string
	Options map[string]any
	Tags    []string
	Upload  bool
}

// Options tunes the poll loop for all generations run by a Service.
// Zero values fall back to the client defaults.
type Options struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Service orchestrates generation execution: it records lifecycle state
// in the store, drives the remote job through the inference client, and
// publishes poll observations for streaming.
type Service struct {
	store    store.Store
	client   *inference.Client
	uploader storage.Uploader
	logger   *slog.Logger
	broker   *Broker
	wg       sync.WaitGroup

	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewService creates a generation service. uploader may be nil; upload
// requests then fail with ErrNoUploader.
func NewService(s store.Store, client *inference.Client, uploader storage.Uploader, logger *slog.Logger, opts Options) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = inference.DefaultPollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = inference.DefaultPollTimeout
	}
	return &Service{
		store:        s,
		client:       client,
		uploader:     uploader,
		logger:       logger,
		broker:       NewBroker(),
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
	}
}

// Broker returns the service's event broker for SSE subscription.
func (s *Service) Broker() *Broker {
	return s.broker
}

// Generate runs one generation synchronously: the record is created,
// driven through the remote lifecycle, and finalized before returning.
// The returned generation reflects the terminal state; on success the
// artifact carries the image bytes.
func (s *Service) Generate(ctx context.Context, req Request) (*model.Generation, *inference.Artifact, error) {
	if req.Upload && s.uploader == nil {
		return nil, nil, ErrNoUploader
	}

	gen := newGeneration(req)
	if err := s.store.CreateGeneration(ctx, gen); err != nil {
		return nil, nil, fmt.Errorf("create generation: %w", err)
	}

	artifact, err := s.run(ctx, gen, req)
	if err != nil {
		return gen, nil, err
	}
	return gen, artifact, nil
}

// Submit creates a generation record and launches asynchronous execution
// in a goroutine. The record is stored with status "pending" before
// returning. The goroutine operates on a copy of the record to avoid
// data races with the caller.
func (s *Service) Submit(ctx context.Context, req Request) (*model.Generation, error) {
	if req.Upload && s.uploader == nil {
		return nil, ErrNoUploader
	}

	gen := newGeneration(req)
	if err := s.store.CreateGeneration(ctx, gen); err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}

	genCopy := *gen
	s.wg.Go(func() {
		runCtx, cancel := context.WithTimeout(context.Background(), s.pollTimeout+submitGrace)
		defer cancel()
		if _, err := s.run(runCtx, &genCopy, req); err != nil {
			s.logger.Warn("async generation failed", "generation_id", genCopy.ID, "error", err)
		}
	})

	return gen, nil
}

// Wait blocks until all in-flight generation goroutines complete.
func (s *Service) Wait() {
	s.wg.Wait()
}

func newGeneration(req Request) *model.Generation {
	return &model.Generation{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		ModelID:   req.ModelID,
		Prompt:    req.Prompt,
		CreatedAt: time.Now().UTC(),
	}
}

// run drives the generation lifecycle: pending→running→completed/failed.
// It mutates gen in place so synchronous callers observe the final state.
func (s *Service) run(ctx context.Context, gen *model.Generation, req Request) (*inference.Artifact, error) {
	// Close the event stream when execution finishes, regardless of outcome.
	defer s.broker.Close(gen.ID)

	// Transition to running.
	if err := s.store.UpdateGenerationStatus(ctx, gen.ID, model.StatusRunning); err != nil {
		s.logger.Error("failed to transition to running", "generation_id", gen.ID, "error", err)
		s.finishFailed(gen, nil, fmt.Sprintf("failed to start: %v", err))
		return nil, fmt.Errorf("transition to running: %w", err)
	}
	gen.Status = model.StatusRunning

	// Capture start time immediately after the running transition so that
	// started_at stays consistent across success and failure paths.
	start := time.Now()

	// The prompt seeds the input; explicit options may override any key.
	input := map[string]any{"prompt": req.Prompt}
	maps.Copy(input, req.Options)

	// Each poll observation dual-writes: persist to SQLite for historical
	// viewing, then publish to the broker for real-time SSE.
	var seq atomic.Int32
	opts := inference.PollOptions{
		Interval: s.pollInterval,
		Timeout:  s.pollTimeout,
		OnStatus: func(status inference.JobStatus, payload []byte) {
			currentSeq := int(seq.Add(1) - 1)
			if err := s.store.InsertEvent(ctx, gen.ID, currentSeq, status.String(), string(payload)); err != nil {
				s.logger.Error("failed to persist status event", "generation_id", gen.ID, "seq", currentSeq, "error", err)
			}
			s.broker.Publish(gen.ID, model.GenerationEvent{
				GenerationID: gen.ID,
				Seq:          currentSeq,
				Status:       status.String(),
				Detail:       string(payload),
				CreatedAt:    time.Now().UTC(),
			})
		},
	}

	handle, artifact, err := s.client.Generate(ctx, gen.ModelID, input, req.Tags, opts)
	gen.RequestID = handle.RequestID
	if err != nil {
		s.finishFailed(gen, &start, err.Error())
		return nil, err
	}

	if req.Upload {
		key := storage.ObjectKey(req.Prompt, time.Now().UTC())
		url, upErr := s.uploader.Upload(ctx, key, artifact.Bytes, artifact.ContentType)
		if upErr != nil {
			s.finishFailed(gen, &start, fmt.Sprintf("upload %s: %v", key, upErr))
			return nil, fmt.Errorf("upload %s: %w", key, upErr)
		}
		gen.OutputURL = url
	}

	// Success — finalize with artifact metadata and wall-clock duration.
	now := time.Now().UTC()
	durationMS := int(time.Since(start).Milliseconds())

	gen.Status = model.StatusCompleted
	gen.ContentType = artifact.ContentType
	gen.ImageData = artifact.Bytes
	gen.SizeBytes = int64(len(artifact.Bytes))
	gen.DurationMS = &durationMS
	gen.StartedAt = &start
	gen.FinishedAt = &now

	if err := s.store.UpdateGeneration(context.Background(), gen); err != nil {
		s.logger.Error("failed to update completed generation", "generation_id", gen.ID, "error", err)
	}

	return artifact, nil
}

// finishFailed marks a generation as failed with the given error message.
// startedAt may be nil if execution never started.
func (s *Service) finishFailed(gen *model.Generation, startedAt *time.Time, errMsg string) {
	now := time.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(time.Since(*startedAt).Milliseconds())
	}

	gen.Status = model.StatusFailed
	gen.Error = errMsg
	gen.DurationMS = &durationMS
	gen.StartedAt = startedAt
	gen.FinishedAt = &now

	if err := s.store.UpdateGeneration(context.Background(), gen); err != nil {
		s.logger.Error("failed to update failed generation", "generation_id", gen.ID, "error", err)
	}
}
