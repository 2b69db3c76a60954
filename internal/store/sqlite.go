package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/photosnap/forge/internal/model"

	_ "modernc.org/sqlite"
)

const createGenerationsTable = `
CREATE TABLE IF NOT EXISTS generations (
    id           TEXT PRIMARY KEY,
    status       TEXT NOT NULL,
    model_id     TEXT NOT NULL,
    prompt       TEXT NOT NULL,
    request_id   TEXT,
    output_url   TEXT,
    content_type TEXT,
    size_bytes   INTEGER,
    image_data   BLOB,
    error        TEXT,
    duration_ms  INTEGER,
    created_at   DATETIME NOT NULL,
    started_at   DATETIME,
    finished_at  DATETIME
)`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS generation_events (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    generation_id TEXT NOT NULL,
    seq           INTEGER NOT NULL,
    status        TEXT NOT NULL,
    detail        TEXT,
    created_at    DATETIME NOT NULL
)`

// ErrNotFound is returned when a generation is not found.
var ErrNotFound = errors.New("generation not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createGenerationsTable, createEventsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migration: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateGeneration inserts a new generation record.
func (s *SQLiteStore) CreateGeneration(ctx context.Context, g *model.Generation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (
			id, status, model_id, prompt, request_id, output_url,
			content_type, size_bytes, image_data, error, duration_ms,
			created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Status, g.ModelID, g.Prompt, g.RequestID, g.OutputURL,
		g.ContentType, g.SizeBytes, g.ImageData, g.Error, g.DurationMS,
		g.CreatedAt, g.StartedAt, g.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// GetGeneration retrieves a generation by ID.
func (s *SQLiteStore) GetGeneration(ctx context.Context, id string) (*model.Generation, error) {
	g := &model.Generation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, model_id, prompt, request_id, output_url,
			content_type, size_bytes, image_data, error, duration_ms,
			created_at, started_at, finished_at
		FROM generations WHERE id = ?`, id,
	).Scan(
		&g.ID, &g.Status, &g.ModelID, &g.Prompt, &g.RequestID, &g.OutputURL,
		&g.ContentType, &g.SizeBytes, &g.ImageData, &g.Error, &g.DurationMS,
		&g.CreatedAt, &g.StartedAt, &g.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return g, nil
}

// ListGenerations returns a paginated list ordered by created_at DESC,
// along with the total count. Image blobs are not loaded for listings.
func (s *SQLiteStore) ListGenerations(ctx context.Context, limit, offset int) ([]*model.Generation, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM generations").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count generations: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, status, model_id, prompt, request_id, output_url,
			content_type, size_bytes, error, duration_ms,
			created_at, started_at, finished_at
		FROM generations ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var generations []*model.Generation
	for rows.Next() {
		g := &model.Generation{}
		if err := rows.Scan(
			&g.ID, &g.Status, &g.ModelID, &g.Prompt, &g.RequestID, &g.OutputURL,
			&g.ContentType, &g.SizeBytes, &g.Error, &g.DurationMS,
			&g.CreatedAt, &g.StartedAt, &g.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan generation: %w", err)
		}
		generations = append(generations, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate generations: %w", err)
	}

	return generations, total, nil
}

// UpdateGenerationStatus updates the status of a generation after
// validating the transition. Terminal statuses also set finished_at.
func (s *SQLiteStore) UpdateGenerationStatus(ctx context.Context, id, status string) error {
	current, err := s.GetGeneration(ctx, id)
	if err != nil {
		return err
	}
	if !model.ValidTransition(current.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	var result sql.Result
	if model.Terminal(status) {
		result, err = s.db.ExecContext(ctx,
			"UPDATE generations SET status = ?, finished_at = ? WHERE id = ?",
			status, time.Now().UTC(), id,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			"UPDATE generations SET status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?",
			status, time.Now().UTC(), id,
		)
	}
	if err != nil {
		return fmt.Errorf("update generation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateGeneration writes the terminal fields of a generation: status,
// artifact metadata, error detail, and timing.
func (s *SQLiteStore) UpdateGeneration(ctx context.Context, g *model.Generation) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE generations SET
			status = ?, request_id = ?, output_url = ?, content_type = ?,
			size_bytes = ?, image_data = ?, error = ?, duration_ms = ?,
			started_at = ?, finished_at = ?
		WHERE id = ?`,
		g.Status, g.RequestID, g.OutputURL, g.ContentType,
		g.SizeBytes, g.ImageData, g.Error, g.DurationMS,
		g.StartedAt, g.FinishedAt, g.ID,
	)
	if err != nil {
		return fmt.Errorf("update generation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetGenerationStats aggregates counts and average duration across all
// generations.
func (s *SQLiteStore) GetGenerationStats(ctx context.Context) (*GenerationStats, error) {
	stats := &GenerationStats{
		CountByStatus: make(map[string]int),
		CountByModel:  make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM generations GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	modelRows, err := s.db.QueryContext(ctx, "SELECT model_id, COUNT(*) FROM generations GROUP BY model_id")
	if err != nil {
		return nil, fmt.Errorf("count by model: %w", err)
	}
	defer modelRows.Close()
	for modelRows.Next() {
		var modelID string
		var count int
		if err := modelRows.Scan(&modelID, &count); err != nil {
			return nil, fmt.Errorf("scan model count: %w", err)
		}
		stats.CountByModel[modelID] = count
	}
	if err := modelRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM generations WHERE duration_ms IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}

// InsertEvent appends a poll-status observation for a generation.
func (s *SQLiteStore) InsertEvent(ctx context.Context, generationID string, seq int, status, detail string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO generation_events (generation_id, seq, status, detail, created_at) VALUES (?, ?, ?, ?, ?)",
		generationID, seq, status, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvents returns all events for a generation in sequence order.
func (s *SQLiteStore) GetEvents(ctx context.Context, generationID string) ([]model.GenerationEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, generation_id, seq, status, detail, created_at
		FROM generation_events WHERE generation_id = ? ORDER BY seq`, generationID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []model.GenerationEvent
	for rows.Next() {
		var e model.GenerationEvent
		if err := rows.Scan(&e.ID, &e.GenerationID, &e.Seq, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
