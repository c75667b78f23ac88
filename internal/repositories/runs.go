package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spindle/internal/models"
	"github.com/desertthunder/spindle/internal/shared"
)

// Run statuses recorded in sync history.
const (
	RunStatusStarted   = "started"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunRepository records executed sync actions for history reporting.
type RunRepository struct {
	q DBTX
}

// NewRunRepository creates a new RunRepository over the given query surface.
func NewRunRepository(q DBTX) *RunRepository {
	return &RunRepository{q: q}
}

// Create inserts a new run with a generated ID and returns it.
func (r *RunRepository) Create(ctx context.Context, action, stage string) (models.SyncRun, error) {
	run := models.SyncRun{
		ID:        shared.GenerateID(),
		Action:    action,
		Stage:     stage,
		Status:    RunStatusStarted,
		StartedAt: time.Now(),
	}

	query := `
		INSERT INTO sync_runs (id, action, stage, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.q.ExecContext(ctx, query, run.ID, run.Action, run.Stage, run.Status, run.StartedAt); err != nil {
		return models.SyncRun{}, fmt.Errorf("failed to insert sync run: %w", err)
	}
	return run, nil
}

// Complete finalizes a run with its outcome.
func (r *RunRepository) Complete(ctx context.Context, id, status string, stats models.Stats, errMessage string) error {
	query := `
		UPDATE sync_runs
		SET status = ?, added = ?, updated = ?, deleted = ?, unchanged = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.q.ExecContext(ctx, query,
		status,
		stats.Added,
		stats.Updated,
		stats.Deleted,
		stats.Unchanged,
		nullableString(errMessage),
		time.Now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: sync run %s", shared.ErrNotFound, id)
	}
	return nil
}

// Recent retrieves the latest runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, action, stage, status, added, updated, deleted, unchanged, error_message, started_at, completed_at
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var (
			run         models.SyncRun
			errMessage  sql.NullString
			completedAt sql.NullTime
		)
		err := rows.Scan(&run.ID, &run.Action, &run.Stage, &run.Status,
			&run.Stats.Added, &run.Stats.Updated, &run.Stats.Deleted, &run.Stats.Unchanged,
			&errMessage, &run.StartedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		if errMessage.Valid {
			run.ErrorMessage = errMessage.String
		}
		if completedAt.Valid {
			t := completedAt.Time
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}
