package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"provflow/database"
	"provflow/domain/contracts"
	"provflow/domain/run"
)

// SQLiteRunRepository implements contracts.RunRepository with read/write database separation.
type SQLiteRunRepository struct {
	*BaseRepository
}

// NewSQLiteRunRepository creates a run ledger repository.
func NewSQLiteRunRepository(database *database.Database) contracts.RunRepository {
	return &SQLiteRunRepository{
		BaseRepository: NewBaseRepository(database),
	}
}

// SaveRun upserts the run row and its steps.
func (r *SQLiteRunRepository) SaveRun(ctx context.Context, rn *run.Run) error {
	contextJSON, err := r.ToJSON(rn.Context)
	if err != nil {
		return err
	}
	summaryJSON, err := r.ToJSON(rn.Summary())
	if err != nil {
		return err
	}

	return r.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, name, status, started_at, finished_at, context_json, summary_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				finished_at = excluded.finished_at,
				context_json = excluded.context_json,
				summary_json = excluded.summary_json`,
			rn.ID, rn.Name, string(rn.Status),
			r.ToNullTime(rn.StartedAt), r.ToNullTime(rn.FinishedAt),
			contextJSON, summaryJSON)
		if err != nil {
			return fmt.Errorf("save run %s: %w", rn.ID, err)
		}

		for _, step := range rn.Steps {
			if err := r.upsertStep(ctx, tx, rn.ID, step); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveStep upserts one step.
func (r *SQLiteRunRepository) SaveStep(ctx context.Context, runID string, step run.Step) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		return r.upsertStep(ctx, tx, runID, step)
	})
}

func (r *SQLiteRunRepository) upsertStep(ctx context.Context, tx *sql.Tx, runID string, step run.Step) error {
	dataJSON, err := r.ToJSON(step.Data)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO steps (run_id, number, name, status, error, warning, critical, data_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, number) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			error = excluded.error,
			warning = excluded.warning,
			critical = excluded.critical,
			data_json = excluded.data_json,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		runID, step.Number, step.Name, string(step.Status), step.Error, step.Warning, step.Critical,
		dataJSON, r.ToNullTime(step.StartedAt), r.ToNullTime(step.FinishedAt))
	if err != nil {
		return fmt.Errorf("save step %d of run %s: %w", step.Number, runID, err)
	}
	return nil
}

// SaveAttachment indexes an attachment; saving the same name twice replaces the entry.
func (r *SQLiteRunRepository) SaveAttachment(ctx context.Context, a contracts.StoredAttachment) error {
	_, err := r.WriteDB().ExecContext(ctx, `
		INSERT INTO attachments (run_id, name, content_type, path, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET
			content_type = excluded.content_type,
			path = excluded.path,
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at`,
		a.RunID, a.Name, a.ContentType, a.Path, a.SizeBytes, r.ToNullTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("save attachment %s of run %s: %w", a.Name, a.RunID, err)
	}
	return nil
}

// GetRun loads a run with its steps.
func (r *SQLiteRunRepository) GetRun(ctx context.Context, runID string) (*run.Run, error) {
	row := r.ReadDB().QueryRowContext(ctx, `
		SELECT id, name, status, started_at, finished_at, context_json
		FROM runs WHERE id = ?`, runID)

	rn, err := r.scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	steps, err := r.listSteps(ctx, runID)
	if err != nil {
		return nil, err
	}
	rn.Steps = steps
	return rn, nil
}

// ListRuns returns the newest runs first.
func (r *SQLiteRunRepository) ListRuns(ctx context.Context, limit int) ([]*run.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.ReadDB().QueryContext(ctx, `
		SELECT id, name, status, started_at, finished_at, context_json
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*run.Run
	for rows.Next() {
		rn, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rn)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRunRepository) scanRun(s scanner) (*run.Run, error) {
	var (
		rn                  run.Run
		status, contextJSON string
		started, finished   sql.NullString
	)
	if err := s.Scan(&rn.ID, &rn.Name, &status, &started, &finished, &contextJSON); err != nil {
		return nil, err
	}
	rn.Status = run.Status(status)
	rn.StartedAt = r.FromNullTime(started)
	rn.FinishedAt = r.FromNullTime(finished)
	rn.Context = make(map[string]string)
	if err := r.FromJSON(contextJSON, &rn.Context); err != nil {
		return nil, err
	}
	return &rn, nil
}

func (r *SQLiteRunRepository) listSteps(ctx context.Context, runID string) ([]run.Step, error) {
	rows, err := r.ReadDB().QueryContext(ctx, `
		SELECT number, name, status, error, warning, critical, data_json, started_at, finished_at
		FROM steps WHERE run_id = ? ORDER BY number`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps of run %s: %w", runID, err)
	}
	defer rows.Close()

	var steps []run.Step
	for rows.Next() {
		var (
			step              run.Step
			status, dataJSON  string
			started, finished sql.NullString
		)
		if err := rows.Scan(&step.Number, &step.Name, &status, &step.Error, &step.Warning,
			&step.Critical, &dataJSON, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Status = run.StepStatus(status)
		step.StartedAt = r.FromNullTime(started)
		step.FinishedAt = r.FromNullTime(finished)
		if err := r.FromJSON(dataJSON, &step.Data); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// ListAttachments returns a run's attachments in creation order.
func (r *SQLiteRunRepository) ListAttachments(ctx context.Context, runID string) ([]contracts.StoredAttachment, error) {
	rows, err := r.ReadDB().QueryContext(ctx, `
		SELECT id, run_id, name, content_type, path, size_bytes, created_at
		FROM attachments WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list attachments of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []contracts.StoredAttachment
	for rows.Next() {
		a, err := r.scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// GetAttachment returns one attachment by name.
func (r *SQLiteRunRepository) GetAttachment(ctx context.Context, runID, name string) (*contracts.StoredAttachment, error) {
	row := r.ReadDB().QueryRowContext(ctx, `
		SELECT id, run_id, name, content_type, path, size_bytes, created_at
		FROM attachments WHERE run_id = ? AND name = ?`, runID, name)

	a, err := r.scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment %s of run %s: %w", name, runID, contracts.ErrNotFound)
	}
	return a, err
}

func (r *SQLiteRunRepository) scanAttachment(s scanner) (*contracts.StoredAttachment, error) {
	var (
		a       contracts.StoredAttachment
		created sql.NullString
	)
	if err := s.Scan(&a.ID, &a.RunID, &a.Name, &a.ContentType, &a.Path, &a.SizeBytes, &created); err != nil {
		return nil, err
	}
	a.CreatedAt = r.FromNullTime(created)
	return &a, nil
}
