package contracts

import (
	"context"
	"time"

	"provflow/domain/run"
)

// StoredAttachment is an attachment persisted on disk and indexed in the run ledger.
type StoredAttachment struct {
	ID          int64
	RunID       string
	Name        string
	ContentType string
	Path        string
	SizeBytes   int64
	CreatedAt   time.Time
}

// RunRepository defines persistence operations for the run ledger.
type RunRepository interface {
	SaveRun(ctx context.Context, r *run.Run) error
	SaveStep(ctx context.Context, runID string, step run.Step) error
	SaveAttachment(ctx context.Context, a StoredAttachment) error

	// GetRun returns the run with its steps, or ErrNotFound.
	GetRun(ctx context.Context, runID string) (*run.Run, error)
	// ListRuns returns the most recent runs first, without steps.
	ListRuns(ctx context.Context, limit int) ([]*run.Run, error)
	ListAttachments(ctx context.Context, runID string) ([]StoredAttachment, error)
	// GetAttachment returns the named attachment of a run, or ErrNotFound.
	GetAttachment(ctx context.Context, runID, name string) (*StoredAttachment, error)
}
