package ports

import (
	"context"

	"summcorr/domain/core"
	"summcorr/domain/run"
)

// ReportRepository persists run summaries
type ReportRepository interface {
	// SaveRun stores a completed run
	SaveRun(ctx context.Context, r *run.Run) error

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, id core.RunID) (*run.Run, error)

	// ListRuns returns runs of kind, newest first; an empty kind lists all, limit <= 0 means no limit
	ListRuns(ctx context.Context, kind core.RunKind, limit int) ([]*run.Run, error)
}
