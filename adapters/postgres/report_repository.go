package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"summcorr/domain/core"
	"summcorr/domain/run"
	"summcorr/internal/errors"
	"summcorr/ports"
)

// ReportRepositoryImpl implements ReportRepository over any sqlx driver.
// Queries are written with ? placeholders and rebound for the driver.
type ReportRepositoryImpl struct {
	db *sqlx.DB
}

// NewReportRepository creates a new SQL report repository
func NewReportRepository(db *sqlx.DB) ports.ReportRepository {
	return &ReportRepositoryImpl{db: db}
}

// Open connects with driver and applies pending migrations
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if err := NewMigrator(db, nil).Up(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type runRow struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	Source      string    `db:"source"`
	Parameters  string    `db:"parameters"`
	Fingerprint string    `db:"fingerprint"`
	Documents   int       `db:"documents"`
	Ignored     int       `db:"ignored"`
	Total       int       `db:"total"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt time.Time `db:"completed_at"`
}

func (r runRow) toRun() (*run.Run, error) {
	params := map[string]string{}
	if r.Parameters != "" {
		if err := json.Unmarshal([]byte(r.Parameters), &params); err != nil {
			return nil, errors.DatabaseError("failed to decode run parameters", err)
		}
	}
	return &run.Run{
		ID:          core.RunID(r.ID),
		Kind:        core.RunKind(r.Kind),
		Source:      r.Source,
		Parameters:  params,
		Fingerprint: r.Fingerprint,
		Documents:   r.Documents,
		Ignored:     r.Ignored,
		Total:       r.Total,
		StartedAt:   r.StartedAt.UTC(),
		CompletedAt: r.CompletedAt.UTC(),
	}, nil
}

const selectRuns = `
	SELECT id, kind, source, parameters, fingerprint, documents, ignored, total, started_at, completed_at
	FROM analysis_runs`

// SaveRun stores a completed run
func (r *ReportRepositoryImpl) SaveRun(ctx context.Context, rn *run.Run) error {
	if rn == nil || core.ID(rn.ID).IsEmpty() {
		return errors.InvalidInput("run must have an ID")
	}
	params, err := json.Marshal(rn.Parameters)
	if err != nil {
		return errors.DatabaseError("failed to encode run parameters", err)
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO analysis_runs (id, kind, source, parameters, fingerprint, documents, ignored, total, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), rn.ID.String(), string(rn.Kind), rn.Source, string(params), rn.Fingerprint,
		rn.Documents, rn.Ignored, rn.Total, rn.StartedAt.UTC(), rn.CompletedAt.UTC())
	if err != nil {
		return errors.DatabaseError("failed to save run", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *ReportRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*run.Run, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectRuns+" WHERE id = ?"), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf(errors.CodeInvalidInput, "run %s not found", id)
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get run", err)
	}
	return row.toRun()
}

// ListRuns returns runs of kind, newest first
func (r *ReportRepositoryImpl) ListRuns(ctx context.Context, kind core.RunKind, limit int) ([]*run.Run, error) {
	query := selectRuns
	var args []interface{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}

	runs := make([]*run.Run, 0, len(rows))
	for _, row := range rows {
		rn, err := row.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, rn)
	}
	return runs, nil
}
