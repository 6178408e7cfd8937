package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run kinds, one per CLI operation that touches the ledger.
const (
	KindMask     = "mask"
	KindSim      = "sim"
	KindSimulate = "simulate"
)

// Run is one CLI invocation: a mask build, a simulation export, or a
// full simulate. Export details stay empty until a bundle exists.
type Run struct {
	ID         string
	Kind       string
	Script     string
	Name       string
	Tool       string
	BundleDir  string
	Cluster    string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Duration is the run's elapsed time, measured to now for runs that
// have not finished.
func (r *Run) Duration() time.Duration {
	end := now()
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(r.StartedAt)
}

// StartRun records a new run in status running and returns it.
func (l *Ledger) StartRun(ctx context.Context, kind, script string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Script:    script,
		Status:    StatusRunning,
		StartedAt: now(),
	}
	_, err := l.db.ExecContext(ctx, `
	INSERT INTO runs(id, kind, script, status, started_at)
	VALUES(?, ?, ?, ?, ?);
	`, run.ID, run.Kind, run.Script, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

// AttachBundle fills in the export details of a run once the manifest
// has been decoded and the bundle directory is known.
func (l *Ledger) AttachBundle(ctx context.Context, id, name, tool, bundleDir, clusterName string) error {
	res, err := l.db.ExecContext(ctx, `
	UPDATE runs SET name = ?, tool = ?, bundle_dir = ?, cluster = ? WHERE id = ?`,
		name, tool, bundleDir, clusterName, id)
	if err != nil {
		return fmt.Errorf("attach bundle to run: %w", err)
	}
	return requireRow(res, id)
}

// FinishRun closes a run with its final status. errMsg is recorded for
// failed runs and discarded otherwise.
func (l *Ledger) FinishRun(ctx context.Context, id, status, errMsg string) error {
	if status != StatusFailed {
		errMsg = ""
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, now(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, id)
}

// LatestRun returns the most recently started run.
func (l *Ledger) LatestRun(ctx context.Context) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `
	SELECT id, kind, script, name, tool, bundle_dir, cluster, status, error, started_at, finished_at
	FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	return scanRun(row)
}

// GetRun returns one run by id.
func (l *Ledger) GetRun(ctx context.Context, id string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `
	SELECT id, kind, script, name, tool, bundle_dir, cluster, status, error, started_at, finished_at
	FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns up to limit runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
	SELECT id, kind, script, name, tool, bundle_dir, cluster, status, error, started_at, finished_at
	FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.Script, &r.Name, &r.Tool, &r.BundleDir, &r.Cluster, &r.Status, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.Kind, &r.Script, &r.Name, &r.Tool, &r.BundleDir, &r.Cluster, &r.Status, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// requireRow turns a zero-row update into ErrNoRun.
func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNoRun, id)
	}
	return nil
}
