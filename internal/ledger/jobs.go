package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is one phase of one simulation within a run.
type Job struct {
	ID         string
	RunID      string
	Simulation string
	Phase      string
	Status     string
	SlurmID    string
	Error      string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// PlanJobs records the full phase grid of a run as pending jobs, in
// one transaction so a run is never half planned.
func (l *Ledger) PlanJobs(ctx context.Context, runID string, simulations, phases []string) ([]Job, error) {
	jobs := make([]Job, 0, len(simulations)*len(phases))
	for _, sim := range simulations {
		for _, phase := range phases {
			jobs = append(jobs, Job{
				ID:         uuid.NewString(),
				RunID:      runID,
				Simulation: sim,
				Phase:      phase,
				Status:     StatusPending,
			})
		}
	}

	err := l.withTx(func(tx *sql.Tx) error {
		for _, j := range jobs {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO jobs(id, run_id, simulation, phase, status)
			VALUES(?, ?, ?, ?, ?);
			`, j.ID, j.RunID, j.Simulation, j.Phase, j.Status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("plan jobs: %w", err)
	}
	return jobs, nil
}

// StartJob flips a job to running and stamps its start time.
func (l *Ledger) StartJob(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
		StatusRunning, now(), id)
	return err
}

// FinishJob closes a job. errMsg is kept only for failures.
func (l *Ledger) FinishJob(ctx context.Context, id, status, errMsg string) error {
	if status != StatusFailed {
		errMsg = ""
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, now(), id)
	return err
}

// MarkSubmitted records the Slurm job id a batch submission got.
func (l *Ledger) MarkSubmitted(ctx context.Context, id, slurmID string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, slurm_id = ? WHERE id = ?`,
		StatusSubmitted, slurmID, id)
	return err
}

// JobsForRun lists a run's jobs in planning order.
func (l *Ledger) JobsForRun(ctx context.Context, runID string) ([]Job, error) {
	rows, err := l.db.QueryContext(ctx, `
	SELECT id, run_id, simulation, phase, status, slurm_id, error, started_at, finished_at
	FROM jobs WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var started, finished sql.NullTime
		if err := rows.Scan(&j.ID, &j.RunID, &j.Simulation, &j.Phase, &j.Status, &j.SlurmID, &j.Error, &started, &finished); err != nil {
			return nil, err
		}
		if started.Valid {
			t := started.Time
			j.StartedAt = &t
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
