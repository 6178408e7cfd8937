package app

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/ledger"
	"github.com/kqclabs/kqc/internal/runner"
	"github.com/kqclabs/kqc/internal/slurm"
	"github.com/kqclabs/kqc/internal/tui"
)

// runSimulate exports a bundle and then executes it, on a cluster via
// chained sbatch submissions or locally over the worker pool.
func (a *App) runSimulate(ctx context.Context) error {
	if a.config.HealthcheckPort > 0 {
		stop := a.startStatusServer(a.config.HealthcheckPort)
		defer stop()
	}

	st, err := a.stage(ctx, ledger.KindSimulate)
	if err != nil {
		return err
	}

	if st.workload.Remote() {
		return a.submitCluster(ctx, st)
	}
	return a.runLocal(ctx, st)
}

// submitCluster hands the bundle to Slurm: the mesh script first, then
// the solve script gated on it with afterok.
func (a *App) submitCluster(ctx context.Context, st *staged) error {
	logger := ctxlog.FromContext(ctx)

	var submitter slurm.Submitter = &slurm.LocalSubmitter{}
	if st.profile.RestURL != "" {
		rest, err := slurm.NewRestSubmitter(*st.profile)
		if err != nil {
			return a.finishRun(ctx, st.runID, err)
		}
		defer rest.Close()
		submitter = rest
	}

	meshID, solveID, err := slurm.Chain(ctx, submitter, st.bundle)
	if err != nil {
		return a.finishRun(ctx, st.runID, err)
	}

	// Mirror the submission into the job rows so `kqc runs` can tell
	// which batch job carries each phase.
	jobs, err := a.ledger.PlanJobs(ctx, st.runID, st.sims, st.backend.Phases())
	if err != nil {
		logger.Warn("Ledger update failed.", "run", st.runID, "error", err)
	}
	for _, job := range jobs {
		batchID := meshID
		if job.Phase == backend.PhaseSolve {
			batchID = solveID
		}
		if err := a.ledger.MarkSubmitted(ctx, job.ID, batchID); err != nil {
			logger.Warn("Ledger update failed.", "job", job.ID, "error", err)
		}
	}

	fmt.Fprintf(a.outW, "Submitted mesh job %s, solve job %s (afterok:%s).\n", meshID, solveID, meshID)
	if err := a.ledger.FinishRun(ctx, st.runID, ledger.StatusSubmitted, ""); err != nil {
		logger.Warn("Ledger update failed.", "run", st.runID, "error", err)
	}
	return nil
}

// runLocal executes the bundle's phase graph on this machine.
func (a *App) runLocal(ctx context.Context, st *staged) error {
	logger := ctxlog.FromContext(ctx)

	phases := st.backend.Phases()
	if len(phases) == 0 {
		logger.Info("📦 Tool bundles are export-only, nothing to execute.", "tool", st.backend.Name())
		return a.finishRun(ctx, st.runID, nil)
	}

	opts := runner.Options{
		Bundle:   st.bundle,
		Workload: st.workload,
		Phases:   phases,
		Ledger:   a.ledger,
		RunID:    st.runID,
	}

	var err error
	if a.useDashboard() {
		_, err = tui.Run(ctx, tui.Options{
			BundleName:  st.manifest.Name,
			Simulations: st.sims,
			Runner:      opts,
		})
	} else {
		_, err = runner.New(opts).Run(ctx, st.sims)
	}
	return a.finishRun(ctx, st.runID, err)
}

// useDashboard reports whether the live table should render: an
// interactive stdout and no -q.
func (a *App) useDashboard() bool {
	if a.config.Quiet {
		return false
	}
	f, ok := a.outW.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
