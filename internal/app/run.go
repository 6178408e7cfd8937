package app

import (
	"context"
	"fmt"

	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/ledger"
)

// Run executes the configured operation.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "op", a.config.Op)

	switch a.config.Op {
	case OpMask:
		return a.runMask(ctx)
	case OpSim:
		_, err := a.runSim(ctx)
		return err
	case OpSimulate:
		return a.runSimulate(ctx)
	case OpRuns:
		return a.runRuns(ctx)
	case OpVersion:
		return a.runVersion()
	default:
		return fmt.Errorf("unknown operation %q", a.config.Op)
	}
}

// finishRun closes the ledger row for err and passes err through, so
// operations can end with `return a.finishRun(ctx, id, err)`. Ledger
// write failures are logged, never escalated over the run's own outcome.
func (a *App) finishRun(ctx context.Context, id string, err error) error {
	status, msg := ledger.StatusOK, ""
	if err != nil {
		status, msg = ledger.StatusFailed, err.Error()
	}
	// The row must record the outcome even when ctx was cancelled.
	if ferr := a.ledger.FinishRun(context.WithoutCancel(ctx), id, status, msg); ferr != nil {
		ctxlog.FromContext(ctx).Warn("Ledger update failed.", "run", id, "error", ferr)
	}
	return err
}
