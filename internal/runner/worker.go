package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/ledger"
)

// worker is the processing loop of a single pool worker.
func (r *Runner) worker(ctx context.Context, readyChan chan *node, cancel context.CancelFunc, wg *sync.WaitGroup, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", n.id())

		if ctx.Err() != nil {
			if n.skip(ctx.Err(), wg) {
				workerLogger.Warn("Run canceled, skipping node.")
				r.record(ctx, n, ledger.StatusSkipped, ctx.Err(), 0)
				r.skipDependents(ctx, n, wg)
			}
			continue
		}

		workerLogger.Debug("Worker picked up node.")
		n.state.Store(stateRunning)
		r.record(ctx, n, ledger.StatusRunning, nil, 0)

		start := time.Now()
		err := r.runPhase(ctx, n)
		elapsed := time.Since(start)

		if err != nil {
			workerLogger.Error("Node execution failed.", "error", err)
			n.state.Store(stateFailed)
			n.err = err
			r.record(ctx, n, ledger.StatusFailed, err, elapsed)
			// fail_fast turns one failure into a run-wide cancellation.
			if r.opts.Workload.FailFast {
				cancel()
			}
			r.skipDependents(ctx, n, wg)
			wg.Done()
			continue
		}

		workerLogger.Debug("Node execution succeeded.")
		n.state.Store(stateDone)
		r.record(ctx, n, ledger.StatusOK, nil, elapsed)

		for _, dependent := range n.dependents {
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.id())
				readyChan <- dependent
			}
		}

		wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// skipDependents recursively marks all downstream nodes skipped.
func (r *Runner) skipDependents(ctx context.Context, n *node, wg *sync.WaitGroup) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.dependents {
		cause := fmt.Errorf("skipped due to upstream failure of '%s'", n.id())
		if dependent.skip(cause, wg) {
			logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", dependent.id(), "dependency", n.id())
			r.record(ctx, dependent, ledger.StatusSkipped, cause, 0)
			r.skipDependents(ctx, dependent, wg)
		}
	}
}

// record persists a node transition and notifies the observer. Ledger
// writes run on a detached context so terminal states survive
// cancellation.
func (r *Runner) record(ctx context.Context, n *node, status string, cause error, elapsed time.Duration) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if r.opts.Ledger != nil && n.jobID != "" {
		lctx := context.WithoutCancel(ctx)
		var err error
		if status == ledger.StatusRunning {
			err = r.opts.Ledger.StartJob(lctx, n.jobID)
		} else {
			err = r.opts.Ledger.FinishJob(lctx, n.jobID, status, msg)
		}
		if err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to record job state.", "nodeID", n.id(), "error", err)
		}
	}

	r.opts.OnEvent(Event{
		Simulation: n.simulation,
		Phase:      n.phase,
		Status:     status,
		Err:        msg,
		Elapsed:    elapsed,
	})
}
