// Package runner executes an exported bundle's simulations on the
// machine kqc runs on. Every simulation contributes one node per
// phase, each phase depending on the one before it, and a fixed pool
// of n_workers workers drains the ready queue. Solver parallelism
// below the pool is delegated to the phase scripts through their
// environment.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/ledger"
	"github.com/kqclabs/kqc/internal/workload"
)

// Event reports one node state change. Events fire from worker
// goroutines, so observers must be safe for concurrent calls.
type Event struct {
	Simulation string
	Phase      string
	Status     string // a ledger status constant
	Err        string
	Elapsed    time.Duration
}

// Summary aggregates how a run went.
type Summary struct {
	OK      int
	Failed  int
	Skipped int
	Elapsed time.Duration
}

// Total is the number of nodes the run settled.
func (s *Summary) Total() int {
	return s.OK + s.Failed + s.Skipped
}

// Options configures a Runner.
type Options struct {
	Bundle   backend.Bundle
	Workload *workload.Workload

	// Phases of one simulation, in execution order.
	Phases []string

	// Ledger persists job transitions under RunID. Optional.
	Ledger *ledger.Ledger
	RunID  string

	// OnEvent observes node state changes. Optional.
	OnEvent func(Event)

	// Shell runs the phase scripts. Defaults to bash.
	Shell string
}

// Runner drives the phase graph of one bundle.
type Runner struct {
	opts Options
}

// New returns a Runner for the given bundle and workload.
func New(opts Options) *Runner {
	if opts.Shell == "" {
		opts.Shell = "bash"
	}
	if opts.OnEvent == nil {
		opts.OnEvent = func(Event) {}
	}
	return &Runner{opts: opts}
}

// Run executes every phase of every simulation and reports the
// aggregate outcome. A non-nil error names the failed nodes and wraps
// the first root cause.
func (r *Runner) Run(ctx context.Context, simulations []string) (*Summary, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	nodes, err := r.plan(ctx, simulations)
	if err != nil {
		return nil, err
	}

	readyChan := make(chan *node, len(nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, n := range nodes {
		if n.depCount.Load() == 0 {
			readyChan <- n
		}
	}

	var wg sync.WaitGroup
	wg.Add(len(nodes))

	workers := r.opts.Workload.NWorkers
	if workers < 1 {
		workers = 1
	}
	logger.Info("🚀 Running simulations", "simulations", len(simulations), "workers", workers)
	logger.Debug("Starting worker pool.", "workers", workers, "nodes", len(nodes))
	for i := 0; i < workers; i++ {
		go r.worker(runCtx, readyChan, cancel, &wg, i)
	}

	wg.Wait()
	close(readyChan)

	summary, err := r.summarize(nodes, time.Since(start))
	if err != nil {
		return summary, err
	}
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	logger.Info("🏁 Run complete", "ok", summary.OK, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

// plan builds one chain of phase nodes per simulation and, when a
// ledger is attached, records the grid as pending jobs.
func (r *Runner) plan(ctx context.Context, simulations []string) ([]*node, error) {
	phases := r.opts.Phases
	if len(phases) == 0 {
		return nil, errors.New("no phases to run")
	}

	var jobs []ledger.Job
	if r.opts.Ledger != nil {
		var err error
		jobs, err = r.opts.Ledger.PlanJobs(ctx, r.opts.RunID, simulations, phases)
		if err != nil {
			return nil, err
		}
	}

	nodes := make([]*node, 0, len(simulations)*len(phases))
	for si, sim := range simulations {
		var prev *node
		for pi, phase := range phases {
			n := &node{simulation: sim, phase: phase}
			if jobs != nil {
				n.jobID = jobs[si*len(phases)+pi].ID
			}
			if prev != nil {
				n.depCount.Store(1)
				prev.dependents = append(prev.dependents, n)
			}
			nodes = append(nodes, n)
			prev = n
		}
	}
	return nodes, nil
}

// summarize reduces the settled nodes to counts and, when anything
// failed, to an error naming the failed nodes. Nodes that died from
// cancellation are symptoms, not causes, and are left out of the
// error.
func (r *Runner) summarize(nodes []*node, elapsed time.Duration) (*Summary, error) {
	summary := &Summary{Elapsed: elapsed}
	var failed []string
	var rootCause error
	for _, n := range nodes {
		switch n.state.Load() {
		case stateDone:
			summary.OK++
		case stateSkipped:
			summary.Skipped++
		case stateFailed:
			summary.Failed++
			if n.err != nil && !errors.Is(n.err, context.Canceled) {
				failed = append(failed, n.id())
				if rootCause == nil {
					rootCause = n.err
				}
			}
		}
	}
	if rootCause != nil {
		return summary, fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	return summary, nil
}
