package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/tail"
)

// runPhase executes one phase script inside the bundle with the
// workload's thread and process counts exported, capturing output to
// the node's phase log.
func (r *Runner) runPhase(ctx context.Context, n *node) error {
	logger := ctxlog.FromContext(ctx).With("simulation", n.simulation, "phase", n.phase)
	logger.Info("▶️ Running phase")

	bundle := r.opts.Bundle
	logFile, err := os.Create(bundle.SimLog(n.simulation, n.phase))
	if err != nil {
		return fmt.Errorf("create phase log: %w", err)
	}
	defer logFile.Close()

	var stderrTail tail.Buffer

	cmd := exec.CommandContext(ctx, r.opts.Shell, bundle.SimScript(n.simulation), n.phase)
	cmd.Dir = bundle.Dir
	cmd.Env = append(os.Environ(), backend.EnvForPhase(r.opts.Workload, n.phase)...)
	cmd.Stdout = logFile
	cmd.Stderr = io.MultiWriter(logFile, &stderrTail)
	// Solver children may inherit the stderr pipe; don't let them hold
	// Wait open forever after the script exits.
	cmd.WaitDelay = 10 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := stderrTail.String(); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}

	logger.Info("✅ Phase finished")
	return nil
}
