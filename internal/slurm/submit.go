package slurm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/ctxlog"
)

// SubmitRequest is one batch script submission.
type SubmitRequest struct {
	// ScriptPath is the batch script, absolute or relative to WorkDir.
	ScriptPath string

	// WorkDir is the bundle directory the job runs in.
	WorkDir string

	// Dependency is a raw Slurm dependency spec such as "afterok:123".
	Dependency string
}

// Submitter submits one batch script and returns the Slurm job id.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
}

// LocalSubmitter shells out to the sbatch binary on the current host.
type LocalSubmitter struct {
	// Sbatch overrides the submission binary, default "sbatch".
	Sbatch string
}

func (s *LocalSubmitter) binary() string {
	if s.Sbatch != "" {
		return s.Sbatch
	}
	return "sbatch"
}

// Submit runs sbatch --parsable and returns the printed job id.
func (s *LocalSubmitter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	args := []string{"--parsable"}
	if req.Dependency != "" {
		args = append(args, "--dependency="+req.Dependency)
	}
	args = append(args, req.ScriptPath)

	cmd := exec.CommandContext(ctx, s.binary(), args...)
	cmd.Dir = req.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	ctxlog.FromContext(ctx).Debug("Submitting batch script.", "script", req.ScriptPath, "dependency", req.Dependency)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("sbatch %s: %w: %s", req.ScriptPath, err, strings.TrimSpace(stderr.String()))
	}

	id := strings.TrimSpace(stdout.String())
	// --parsable prints "jobid" or "jobid;cluster".
	if i := strings.IndexByte(id, ';'); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", fmt.Errorf("sbatch %s: no job id in output", req.ScriptPath)
	}
	return id, nil
}

// Chain submits a bundle's meshing and solving jobs, the latter gated
// on the former with afterok. It returns both job ids.
func Chain(ctx context.Context, s Submitter, b backend.Bundle) (meshID, solveID string, err error) {
	meshID, err = s.Submit(ctx, SubmitRequest{
		ScriptPath: b.BatchScriptPath(backend.PhaseMesh),
		WorkDir:    b.Dir,
	})
	if err != nil {
		return "", "", fmt.Errorf("submit mesh job: %w", err)
	}

	solveID, err = s.Submit(ctx, SubmitRequest{
		ScriptPath: b.BatchScriptPath(backend.PhaseSolve),
		WorkDir:    b.Dir,
		Dependency: "afterok:" + meshID,
	})
	if err != nil {
		return "", "", fmt.Errorf("submit solve job after %s: %w", meshID, err)
	}

	ctxlog.FromContext(ctx).Info("Submitted job chain.", "mesh_job", meshID, "solve_job", solveID)
	return meshID, solveID, nil
}
