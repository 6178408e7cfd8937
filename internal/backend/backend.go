// Package backend defines the contract between the export pipeline and
// the solver tools it can target. A backend writes everything a bundle
// needs for its tool: solver input files, helper scripts, and the
// per-simulation phase script.
package backend

import (
	"context"
	"fmt"

	"github.com/kqclabs/kqc/internal/manifest"
	"github.com/kqclabs/kqc/internal/workload"
)

// Phase names used by phase scripts, the local runner, and the batch
// script generator.
const (
	PhaseMesh  = "mesh"
	PhaseSolve = "solve"
)

// Backend writes tool-specific bundle content.
type Backend interface {
	// Name is the tool identifier manifests refer to.
	Name() string

	// Phases lists the execution phases of one simulation in order.
	// An empty list marks an export-only tool whose bundle is imported
	// into the vendor environment by hand.
	Phases() []string

	// WriteAssets writes content shared by all simulations of a
	// bundle, such as helper scripts and solver input templates.
	WriteAssets(ctx context.Context, ec *ExportContext) error

	// WriteSimulation writes the inputs and the phase script for one
	// simulation.
	WriteSimulation(ctx context.Context, ec *ExportContext, sim *manifest.Simulation) error
}

// ExportContext carries everything a backend needs while writing a
// bundle.
type ExportContext struct {
	Bundle
	Manifest *manifest.Manifest
	Workload *workload.Workload
}

// EnvForPhase returns the environment entries one phase of a simulation
// runs under. Phase scripts read the same variables with baked-in
// defaults, so a bare invocation without the runner behaves the same.
func EnvForPhase(w *workload.Workload, phase string) []string {
	switch phase {
	case PhaseMesh:
		return []string{
			fmt.Sprintf("GMSH_N_THREADS=%d", w.GmshNThreads),
			fmt.Sprintf("OMP_NUM_THREADS=%d", w.GmshNThreads),
		}
	case PhaseSolve:
		return []string{
			fmt.Sprintf("ELMER_N_PROCESSES=%d", w.ElmerNProcesses),
			fmt.Sprintf("ELMER_N_THREADS=%d", w.ElmerNThreads),
			fmt.Sprintf("OMP_NUM_THREADS=%d", w.ElmerNThreads),
		}
	default:
		return nil
	}
}
