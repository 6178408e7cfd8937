// Package workload loads the HCL execution profile that controls how an
// exported bundle is meshed and solved: worker pool width, per-phase
// thread and process counts, failure policy, and batch submission
// parameters.
package workload

import (
	"runtime"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Workload is the decoded simulate block with defaults applied.
type Workload struct {
	// NWorkers is the number of simulations meshed or solved at once.
	NWorkers int

	// GmshNThreads is the thread count handed to each meshing phase.
	GmshNThreads int

	// ElmerNProcesses is the MPI process count per solve phase.
	ElmerNProcesses int

	// ElmerNThreads is the thread count per solver process.
	ElmerNThreads int

	// FailFast cancels all remaining work on the first phase failure.
	// When false a failure only skips that simulation's dependents.
	FailFast bool

	// PreviewPNG renders a geometry preview image per simulation.
	PreviewPNG bool

	// Cluster selects a profile from clusters.yaml. Empty means the
	// bundle runs on the local machine.
	Cluster string

	// SbatchParameters are extra directives written verbatim into the
	// generated batch scripts.
	SbatchParameters map[string]string

	// Source is the file the block was decoded from, empty when the
	// workload is the built-in default.
	Source string
}

// Default returns the workload used when no simulate block is given:
// fully serial execution on the local machine.
func Default() *Workload {
	return &Workload{
		NWorkers:         1,
		GmshNThreads:     1,
		ElmerNProcesses:  1,
		ElmerNThreads:    1,
		SbatchParameters: map[string]string{},
	}
}

// Remote reports whether the workload targets a batch cluster.
func (w *Workload) Remote() bool {
	return w.Cluster != ""
}

// CPUsPerSimulation is the widest CPU claim a single simulation can
// make across its phases.
func (w *Workload) CPUsPerSimulation() int {
	solve := w.ElmerNProcesses * w.ElmerNThreads
	if w.GmshNThreads > solve {
		return w.GmshNThreads
	}
	return solve
}

// evalContext exposes host facts to expressions in the simulate block,
// e.g. n_workers = cpu.count.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"cpu": cty.ObjectVal(map[string]cty.Value{
				"count": cty.NumberIntVal(int64(runtime.NumCPU())),
			}),
		},
	}
}
