// Package slurm generates batch scripts for exported bundles and
// submits them, either through the sbatch binary on the current host or
// through a slurmrestd endpoint.
//
// A bundle targets a cluster with two chained jobs: one meshing job
// covering every simulation, and one solving job that starts only after
// meshing succeeded.
package slurm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/cluster"
	"github.com/kqclabs/kqc/internal/workload"
)

// ScriptParams describes one batch script to generate.
type ScriptParams struct {
	// JobName is the bundle name; the phase is appended to it.
	JobName string

	// Phase selects which phase of each simulation the job runs.
	Phase string

	// Simulations are the per-simulation script names in bundle order.
	Simulations []string

	Profile  cluster.Profile
	Workload *workload.Workload
}

// BatchScript renders a complete sbatch script. Directives merge in
// rising precedence: phase resources, profile defaults, workload
// sbatch_parameters. Output is deterministic: directives and module
// loads keep a stable order and the script ends with a newline.
func BatchScript(p ScriptParams) string {
	directives := map[string]string{
		"job-name": fmt.Sprintf("%s_%s", p.JobName, p.Phase),
		"nodes":    "1",
	}
	switch p.Phase {
	case backend.PhaseMesh:
		directives["ntasks"] = "1"
		directives["cpus-per-task"] = fmt.Sprintf("%d", p.Workload.GmshNThreads)
	case backend.PhaseSolve:
		directives["ntasks"] = fmt.Sprintf("%d", p.Workload.ElmerNProcesses)
		directives["cpus-per-task"] = fmt.Sprintf("%d", p.Workload.ElmerNThreads)
	}
	if p.Profile.Partition != "" {
		directives["partition"] = p.Profile.Partition
	}
	if p.Profile.Account != "" {
		directives["account"] = p.Profile.Account
	}
	for k, v := range p.Profile.SbatchDefaults {
		directives[strings.TrimLeft(k, "-")] = v
	}
	for k, v := range p.Workload.SbatchParameters {
		directives[strings.TrimLeft(k, "-")] = v
	}

	keys := make([]string, 0, len(directives))
	for k := range directives {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "#SBATCH --%s=%s\n", k, directives[k])
	}
	b.WriteString("set -e\n")
	b.WriteString(`cd "$(dirname "$0")"` + "\n")

	if len(p.Profile.Modules) > 0 {
		b.WriteString("\n")
		for _, m := range p.Profile.Modules {
			fmt.Fprintf(&b, "module load %s\n", m)
		}
	}

	b.WriteString("\n")
	for _, e := range backend.EnvForPhase(p.Workload, p.Phase) {
		fmt.Fprintf(&b, "export %s\n", e)
	}
	if p.Phase == backend.PhaseSolve {
		// Under Slurm the solver processes are placed by srun, not by a
		// local mpirun.
		b.WriteString("export ELMER_LAUNCHER=srun\n")
	}

	b.WriteString("\n")
	for _, sim := range p.Simulations {
		fmt.Fprintf(&b, "%sbash %q %s\n", runPrefix(p.Profile), sim+".sh", p.Phase)
	}
	return b.String()
}

func runPrefix(p cluster.Profile) string {
	if p.SingularityImage == "" {
		return ""
	}
	return fmt.Sprintf("singularity exec %q ", p.SingularityImage)
}
