package workload

import (
	"fmt"
	"strings"
)

// Validate rejects values that make the workload unrunnable. Resource
// oversubscription is deliberately not an error, see Warnings.
func (w *Workload) Validate() error {
	for name, v := range map[string]int{
		"n_workers":         w.NWorkers,
		"gmsh_n_threads":    w.GmshNThreads,
		"elmer_n_processes": w.ElmerNProcesses,
		"elmer_n_threads":   w.ElmerNThreads,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	if strings.ContainsAny(w.Cluster, `/\`) {
		return fmt.Errorf("cluster %q must be a profile name, not a path", w.Cluster)
	}
	for k := range w.SbatchParameters {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("sbatch_parameters contains an empty key")
		}
	}
	return nil
}

// Warnings reports resource claims that exceed the given CPU count.
// The workload still runs; the operating system time-slices the excess.
func (w *Workload) Warnings(cpus int) []string {
	if cpus < 1 || w.Remote() {
		return nil
	}

	var warnings []string
	if claim := w.NWorkers * w.CPUsPerSimulation(); claim > cpus {
		warnings = append(warnings, fmt.Sprintf(
			"workload claims up to %d CPUs (%d workers x %d per simulation) but %d are available",
			claim, w.NWorkers, w.CPUsPerSimulation(), cpus,
		))
	}
	if w.ElmerNThreads > w.ElmerNProcesses {
		warnings = append(warnings, fmt.Sprintf(
			"elmer_n_threads=%d exceeds elmer_n_processes=%d; prefer more processes than threads unless the problem is small",
			w.ElmerNThreads, w.ElmerNProcesses,
		))
	}
	return warnings
}
