package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/manifest"
	"github.com/kqclabs/kqc/internal/workload"
)

// sidecar is the per-simulation json document the bundle scripts read.
// It repeats the simulation record and adds bundle-level facts so one
// file fully describes one solver run.
type sidecar struct {
	manifest.Simulation
	Tool     string          `json:"tool"`
	Units    string          `json:"units"`
	Workload sidecarWorkload `json:"workload"`
}

// sidecarWorkload carries the counts under their config file names.
type sidecarWorkload struct {
	NWorkers         int               `json:"n_workers"`
	GmshNThreads     int               `json:"gmsh_n_threads"`
	ElmerNProcesses  int               `json:"elmer_n_processes"`
	ElmerNThreads    int               `json:"elmer_n_threads"`
	SbatchParameters map[string]string `json:"sbatch_parameters"`
}

func writeSidecar(bundle backend.Bundle, m *manifest.Manifest, w *workload.Workload, sim *manifest.Simulation) error {
	doc := sidecar{
		Simulation: *sim,
		Tool:       m.Tool,
		Units:      m.Units,
		Workload: sidecarWorkload{
			NWorkers:         w.NWorkers,
			GmshNThreads:     w.GmshNThreads,
			ElmerNProcesses:  w.ElmerNProcesses,
			ElmerNThreads:    w.ElmerNThreads,
			SbatchParameters: w.SbatchParameters,
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar for %s: %w", sim.Name, err)
	}
	if err := os.WriteFile(bundle.SimJSON(sim.Name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write sidecar for %s: %w", sim.Name, err)
	}
	return nil
}
