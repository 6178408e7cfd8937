package elmer

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/kqclabs/kqc/internal/manifest"
	"github.com/kqclabs/kqc/internal/workload"
)

var phaseScriptTemplate = template.Must(template.New("phase_script").Parse(phaseScript))

type phaseScriptData struct {
	Name            string
	GmshNThreads    int
	ElmerNProcesses int
	ElmerNThreads   int
}

// renderPhaseScript produces the per-simulation shell script. The
// workload counts are baked in as defaults so a bare invocation without
// the runner or a batch job behaves the same; the environment wins when
// set.
func renderPhaseScript(sim *manifest.Simulation, w *workload.Workload) (string, error) {
	data := phaseScriptData{
		Name:            sim.Name,
		GmshNThreads:    w.GmshNThreads,
		ElmerNProcesses: w.ElmerNProcesses,
		ElmerNThreads:   w.ElmerNThreads,
	}
	var buf bytes.Buffer
	if err := phaseScriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render phase script for %s: %w", sim.Name, err)
	}
	return buf.String(), nil
}

const phaseScript = `#!/bin/bash
# Runs the {{.Name}} simulation. Usage: {{.Name}}.sh [mesh|solve|all]
set -e
cd "$(dirname "$0")"

PHASE="${1:-all}"
case "$PHASE" in
  mesh|solve|all) ;;
  *)
    echo "usage: $0 [mesh|solve|all]" >&2
    exit 2
    ;;
esac

export GMSH_N_THREADS="${GMSH_N_THREADS:-{{.GmshNThreads}}}"
export ELMER_N_PROCESSES="${ELMER_N_PROCESSES:-{{.ElmerNProcesses}}}"
export ELMER_N_THREADS="${ELMER_N_THREADS:-{{.ElmerNThreads}}}"

if [ "$PHASE" = "mesh" ] || [ "$PHASE" = "all" ]; then
  OMP_NUM_THREADS="$GMSH_N_THREADS" python3 scripts/run.py "{{.Name}}.json" --phase mesh
fi
if [ "$PHASE" = "solve" ] || [ "$PHASE" = "all" ]; then
  OMP_NUM_THREADS="$ELMER_N_THREADS" python3 scripts/run.py "{{.Name}}.json" --phase solve
fi
`
