package export

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/kqclabs/kqc/internal/workload"
)

var (
	localScriptTemplate   = template.Must(template.New("simulation_local").Parse(localScript))
	clusterScriptTemplate = template.Must(template.New("simulation_cluster").Parse(clusterScript))
)

// renderLocalScript produces simulation.sh for bundles that run where
// they were exported. Simulations run through an xargs pool sized like
// the workload's worker count; one failing simulation does not stop
// the others.
func renderLocalScript(names []string, w *workload.Workload) (string, error) {
	data := struct {
		Simulations []string
		NWorkers    int
	}{Simulations: names, NWorkers: w.NWorkers}

	var buf bytes.Buffer
	if err := localScriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render simulation.sh: %w", err)
	}
	return buf.String(), nil
}

// renderClusterScript produces simulation.sh for cluster bundles: it
// submits one batch job per phase, each gated on the previous one.
func renderClusterScript(phases []string) (string, error) {
	data := struct {
		Phases []string
	}{Phases: phases}

	var buf bytes.Buffer
	if err := clusterScriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render simulation.sh: %w", err)
	}
	return buf.String(), nil
}

const localScript = `#!/bin/bash
# Runs every simulation of this bundle on the local machine.
# N_WORKERS bounds how many simulations run at once.
cd "$(dirname "$0")"

N_WORKERS="${N_WORKERS:-{{.NWorkers}}}"

printf '%s\n' \
{{- range .Simulations}}
  {{printf "%q" (printf "%s.sh" .)}} \
{{- end}}
  | xargs -n 1 -P "$N_WORKERS" -I {} bash {} all
`

const clusterScript = `#!/bin/bash
# Submits this bundle as chained batch jobs.
set -e
cd "$(dirname "$0")"
{{range $i, $phase := .Phases}}
{{- if eq $i 0}}
JOB_ID=$(sbatch --parsable "sbatch_{{$phase}}.sh")
{{- else}}
JOB_ID=$(sbatch --parsable --dependency=afterok:${JOB_ID} "sbatch_{{$phase}}.sh")
{{- end}}
echo "{{$phase}} job: ${JOB_ID}"
{{- end}}
`
