package elmer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/kqclabs/kqc/internal/manifest"
	"github.com/kqclabs/kqc/internal/suggest"
)

// Sif skeletons are rendered once per solution type at export time.
// Values that vary per simulation stay behind @-tokens and are filled
// by elmer_helpers.py at solve time.
var sifTemplates = map[string]*template.Template{
	"CapacitanceMatrix": template.Must(template.New("CapacitanceMatrix").Parse(capacitanceMatrixSif)),
	"CrossSection":      template.Must(template.New("CrossSection").Parse(crossSectionSif)),
}

type sifData struct {
	Name     string
	Scaling  string
	Signals  int
	Signal   []int
	GroundBC int
}

// renderSif produces the skeleton for one solution type. Body counts
// come from the first simulation using the type; per-simulation values
// are runtime tokens.
func renderSif(solutionType string, m *manifest.Manifest) (string, error) {
	tmpl, ok := sifTemplates[solutionType]
	if !ok {
		known := make([]string, 0, len(sifTemplates))
		for name := range sifTemplates {
			known = append(known, name)
		}
		sort.Strings(known)
		if near, ok := suggest.Closest(solutionType, known); ok {
			return "", fmt.Errorf("no sif skeleton for solution type %q, did you mean %q?", solutionType, near)
		}
		return "", fmt.Errorf("no sif skeleton for solution type %q, available: %s", solutionType, strings.Join(known, ", "))
	}

	var sim *manifest.Simulation
	for i := range m.Simulations {
		if m.Simulations[i].Solution.Type == solutionType {
			sim = &m.Simulations[i]
			break
		}
	}
	if sim == nil {
		return "", fmt.Errorf("no simulation uses solution type %q", solutionType)
	}

	signals := sim.Solution.Signals
	if signals < 1 {
		signals = 1
	}
	data := sifData{
		Name:     m.Name,
		Scaling:  coordinateScaling(m.Units),
		Signals:  signals,
		Signal:   make([]int, signals),
		GroundBC: signals + 1,
	}
	for i := range data.Signal {
		data.Signal[i] = i + 1
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render sif for %s: %w", solutionType, err)
	}
	return buf.String(), nil
}

// coordinateScaling maps the manifest's length unit onto the meter
// scaling Elmer applies to mesh coordinates.
func coordinateScaling(units string) string {
	switch units {
	case "nm":
		return "1.0e-9"
	case "mm":
		return "1.0e-3"
	case "m":
		return "1.0"
	default:
		// Layouts are micrometer-based unless stated otherwise.
		return "1.0e-6"
	}
}

const capacitanceMatrixSif = `! Capacitance matrix setup for {{.Name}}.
! @-tokens are filled per simulation at solve time.

Header
  CHECK KEYWORDS Warn
  Mesh DB "@MESH_DIR@" "."
  Results Directory "."
End

Simulation
  Max Output Level = 5
  Coordinate System = Cartesian
  Coordinate Scaling = {{.Scaling}}
  Simulation Type = Steady State
  Steady State Max Iterations = 1
End

Constants
  Permittivity Of Vacuum = 8.8542e-12
End

Body 1
  Target Bodies(1) = 1
  Equation = 1
  Material = 1
End

Equation 1
  Active Solvers(2) = 1 2
End

Solver 1
  Equation = Electrostatics
  Procedure = "StatElecSolve" "StatElecSolver"
  Variable = Potential
  Calculate Capacitance Matrix = True
  Capacitance Matrix Filename = capacitance.dat
  Capacitance Bodies = {{.Signals}}
  Linear System Solver = Iterative
  Linear System Iterative Method = BiCGStab
  Linear System Max Iterations = 1000
  Linear System Convergence Tolerance = 1.0e-9
  Linear System Preconditioning = ILU1
End

Solver 2
  Equation = ResultOutput
  Procedure = "ResultOutputSolve" "ResultOutputSolver"
  Output File Name = case
  Vtu Format = Logical True
End

Material 1
  Relative Permittivity = @PERMITTIVITY@
End
{{range .Signal}}
Boundary Condition {{.}}
  Target Boundaries(1) = {{.}}
  Capacitance Body = {{.}}
End
{{end}}
Boundary Condition {{.GroundBC}}
  Target Boundaries(1) = {{.GroundBC}}
  Potential = 0.0
End
`

const crossSectionSif = `! Cross section capacitance setup for {{.Name}}.
! @-tokens are filled per simulation at solve time.

Header
  CHECK KEYWORDS Warn
  Mesh DB "@MESH_DIR@" "."
  Results Directory "."
End

Simulation
  Max Output Level = 5
  Coordinate System = Cartesian 2D
  Coordinate Scaling = {{.Scaling}}
  Simulation Type = Steady State
  Steady State Max Iterations = 1
End

Constants
  Permittivity Of Vacuum = 8.8542e-12
End

Body 1
  Target Bodies(1) = 1
  Equation = 1
  Material = 1
End

Equation 1
  Active Solvers(1) = 1
End

Solver 1
  Equation = Electrostatics
  Procedure = "StatElecSolve" "StatElecSolver"
  Variable = Potential
  Calculate Capacitance Matrix = True
  Capacitance Matrix Filename = capacitance.dat
  Capacitance Bodies = {{.Signals}}
  Linear System Solver = Direct
  Linear System Direct Method = UMFPack
End

Material 1
  Relative Permittivity = @PERMITTIVITY@
End
{{range .Signal}}
Boundary Condition {{.}}
  Target Boundaries(1) = {{.}}
  Capacitance Body = {{.}}
End
{{end}}
Boundary Condition {{.GroundBC}}
  Target Boundaries(1) = {{.GroundBC}}
  Potential = 0.0
End
`
