// Package manifest defines the JSON contract between host-side export
// scripts and kqc. The host application builds geometry and writes a
// staging directory containing manifest.json plus the referenced layout
// files; everything downstream (bundle layout, scripts, scheduling) is
// derived from this model.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileName is the manifest's fixed name inside a staging directory.
const FileName = "manifest.json"

// Point is an (x, y) coordinate in the manifest's length unit.
type Point [2]float64

// Box is an axis-aligned bounding box.
type Box struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Width returns the box extent along x.
func (b Box) Width() float64 { return b.Max[0] - b.Min[0] }

// Height returns the box extent along y.
func (b Box) Height() float64 { return b.Max[1] - b.Min[1] }

// Port is an excitation or measurement site in a simulation.
type Port struct {
	Number         int     `json:"number"`
	Resistance     float64 `json:"resistance,omitempty"`
	Inductance     float64 `json:"inductance,omitempty"`
	Capacitance    float64 `json:"capacitance,omitempty"`
	Junction       bool    `json:"junction,omitempty"`
	SignalLocation Point   `json:"signal_location"`
}

// Layer maps a named layer onto its layout layer/datatype pair.
type Layer struct {
	Layer    int `json:"layer"`
	Datatype int `json:"datatype"`
}

// Solution selects and parametrizes the solver run for a simulation.
type Solution struct {
	// Type names the solver setup, e.g. "CapacitanceMatrix". It becomes
	// the sif file name for the elmer backend.
	Type string `json:"type"`

	// Signals and Grounds count the conductor bodies of the setup.
	Signals int `json:"signals"`
	Grounds int `json:"grounds"`

	// Permittivity of the substrate, used by generated solver inputs.
	Permittivity float64 `json:"permittivity,omitempty"`
}

// Simulation is one exported variant: a geometry file plus the solver
// setup and the opaque parameter sweep values that produced it.
type Simulation struct {
	Name       string               `json:"name"`
	Index      int                  `json:"index"`
	GDS        string               `json:"gds"`
	Parameters map[string]any       `json:"parameters,omitempty"`
	Solution   Solution             `json:"solution"`
	Box        Box                  `json:"box"`
	Ports      []Port               `json:"ports,omitempty"`
	Layers     map[string]Layer     `json:"layers,omitempty"`
	Polygons   map[string][][]Point `json:"polygons,omitempty"`
}

// Manifest is the root document of a staging directory.
type Manifest struct {
	Name        string       `json:"name"`
	Tool        string       `json:"tool"`
	Units       string       `json:"units"`
	Layout      string       `json:"layout"`
	Commit      string       `json:"commit,omitempty"`
	Simulations []Simulation `json:"simulations"`

	// Dir is the staging directory the manifest was loaded from. It is
	// not part of the wire format; relative file references resolve
	// against it.
	Dir string `json:"-"`
}

// Decode reads a manifest document from r.
func Decode(r io.Reader) (*Manifest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Load reads and validates <dir>/manifest.json. dir may also point
// directly at a manifest file.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("manifest path: %w", err)
	}

	file := path
	dir := filepath.Dir(path)
	if info.IsDir() {
		dir = path
		file = filepath.Join(path, FileName)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, err
	}
	m.Dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LayoutPath resolves the combined layout file against the staging dir.
func (m *Manifest) LayoutPath() string {
	return filepath.Join(m.Dir, m.Layout)
}

// GDSPath resolves a simulation's geometry file against the staging dir.
func (m *Manifest) GDSPath(s *Simulation) string {
	return filepath.Join(m.Dir, s.GDS)
}

// SolutionTypes returns the distinct solution type names across all
// simulations, in first-seen order. The elmer backend writes one sif
// file per entry.
func (m *Manifest) SolutionTypes() []string {
	seen := make(map[string]struct{}, 1)
	var types []string
	for i := range m.Simulations {
		t := m.Simulations[i].Solution.Type
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types
}
