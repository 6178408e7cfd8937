package backend

import "path/filepath"

// Fixed file names inside a bundle.
const (
	CommitReferenceFile = "COMMIT_REFERENCE"
	ManifestFile        = "manifest.json"
	ScriptsDir          = "scripts"
	SifDir              = "sif"
	MainScript          = "simulation.sh"
	MeshBatchScript     = "sbatch_mesh.sh"
	SolveBatchScript    = "sbatch_solve.sh"
)

// Bundle locates files inside an exported bundle directory. The layout
// is flat: per-simulation files sit next to simulation.sh, shared
// content lives in the scripts and sif subdirectories.
type Bundle struct {
	Dir string
}

func (b Bundle) CommitReference() string { return filepath.Join(b.Dir, CommitReferenceFile) }
func (b Bundle) ManifestPath() string    { return filepath.Join(b.Dir, ManifestFile) }
func (b Bundle) ScriptsPath() string     { return filepath.Join(b.Dir, ScriptsDir) }
func (b Bundle) SifDirPath() string      { return filepath.Join(b.Dir, SifDir) }
func (b Bundle) SifPath(solutionType string) string {
	return filepath.Join(b.SifDirPath(), solutionType+".sif")
}
func (b Bundle) MainScriptPath() string { return filepath.Join(b.Dir, MainScript) }
func (b Bundle) BatchScriptPath(phase string) string {
	return filepath.Join(b.Dir, "sbatch_"+phase+".sh")
}

// Per-simulation files are named after the simulation.
func (b Bundle) SimGDS(name string) string    { return filepath.Join(b.Dir, name+".gds") }
func (b Bundle) SimJSON(name string) string   { return filepath.Join(b.Dir, name+".json") }
func (b Bundle) SimScript(name string) string { return filepath.Join(b.Dir, name+".sh") }
func (b Bundle) SimPNG(name string) string    { return filepath.Join(b.Dir, name+".png") }

// SimLog is where the runner captures one phase's output.
func (b Bundle) SimLog(name, phase string) string {
	return filepath.Join(b.Dir, name+"_"+phase+".log")
}
