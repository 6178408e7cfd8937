package backend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kqclabs/kqc/internal/workload"
)

func TestEnvForPhase(t *testing.T) {
	w := workload.Default()
	w.GmshNThreads = 4
	w.ElmerNProcesses = 8
	w.ElmerNThreads = 2

	t.Run("mesh claims gmsh threads", func(t *testing.T) {
		assert.Equal(t, []string{
			"GMSH_N_THREADS=4",
			"OMP_NUM_THREADS=4",
		}, EnvForPhase(w, PhaseMesh))
	})

	t.Run("solve claims solver processes and threads", func(t *testing.T) {
		assert.Equal(t, []string{
			"ELMER_N_PROCESSES=8",
			"ELMER_N_THREADS=2",
			"OMP_NUM_THREADS=2",
		}, EnvForPhase(w, PhaseSolve))
	})

	t.Run("unknown phases claim nothing", func(t *testing.T) {
		assert.Nil(t, EnvForPhase(w, "import"))
	})
}

func TestBundlePaths(t *testing.T) {
	b := Bundle{Dir: filepath.Join("tmp", "xmons_output")}

	assert.Equal(t, filepath.Join("tmp", "xmons_output", "COMMIT_REFERENCE"), b.CommitReference())
	assert.Equal(t, filepath.Join("tmp", "xmons_output", "sif"), b.SifDirPath())
	assert.Equal(t, filepath.Join("tmp", "xmons_output", "sif", "CapacitanceMatrix.sif"), b.SifPath("CapacitanceMatrix"))
	assert.Equal(t, filepath.Join("tmp", "xmons_output", "sbatch_mesh.sh"), b.BatchScriptPath(PhaseMesh))
	assert.Equal(t, filepath.Join("tmp", "xmons_output", "xmons_1.json"), b.SimJSON("xmons_1"))
	assert.Equal(t, filepath.Join("tmp", "xmons_output", "xmons_1.sh"), b.SimScript("xmons_1"))
}
