package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/fsutil"
	"github.com/kqclabs/kqc/internal/ledger"
	"github.com/kqclabs/kqc/internal/testutil"
	"github.com/kqclabs/kqc/internal/workload"
)

// eventLog collects runner events from concurrent workers.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventLog) add(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) index(simulation, phase, status string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, ev := range e.events {
		if ev.Simulation == simulation && ev.Phase == phase && ev.Status == status {
			return i
		}
	}
	return -1
}

func testWorkload() *workload.Workload {
	w := workload.Default()
	w.NWorkers = 2
	w.GmshNThreads = 4
	w.ElmerNProcesses = 2
	w.ElmerNThreads = 3
	return w
}

// stubScript plants a phase script that records the environment it ran
// under and touches a done marker, failing solve when mesh never ran.
func stubScript(t *testing.T, bundle backend.Bundle, sim string) {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/bash
phase="$1"
if [ "$phase" = "solve" ] && [ ! -f "%[1]s_mesh.done" ]; then
  echo "mesh output missing" >&2
  exit 9
fi
echo "running $phase"
echo "gmsh=${GMSH_N_THREADS:-unset} procs=${ELMER_N_PROCESSES:-unset} omp=${OMP_NUM_THREADS:-unset}" > "%[1]s_${phase}.env"
touch "%[1]s_${phase}.done"
`, sim)
	require.NoError(t, fsutil.WriteExecutable(bundle.SimScript(sim), []byte(script)))
}

// failingScript plants a phase script that always dies on mesh.
func failingScript(t *testing.T, bundle backend.Bundle, sim string) {
	t.Helper()
	script := `#!/bin/bash
echo "gmsh blew up" >&2
exit 1
`
	require.NoError(t, fsutil.WriteExecutable(bundle.SimScript(sim), []byte(script)))
}

func requireBash(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	phases := []string{backend.PhaseMesh, backend.PhaseSolve}

	t.Run("runs mesh before solve for every simulation", func(t *testing.T) {
		requireBash(t)
		// Arrange
		bundle := backend.Bundle{Dir: t.TempDir()}
		sims := []string{"xmons_1", "xmons_2"}
		for _, sim := range sims {
			stubScript(t, bundle, sim)
		}
		events := &eventLog{}
		r := New(Options{
			Bundle:   bundle,
			Workload: testWorkload(),
			Phases:   phases,
			OnEvent:  events.add,
		})

		// Act
		summary, err := r.Run(ctx, sims)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 4, summary.OK)
		assert.Zero(t, summary.Failed)
		assert.Zero(t, summary.Skipped)
		for _, sim := range sims {
			assert.FileExists(t, filepath.Join(bundle.Dir, sim+"_mesh.done"))
			assert.FileExists(t, filepath.Join(bundle.Dir, sim+"_solve.done"))

			meshOK := events.index(sim, "mesh", ledger.StatusOK)
			solveStart := events.index(sim, "solve", ledger.StatusRunning)
			require.GreaterOrEqual(t, meshOK, 0)
			require.GreaterOrEqual(t, solveStart, 0)
			assert.Less(t, meshOK, solveStart, "solve must not start before mesh finishes")
		}
	})

	t.Run("exports phase environments to the scripts", func(t *testing.T) {
		requireBash(t)
		bundle := backend.Bundle{Dir: t.TempDir()}
		stubScript(t, bundle, "xmons_1")
		r := New(Options{Bundle: bundle, Workload: testWorkload(), Phases: phases})

		_, err := r.Run(ctx, []string{"xmons_1"})

		require.NoError(t, err)
		meshEnv, err := os.ReadFile(filepath.Join(bundle.Dir, "xmons_1_mesh.env"))
		require.NoError(t, err)
		assert.Equal(t, "gmsh=4 procs=unset omp=4\n", string(meshEnv))
		solveEnv, err := os.ReadFile(filepath.Join(bundle.Dir, "xmons_1_solve.env"))
		require.NoError(t, err)
		assert.Equal(t, "gmsh=unset procs=2 omp=3\n", string(solveEnv))
	})

	t.Run("captures phase output in log files", func(t *testing.T) {
		requireBash(t)
		bundle := backend.Bundle{Dir: t.TempDir()}
		stubScript(t, bundle, "xmons_1")
		r := New(Options{Bundle: bundle, Workload: testWorkload(), Phases: phases})

		_, err := r.Run(ctx, []string{"xmons_1"})

		require.NoError(t, err)
		log, err := os.ReadFile(bundle.SimLog("xmons_1", "mesh"))
		require.NoError(t, err)
		assert.Contains(t, string(log), "running mesh")
	})

	t.Run("logs phase transitions", func(t *testing.T) {
		requireBash(t)
		// Arrange
		logCtx, logs := testutil.CaptureContext(ctx)
		bundle := backend.Bundle{Dir: t.TempDir()}
		stubScript(t, bundle, "xmons_1")
		r := New(Options{Bundle: bundle, Workload: testWorkload(), Phases: phases})

		// Act
		_, err := r.Run(logCtx, []string{"xmons_1"})

		// Assert
		require.NoError(t, err)
		out := logs.String()
		assert.Contains(t, out, "Running simulations")
		assert.Contains(t, out, "Running phase")
		assert.Contains(t, out, "Phase finished")
		assert.Contains(t, out, "Run complete")
	})

	t.Run("isolates a failing simulation", func(t *testing.T) {
		requireBash(t)
		// Arrange
		bundle := backend.Bundle{Dir: t.TempDir()}
		failingScript(t, bundle, "xmons_1")
		stubScript(t, bundle, "xmons_2")
		led, lerr := ledger.Open(filepath.Join(t.TempDir(), "kqc.db"))
		require.NoError(t, lerr)
		t.Cleanup(func() { _ = led.Close() })
		run, lerr := led.StartRun(ctx, ledger.KindSimulate, "chip.py")
		require.NoError(t, lerr)
		events := &eventLog{}
		r := New(Options{
			Bundle:   bundle,
			Workload: testWorkload(),
			Phases:   phases,
			Ledger:   led,
			RunID:    run.ID,
			OnEvent:  events.add,
		})

		// Act
		summary, err := r.Run(ctx, []string{"xmons_1", "xmons_2"})

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "xmons_1/mesh")
		assert.Contains(t, err.Error(), "gmsh blew up")
		assert.Equal(t, 2, summary.OK)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 1, summary.Skipped)

		jobs, lerr := led.JobsForRun(ctx, run.ID)
		require.NoError(t, lerr)
		require.Len(t, jobs, 4)
		byNode := map[string]ledger.Job{}
		for _, j := range jobs {
			byNode[j.Simulation+"/"+j.Phase] = j
		}
		assert.Equal(t, ledger.StatusFailed, byNode["xmons_1/mesh"].Status)
		assert.Contains(t, byNode["xmons_1/mesh"].Error, "gmsh blew up")
		assert.Equal(t, ledger.StatusSkipped, byNode["xmons_1/solve"].Status)
		assert.Equal(t, ledger.StatusOK, byNode["xmons_2/mesh"].Status)
		assert.Equal(t, ledger.StatusOK, byNode["xmons_2/solve"].Status)
	})

	t.Run("fail fast cancels the remaining graph", func(t *testing.T) {
		requireBash(t)
		bundle := backend.Bundle{Dir: t.TempDir()}
		failingScript(t, bundle, "xmons_1")
		stubScript(t, bundle, "xmons_2")
		w := testWorkload()
		w.NWorkers = 1
		w.FailFast = true
		r := New(Options{Bundle: bundle, Workload: w, Phases: phases})

		summary, err := r.Run(ctx, []string{"xmons_1", "xmons_2"})

		require.Error(t, err)
		assert.Zero(t, summary.OK)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 3, summary.Skipped)
		assert.NoFileExists(t, filepath.Join(bundle.Dir, "xmons_2_mesh.done"))
	})

	t.Run("honors the worker bound", func(t *testing.T) {
		requireBash(t)
		// One worker runs the pool strictly serially, so the lock file
		// planted by each script must never collide.
		bundle := backend.Bundle{Dir: t.TempDir()}
		for _, sim := range []string{"xmons_1", "xmons_2"} {
			script := `#!/bin/bash
if [ -f lock ]; then echo overlap >> overlaps; fi
touch lock
sleep 0.05
rm -f lock
`
			require.NoError(t, fsutil.WriteExecutable(bundle.SimScript(sim), []byte(script)))
		}
		w := testWorkload()
		w.NWorkers = 1
		r := New(Options{Bundle: bundle, Workload: w, Phases: []string{backend.PhaseMesh}})

		summary, err := r.Run(ctx, []string{"xmons_1", "xmons_2"})

		require.NoError(t, err)
		assert.Equal(t, 2, summary.OK)
		assert.NoFileExists(t, filepath.Join(bundle.Dir, "overlaps"))
	})

	t.Run("rejects an empty phase list", func(t *testing.T) {
		r := New(Options{Bundle: backend.Bundle{Dir: t.TempDir()}, Workload: testWorkload()})

		_, err := r.Run(ctx, []string{"xmons_1"})

		require.Error(t, err)
	})
}
