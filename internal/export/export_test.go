package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/backend/ansys"
	"github.com/kqclabs/kqc/internal/backend/elmer"
	"github.com/kqclabs/kqc/internal/cluster"
	"github.com/kqclabs/kqc/internal/manifest"
	"github.com/kqclabs/kqc/internal/workload"
)

const stagedManifest = `{
	"name": "xmons",
	"tool": "elmer",
	"units": "um",
	"layout": "xmons.oas",
	"commit": "8c1f2ab",
	"simulations": [
		{
			"name": "xmons_2",
			"index": 1,
			"gds": "xmons_2.gds",
			"solution": {"type": "CapacitanceMatrix", "signals": 1, "grounds": 1, "permittivity": 11.45},
			"box": {"min": [0, 0], "max": [500, 500]}
		},
		{
			"name": "xmons_1",
			"index": 0,
			"gds": "xmons_1.gds",
			"parameters": {"coupler_width": 24.5},
			"solution": {"type": "CapacitanceMatrix", "signals": 1, "grounds": 1, "permittivity": 11.45},
			"box": {"min": [0, 0], "max": [500, 500]},
			"polygons": {"signal_1": [[[10, 10], [100, 10], [100, 100], [10, 100]]]}
		}
	]
}`

func stageManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(stagedManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xmons.oas"), []byte("oas-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xmons_1.gds"), []byte("gds-one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xmons_2.gds"), []byte("gds-two"), 0o644))

	m, err := manifest.Load(dir)
	require.NoError(t, err)
	return m
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("builds a complete local bundle", func(t *testing.T) {
		// Arrange
		m := stageManifest(t)
		w := workload.Default()
		w.NWorkers = 2
		e := New(t.TempDir())

		// Act
		res, err := e.Export(ctx, Request{Manifest: m, Workload: w, Backend: elmer.New()})

		// Assert
		require.NoError(t, err)
		b := res.Bundle
		assert.Equal(t, []string{"xmons_1", "xmons_2"}, res.Simulations, "run order follows indices")

		ref, err := os.ReadFile(b.CommitReference())
		require.NoError(t, err)
		assert.Contains(t, string(ref), "kqc_version:")
		assert.Contains(t, string(ref), "library_commit: 8c1f2ab")

		for _, path := range []string{
			b.ManifestPath(),
			filepath.Join(b.Dir, "xmons.oas"),
			b.SimGDS("xmons_1"),
			b.SimGDS("xmons_2"),
			filepath.Join(b.ScriptsPath(), "run.py"),
			b.SifPath("CapacitanceMatrix"),
			filepath.Join(b.SifDirPath(), "electric_potential.pvsm"),
			b.SimJSON("xmons_1"),
			b.SimScript("xmons_1"),
			b.MainScriptPath(),
		} {
			_, err := os.Stat(path)
			assert.NoError(t, err, path)
		}

		gds, err := os.ReadFile(b.SimGDS("xmons_2"))
		require.NoError(t, err)
		assert.Equal(t, "gds-two", string(gds))

		main, err := os.ReadFile(b.MainScriptPath())
		require.NoError(t, err)
		script := string(main)
		assert.Contains(t, script, `xargs -n 1 -P "$N_WORKERS"`)
		assert.Contains(t, script, `N_WORKERS="${N_WORKERS:-2}"`)
		assert.Less(t, strings.Index(script, `"xmons_1.sh"`), strings.Index(script, `"xmons_2.sh"`))
	})

	t.Run("sidecars carry the workload counts verbatim", func(t *testing.T) {
		m := stageManifest(t)
		w := workload.Default()
		w.GmshNThreads = 4
		w.ElmerNProcesses = 2
		w.SbatchParameters["--time"] = "00:30:00"
		e := New(t.TempDir())

		res, err := e.Export(ctx, Request{Manifest: m, Workload: w, Backend: elmer.New()})
		require.NoError(t, err)

		data, err := os.ReadFile(res.Bundle.SimJSON("xmons_1"))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(string(data), "\n"))

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "elmer", doc["tool"])
		assert.Equal(t, "um", doc["units"])
		wl := doc["workload"].(map[string]any)
		assert.Equal(t, float64(4), wl["gmsh_n_threads"])
		assert.Equal(t, float64(2), wl["elmer_n_processes"])
		assert.Equal(t, float64(1), wl["elmer_n_threads"])
		assert.Equal(t, map[string]any{"--time": "00:30:00"}, wl["sbatch_parameters"])
		params := doc["parameters"].(map[string]any)
		assert.Equal(t, 24.5, params["coupler_width"])
	})

	t.Run("cluster bundles get batch scripts and a submit chain", func(t *testing.T) {
		m := stageManifest(t)
		w := workload.Default()
		w.Cluster = "lumi"
		profile := cluster.Profile{Partition: "small", Account: "project_462000"}
		e := New(t.TempDir())

		res, err := e.Export(ctx, Request{Manifest: m, Workload: w, Backend: elmer.New(), Profile: &profile})
		require.NoError(t, err)

		b := res.Bundle
		mesh, err := os.ReadFile(b.BatchScriptPath(backend.PhaseMesh))
		require.NoError(t, err)
		assert.Contains(t, string(mesh), "#SBATCH --partition=small")
		assert.Contains(t, string(mesh), `bash "xmons_1.sh" mesh`)

		_, err = os.Stat(b.BatchScriptPath(backend.PhaseSolve))
		require.NoError(t, err)

		main, err := os.ReadFile(b.MainScriptPath())
		require.NoError(t, err)
		script := string(main)
		assert.Contains(t, script, `sbatch --parsable "sbatch_mesh.sh"`)
		assert.Contains(t, script, `--dependency=afterok:${JOB_ID} "sbatch_solve.sh"`)
	})

	t.Run("renders previews when the workload asks for them", func(t *testing.T) {
		m := stageManifest(t)
		w := workload.Default()
		w.PreviewPNG = true
		e := New(t.TempDir())

		res, err := e.Export(ctx, Request{Manifest: m, Workload: w, Backend: elmer.New()})
		require.NoError(t, err)

		_, err = os.Stat(res.Bundle.SimPNG("xmons_1"))
		assert.NoError(t, err)
	})

	t.Run("refuses a non-empty bundle directory", func(t *testing.T) {
		m := stageManifest(t)
		tmp := t.TempDir()
		dir := filepath.Join(tmp, "xmons_output")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "stale"), []byte("x"), 0o644))
		e := New(tmp)

		_, err := e.Export(ctx, Request{Manifest: m, Workload: workload.Default(), Backend: elmer.New()})

		require.ErrorContains(t, err, "already exists")
	})

	t.Run("force replaces a stale bundle directory", func(t *testing.T) {
		m := stageManifest(t)
		tmp := t.TempDir()
		dir := filepath.Join(tmp, "xmons_output")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		stale := filepath.Join(dir, "stale")
		require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
		e := New(tmp)

		res, err := e.Export(ctx, Request{Manifest: m, Workload: workload.Default(), Backend: elmer.New(), Force: true})

		require.NoError(t, err)
		_, err = os.Stat(stale)
		assert.True(t, os.IsNotExist(err), "stale content is gone")
		_, err = os.Stat(res.Bundle.MainScriptPath())
		assert.NoError(t, err)
	})

	t.Run("identical inputs produce identical generated text", func(t *testing.T) {
		exported := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		build := func() map[string]string {
			m := stageManifest(t)
			e := New(t.TempDir())
			e.now = func() time.Time { return exported }

			res, err := e.Export(ctx, Request{Manifest: m, Workload: workload.Default(), Backend: elmer.New()})
			require.NoError(t, err)

			files := map[string]string{}
			for _, path := range []string{
				res.Bundle.CommitReference(),
				res.Bundle.MainScriptPath(),
				res.Bundle.SimJSON("xmons_1"),
				res.Bundle.SimScript("xmons_1"),
				res.Bundle.SifPath("CapacitanceMatrix"),
			} {
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				files[filepath.Base(path)] = string(data)
			}
			return files
		}

		assert.Equal(t, build(), build())
	})

	t.Run("rejects cluster workloads for export-only tools", func(t *testing.T) {
		m := stageManifest(t)
		w := workload.Default()
		w.Cluster = "lumi"
		e := New(t.TempDir())

		_, err := e.Export(ctx, Request{Manifest: m, Workload: w, Backend: ansys.New(), Profile: &cluster.Profile{}})

		require.ErrorContains(t, err, "cannot run on a cluster")
	})

	t.Run("export-only tools skip simulation.sh", func(t *testing.T) {
		m := stageManifest(t)
		m.Tool = "ansys"
		e := New(t.TempDir())

		res, err := e.Export(ctx, Request{Manifest: m, Workload: workload.Default(), Backend: ansys.New()})
		require.NoError(t, err)

		_, err = os.Stat(res.Bundle.MainScriptPath())
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(filepath.Join(res.Bundle.Dir, ansys.ImportBatchFile))
		assert.NoError(t, err)
	})
}
