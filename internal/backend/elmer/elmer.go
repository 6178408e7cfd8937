// Package elmer targets the open source Gmsh and Elmer toolchain.
// Bundles it writes run standalone: python helper scripts mesh the
// geometry, convert it with ElmerGrid and drive ElmerSolver, all in two
// chainable phases.
package elmer

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/fsutil"
	"github.com/kqclabs/kqc/internal/manifest"
)

//go:embed assets/*.py assets/*.pvsm
var assets embed.FS

// Backend implements backend.Backend for the elmer tool.
type Backend struct{}

// New creates the elmer backend.
func New() *Backend {
	return &Backend{}
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	return "elmer"
}

// Phases implements backend.Backend. Meshing and solving are separate
// so batch schedulers can chain them as dependent jobs.
func (b *Backend) Phases() []string {
	return []string{backend.PhaseMesh, backend.PhaseSolve}
}

// WriteAssets implements backend.Backend: the embedded python helpers
// go to scripts/, the paraview state file and one rendered sif skeleton
// per solution type to sif/.
func (b *Backend) WriteAssets(ctx context.Context, ec *backend.ExportContext) error {
	logger := ctxlog.FromContext(ctx)

	entries, err := assets.ReadDir("assets")
	if err != nil {
		return fmt.Errorf("read embedded assets: %w", err)
	}
	if err := os.MkdirAll(ec.ScriptsPath(), 0o755); err != nil {
		return fmt.Errorf("create scripts directory: %w", err)
	}
	if err := os.MkdirAll(ec.SifDirPath(), 0o755); err != nil {
		return fmt.Errorf("create sif directory: %w", err)
	}
	for _, entry := range entries {
		data, err := assets.ReadFile(path.Join("assets", entry.Name()))
		if err != nil {
			return fmt.Errorf("read embedded asset %s: %w", entry.Name(), err)
		}
		dir := ec.ScriptsPath()
		if path.Ext(entry.Name()) == ".pvsm" {
			// Paraview state sits next to the solver inputs it opens.
			dir = ec.SifDirPath()
		}
		if err := os.WriteFile(filepath.Join(dir, entry.Name()), data, 0o644); err != nil {
			return fmt.Errorf("write asset %s: %w", entry.Name(), err)
		}
	}
	logger.Debug("Helper scripts written.", "count", len(entries))

	for _, solutionType := range ec.Manifest.SolutionTypes() {
		sif, err := renderSif(solutionType, ec.Manifest)
		if err != nil {
			return err
		}
		if err := os.WriteFile(ec.SifPath(solutionType), []byte(sif), 0o644); err != nil {
			return fmt.Errorf("write sif skeleton %s: %w", solutionType, err)
		}
		logger.Debug("Sif skeleton written.", "solution_type", solutionType)
	}
	return nil
}

// WriteSimulation implements backend.Backend: one executable phase
// script per simulation.
func (b *Backend) WriteSimulation(ctx context.Context, ec *backend.ExportContext, sim *manifest.Simulation) error {
	script, err := renderPhaseScript(sim, ec.Workload)
	if err != nil {
		return err
	}
	if err := fsutil.WriteExecutable(ec.SimScript(sim.Name), []byte(script)); err != nil {
		return fmt.Errorf("write phase script for %s: %w", sim.Name, err)
	}
	return nil
}
