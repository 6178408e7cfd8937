// Package export builds simulation bundles: self-contained directories
// holding geometry, solver inputs and scripts, derived from a staged
// manifest. A bundle never references the staging directory or the
// machine that produced it, so it can be copied to a cluster untouched.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/cluster"
	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/fsutil"
	"github.com/kqclabs/kqc/internal/manifest"
	"github.com/kqclabs/kqc/internal/preview"
	"github.com/kqclabs/kqc/internal/slurm"
	"github.com/kqclabs/kqc/internal/version"
	"github.com/kqclabs/kqc/internal/workload"
)

// Exporter writes bundles under a tmp root.
type Exporter struct {
	tmpPath string
	now     func() time.Time
}

// New creates an Exporter rooted at tmpPath.
func New(tmpPath string) *Exporter {
	return &Exporter{tmpPath: tmpPath, now: time.Now}
}

// Request is one bundle to build.
type Request struct {
	Manifest *manifest.Manifest
	Workload *workload.Workload
	Backend  backend.Backend

	// Profile is required when the workload targets a cluster.
	Profile *cluster.Profile

	// Force replaces an existing bundle directory instead of refusing it.
	Force bool
}

// Result describes the written bundle.
type Result struct {
	Bundle backend.Bundle

	// Simulations holds the simulation names in run order.
	Simulations []string
}

// Export builds the bundle directory <tmp>/<name>_output. An existing
// non-empty directory is refused rather than overwritten unless the
// request forces replacement.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	m := req.Manifest
	w := req.Workload

	if w.Remote() && len(req.Backend.Phases()) == 0 {
		return nil, fmt.Errorf("tool %s bundles cannot run on a cluster", req.Backend.Name())
	}
	if w.Remote() && req.Profile == nil {
		return nil, fmt.Errorf("workload targets cluster %q but no profile was resolved", w.Cluster)
	}

	bundle := backend.Bundle{Dir: filepath.Join(e.tmpPath, m.Name+"_output")}
	empty, err := fsutil.DirIsEmpty(bundle.Dir)
	if err != nil {
		return nil, fmt.Errorf("check bundle directory: %w", err)
	}
	if !empty {
		if !req.Force {
			return nil, fmt.Errorf("bundle directory %s already exists, remove it or export with --force", bundle.Dir)
		}
		logger.Warn("Replacing existing bundle directory.", "dir", bundle.Dir)
		if err := os.RemoveAll(bundle.Dir); err != nil {
			return nil, fmt.Errorf("replace bundle directory: %w", err)
		}
	}
	if err := os.MkdirAll(bundle.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle directory: %w", err)
	}
	logger.Info("📦 Exporting bundle", "dir", bundle.Dir, "tool", req.Backend.Name(), "simulations", len(m.Simulations))

	ref := version.CommitReference(version.Current(), m.Commit, e.now())
	if err := os.WriteFile(bundle.CommitReference(), []byte(ref), 0o644); err != nil {
		return nil, fmt.Errorf("write commit reference: %w", err)
	}

	if err := e.stageInputs(ctx, bundle, m); err != nil {
		return nil, err
	}

	ec := &backend.ExportContext{Bundle: bundle, Manifest: m, Workload: w}
	if err := req.Backend.WriteAssets(ctx, ec); err != nil {
		return nil, fmt.Errorf("write %s assets: %w", req.Backend.Name(), err)
	}

	sims := simulationsInRunOrder(m)
	names := make([]string, 0, len(sims))
	for _, sim := range sims {
		if err := writeSidecar(bundle, m, w, sim); err != nil {
			return nil, err
		}
		if err := req.Backend.WriteSimulation(ctx, ec, sim); err != nil {
			return nil, fmt.Errorf("write simulation %s: %w", sim.Name, err)
		}
		if w.PreviewPNG {
			if err := preview.WritePNG(bundle.SimPNG(sim.Name), sim); err != nil {
				logger.Warn("Preview rendering failed, continuing without it.", "simulation", sim.Name, "error", err)
			}
		}
		names = append(names, sim.Name)
		logger.Debug("Simulation exported.", "name", sim.Name)
	}

	if len(req.Backend.Phases()) > 0 {
		if err := e.writeRunScripts(bundle, req, names); err != nil {
			return nil, err
		}
	}

	logger.Info("✅ Bundle exported", "dir", bundle.Dir)
	return &Result{Bundle: bundle, Simulations: names}, nil
}

// stageInputs copies the staged artifacts into the bundle. The copies
// are independent, so they run concurrently.
func (e *Exporter) stageInputs(ctx context.Context, bundle backend.Bundle, m *manifest.Manifest) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		if m.Dir != "" {
			return fsutil.CopyFile(filepath.Join(m.Dir, manifest.FileName), bundle.ManifestPath())
		}
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal manifest: %w", err)
		}
		return os.WriteFile(bundle.ManifestPath(), append(data, '\n'), 0o644)
	})

	if m.Layout != "" {
		g.Go(func() error {
			return fsutil.CopyFile(m.LayoutPath(), filepath.Join(bundle.Dir, filepath.Base(m.Layout)))
		})
	}

	for i := range m.Simulations {
		sim := &m.Simulations[i]
		g.Go(func() error {
			return fsutil.CopyFile(m.GDSPath(sim), bundle.SimGDS(sim.Name))
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("stage bundle inputs: %w", err)
	}
	return nil
}

// writeRunScripts writes simulation.sh and, for cluster bundles, the
// batch scripts it submits.
func (e *Exporter) writeRunScripts(bundle backend.Bundle, req Request, names []string) error {
	w := req.Workload

	if !w.Remote() {
		script, err := renderLocalScript(names, w)
		if err != nil {
			return err
		}
		return fsutil.WriteExecutable(bundle.MainScriptPath(), []byte(script))
	}

	for _, phase := range req.Backend.Phases() {
		script := slurm.BatchScript(slurm.ScriptParams{
			JobName:     req.Manifest.Name,
			Phase:       phase,
			Simulations: names,
			Profile:     *req.Profile,
			Workload:    w,
		})
		if err := fsutil.WriteExecutable(bundle.BatchScriptPath(phase), []byte(script)); err != nil {
			return fmt.Errorf("write batch script for %s: %w", phase, err)
		}
	}

	script, err := renderClusterScript(req.Backend.Phases())
	if err != nil {
		return err
	}
	return fsutil.WriteExecutable(bundle.MainScriptPath(), []byte(script))
}

// simulationsInRunOrder sorts by index so bundles list simulations the
// way the sweep generated them.
func simulationsInRunOrder(m *manifest.Manifest) []*manifest.Simulation {
	sims := make([]*manifest.Simulation, len(m.Simulations))
	for i := range m.Simulations {
		sims[i] = &m.Simulations[i]
	}
	sort.Slice(sims, func(i, j int) bool { return sims[i].Index < sims[j].Index })
	return sims
}
