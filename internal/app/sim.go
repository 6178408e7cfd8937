package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/cluster"
	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/export"
	"github.com/kqclabs/kqc/internal/host"
	"github.com/kqclabs/kqc/internal/ledger"
	"github.com/kqclabs/kqc/internal/manifest"
	"github.com/kqclabs/kqc/internal/workload"
)

// staged is everything an export produces and an execution consumes.
type staged struct {
	runID    string
	manifest *manifest.Manifest
	workload *workload.Workload
	profile  *cluster.Profile
	backend  backend.Backend
	bundle   backend.Bundle
	sims     []string
}

// manifestSource reports whether script already names an exported
// manifest, either the manifest.json itself or a directory holding one.
// That is the host-free path used on machines without the host
// application.
func manifestSource(script string) (string, bool) {
	if filepath.Base(script) == manifest.FileName {
		if _, err := os.Stat(script); err == nil {
			return script, true
		}
	}
	if info, err := os.Stat(script); err == nil && info.IsDir() {
		if _, err := os.Stat(filepath.Join(script, manifest.FileName)); err == nil {
			return script, true
		}
	}
	return "", false
}

// runSim exports a simulation bundle and finishes its ledger row.
func (a *App) runSim(ctx context.Context) (*staged, error) {
	st, err := a.stage(ctx, ledger.KindSim)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("✅ Bundle exported.", "dir", st.bundle.Dir)
	return st, a.finishRun(ctx, st.runID, nil)
}

// stage runs the export half shared by sim and simulate: resolve the
// workload and cluster profile, obtain a validated manifest (via the
// host application unless the script already is one), and build the
// bundle. The ledger row is left running; the caller closes it.
func (a *App) stage(ctx context.Context, kind string) (*staged, error) {
	logger := ctxlog.FromContext(ctx)

	run, err := a.ledger.StartRun(ctx, kind, a.config.Script)
	if err != nil {
		return nil, err
	}
	st := &staged{runID: run.ID}

	// Workload and cluster problems are cheap to detect; surface them
	// before spending minutes inside the host application.
	st.workload, err = workload.Load(ctx, a.config.WorkloadPath)
	if err != nil {
		return nil, a.finishRun(ctx, st.runID, err)
	}
	for _, warning := range st.workload.Warnings(runtime.NumCPU()) {
		logger.Warn(warning)
	}

	if st.workload.Remote() {
		st.profile, err = a.resolveProfile(st.workload.Cluster)
		if err != nil {
			return nil, a.finishRun(ctx, st.runID, err)
		}
	}

	st.manifest, err = a.obtainManifest(ctx)
	if err != nil {
		return nil, a.finishRun(ctx, st.runID, err)
	}
	if err := st.manifest.ValidateFiles(); err != nil {
		return nil, a.finishRun(ctx, st.runID, err)
	}

	st.backend, err = a.registry.Lookup(st.manifest.Tool)
	if err != nil {
		return nil, a.finishRun(ctx, st.runID, err)
	}

	res, err := export.New(a.settings.TmpPath).Export(ctx, export.Request{
		Manifest: st.manifest,
		Workload: st.workload,
		Backend:  st.backend,
		Profile:  st.profile,
		Force:    a.config.Force,
	})
	if err != nil {
		return nil, a.finishRun(ctx, st.runID, err)
	}
	st.bundle = res.Bundle
	st.sims = res.Simulations

	err = a.ledger.AttachBundle(ctx, st.runID,
		st.manifest.Name, st.manifest.Tool, st.bundle.Dir, st.workload.Cluster)
	if err != nil {
		logger.Warn("Ledger update failed.", "run", st.runID, "error", err)
	}
	return st, nil
}

// obtainManifest produces the validated manifest, invoking the host
// application unless the script already names an exported one.
func (a *App) obtainManifest(ctx context.Context) (*manifest.Manifest, error) {
	logger := ctxlog.FromContext(ctx)

	if src, ok := manifestSource(a.config.Script); ok {
		logger.Info("📄 Using the exported manifest directly.", "path", src)
		return manifest.Load(src)
	}

	stagingDir := filepath.Join(a.settings.TmpPath, scriptStem(a.config.Script))
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	k, err := host.Discover(a.settings)
	if err != nil {
		return nil, err
	}
	logger.Debug("Host executable resolved.", "exe", k.Exe)

	if err := k.Run(ctx, a.config.Script, map[string]string{"output_path": stagingDir}); err != nil {
		return nil, err
	}
	return manifest.Load(stagingDir)
}

// resolveProfile finds the named cluster profile in clusters.yaml.
func (a *App) resolveProfile(name string) (*cluster.Profile, error) {
	if a.settings.ClustersFile == "" {
		return nil, fmt.Errorf("workload targets cluster %q but no clusters.yaml was found; set clusters_file", name)
	}
	f, err := cluster.Load(a.settings.ClustersFile)
	if err != nil {
		return nil, err
	}
	p, err := f.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
