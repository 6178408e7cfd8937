// Package ansys targets Ansys Electronics Desktop. Its bundles are
// export-only: kqc writes the geometry, sidecars and an import script,
// and the bundle is carried to a Windows host where the vendor tool
// runs it.
package ansys

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/manifest"
)

//go:embed assets/*.py
var assets embed.FS

// ImportBatchFile launches the import script on the target host.
const ImportBatchFile = "import_simulations.bat"

// Backend implements backend.Backend for the ansys tool.
type Backend struct{}

// New creates the ansys backend.
func New() *Backend {
	return &Backend{}
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	return "ansys"
}

// Phases implements backend.Backend. No phases: the bundle cannot run
// where kqc runs.
func (b *Backend) Phases() []string {
	return nil
}

// WriteAssets implements backend.Backend: the embedded import script
// plus a batch file that runs it on the target host.
func (b *Backend) WriteAssets(ctx context.Context, ec *backend.ExportContext) error {
	entries, err := assets.ReadDir("assets")
	if err != nil {
		return fmt.Errorf("read embedded assets: %w", err)
	}
	if err := os.MkdirAll(ec.ScriptsPath(), 0o755); err != nil {
		return fmt.Errorf("create scripts directory: %w", err)
	}
	for _, entry := range entries {
		data, err := assets.ReadFile(path.Join("assets", entry.Name()))
		if err != nil {
			return fmt.Errorf("read embedded asset %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(ec.ScriptsPath(), entry.Name()), data, 0o644); err != nil {
			return fmt.Errorf("write asset %s: %w", entry.Name(), err)
		}
	}

	bat := importBatch(ec.Manifest)
	if err := os.WriteFile(filepath.Join(ec.Dir, ImportBatchFile), []byte(bat), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ImportBatchFile, err)
	}
	ctxlog.FromContext(ctx).Debug("Import assets written.", "simulations", len(ec.Manifest.Simulations))
	return nil
}

// WriteSimulation implements backend.Backend. Per-simulation inputs are
// fully covered by the geometry and the json sidecar the export layer
// writes, so there is nothing tool-specific to add.
func (b *Backend) WriteSimulation(context.Context, *backend.ExportContext, *manifest.Simulation) error {
	return nil
}

// importBatch renders the Windows launcher. Batch files want CRLF line
// endings.
func importBatch(m *manifest.Manifest) string {
	lines := []string{
		"@echo off",
		"rem Imports the " + m.Name + " bundle into Ansys Electronics Desktop.",
		"rem Set ANSYSEM_EXE to the ansysedt.exe of your installation first.",
		"cd /d \"%~dp0\"",
		"if \"%ANSYSEM_EXE%\"==\"\" set ANSYSEM_EXE=ansysedt.exe",
		"\"%ANSYSEM_EXE%\" -ng -RunScriptAndExit \"%~dp0scripts\\import_and_simulate.py\"",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}
