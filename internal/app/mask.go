package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/host"
	"github.com/kqclabs/kqc/internal/ledger"
)

// scriptStem is the script's file name without extension; it names the
// output directory under tmp.
func scriptStem(script string) string {
	base := filepath.Base(script)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// runMask draws a mask layout: the host application executes the script
// in batch mode with output_path pointing into the tmp tree.
func (a *App) runMask(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	run, err := a.ledger.StartRun(ctx, ledger.KindMask, a.config.Script)
	if err != nil {
		return err
	}

	outDir := filepath.Join(a.settings.TmpPath, scriptStem(a.config.Script))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return a.finishRun(ctx, run.ID, fmt.Errorf("create output directory: %w", err))
	}

	k, err := host.Discover(a.settings)
	if err != nil {
		return a.finishRun(ctx, run.ID, err)
	}
	logger.Debug("Host executable resolved.", "exe", k.Exe)

	err = k.Run(ctx, a.config.Script, map[string]string{"output_path": outDir})
	if err == nil {
		logger.Info("✅ Mask written.", "dir", outDir)
	}
	return a.finishRun(ctx, run.ID, err)
}
