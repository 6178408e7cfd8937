// Package host locates and drives the layout application that builds
// masks and writes simulation export staging directories. The host
// always runs in batch mode; kqc never opens its GUI.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/kqclabs/kqc/internal/ctxlog"
	"github.com/kqclabs/kqc/internal/settings"
	"github.com/kqclabs/kqc/internal/tail"
)

// KLayout invokes the klayout executable in batch mode.
type KLayout struct {
	// Exe is the resolved executable path.
	Exe string

	// Env is appended to the process environment of every invocation,
	// carrying KQC_ROOT_PATH, KQC_TMP_PATH and KLAYOUT_HOME.
	Env []string

	// Stdout and Stderr receive the host's output. Defaults to the
	// process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Discover locates the host executable. An explicit override from the
// settings wins, then PATH, then the conventional install locations.
func Discover(s *settings.Settings) (*KLayout, error) {
	exe, err := findExecutable(s)
	if err != nil {
		return nil, err
	}
	return &KLayout{Exe: exe, Env: s.HostEnv()}, nil
}

// Run executes one host script in batch mode. Each directive becomes a
// `-rd name=value` run directive the script reads back.
func (k *KLayout) Run(ctx context.Context, script string, directives map[string]string) error {
	logger := ctxlog.FromContext(ctx)

	args := []string{"-e", "-z", "-nc", "-r", script}
	keys := make([]string, 0, len(directives))
	for key := range directives {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-rd", key+"="+directives[key])
	}

	logger.Info("▶️ Invoking host application", "script", filepath.Base(script))
	logger.Debug("Host command line.", "exe", k.Exe, "args", args)

	stdout := k.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := k.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	var stderrTail tail.Buffer

	cmd := exec.CommandContext(ctx, k.Exe, args...)
	cmd.Env = append(os.Environ(), k.Env...)
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &stderrTail)
	cmd.WaitDelay = 10 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := stderrTail.String(); msg != "" {
			return fmt.Errorf("host application: %w: %s", err, msg)
		}
		return fmt.Errorf("host application: %w", err)
	}

	logger.Info("✅ Host script finished", "script", filepath.Base(script))
	return nil
}

func findExecutable(s *settings.Settings) (string, error) {
	if s.KLayoutExe != "" {
		if _, err := os.Stat(s.KLayoutExe); err != nil {
			return "", fmt.Errorf("configured klayout executable: %w", err)
		}
		return s.KLayoutExe, nil
	}
	if path, err := exec.LookPath("klayout"); err == nil {
		return path, nil
	}
	for _, candidate := range conventionalPaths() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", errors.New("klayout executable not found; install KLayout or set klayout_exe (KQC_KLAYOUT_EXE)")
}

// conventionalPaths lists the per-OS install locations probed after
// PATH comes up empty.
func conventionalPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/klayout.app/Contents/MacOS/klayout",
			"/Applications/KLayout/klayout.app/Contents/MacOS/klayout",
		}
	case "windows":
		return []string{
			filepath.Join(os.Getenv("APPDATA"), "KLayout", "klayout_app.exe"),
			`C:\Program Files\KLayout\klayout_app.exe`,
		}
	default:
		return []string{
			"/usr/bin/klayout",
			"/usr/local/bin/klayout",
			"/opt/klayout/bin/klayout",
		}
	}
}
