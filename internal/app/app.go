package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/kqclabs/kqc/internal/ledger"
	"github.com/kqclabs/kqc/internal/registry"
	"github.com/kqclabs/kqc/internal/settings"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	settings *settings.Settings
	registry *registry.Registry
	ledger   *ledger.Ledger
}

// New is the constructor for the main application. It returns a fully
// initialized App with its own isolated logger. Startup wiring failures
// (unreadable settings, ledger migration errors) panic; the entrypoint
// recovers them into a clean exit message.
func New(outW io.Writer, cfg *Config) *App {
	level := cfg.LogLevel
	// -q keeps warnings and errors but drops the default chatter. An
	// explicit --log-level=debug still wins for troubleshooting.
	if cfg.Quiet && level == "info" {
		level = "warn"
	}
	logger := newLogger(level, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, config: cfg}
	if cfg.Op == OpVersion {
		// Build info needs no settings, backends, or ledger.
		return a
	}

	s, err := settings.Load()
	if err != nil {
		panic(fmt.Errorf("failed to load settings: %w", err))
	}
	if err := s.EnsureDirs(); err != nil {
		panic(fmt.Errorf("failed to prepare the output tree: %w", err))
	}
	logger.Debug("Settings resolved.", "root", s.RootPath, "tmp", s.TmpPath)

	reg := registry.New()
	for _, b := range coreBackends {
		reg.Register(b)
	}
	logger.Debug("Export backends registered.", "names", reg.Names())

	led, err := ledger.Open(s.LedgerPath)
	if err != nil {
		panic(fmt.Errorf("failed to open the run ledger: %w", err))
	}
	logger.Debug("Run ledger opened.", "path", s.LedgerPath)

	a.settings = s
	a.registry = reg
	a.ledger = led
	return a
}

// Close releases the resources New acquired.
func (a *App) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}

// Registry returns the application's backend registry. This is primarily
// for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
