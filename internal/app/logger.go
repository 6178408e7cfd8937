package app

import (
	"io"
	"log/slog"
)

// newLogger builds the logger one kqc invocation writes through. Text is
// the default for interactive use; --log-format=json switches to machine
// readable output for harness consumption. The logger is instance scoped
// rather than installed as the slog default, so tests can capture output
// per App.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
