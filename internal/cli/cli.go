package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kqclabs/kqc/internal/app"
	"github.com/kqclabs/kqc/internal/suggest"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// commands lists the subcommands in help order.
var commands = []string{app.OpMask, app.OpSim, app.OpSimulate, app.OpRuns, app.OpVersion}

const rootUsage = `kqc - draw mask layouts, export simulation bundles, and run them.

Usage:
  kqc <command> [arguments] [options]

Commands:
  mask <script>      Draw a mask layout through the host application.
  sim <script>       Export a simulation bundle from a script or manifest.
  simulate <script>  Export a bundle, then mesh and solve it.
  runs               List recent runs.
  version            Print build information.

Run 'kqc <command> -h' for the options of one command.
`

// Parse processes command-line arguments. It returns a populated
// app.Config, a boolean indicating the program should exit cleanly
// (help requested or no command given), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	if len(args) == 0 {
		fmt.Fprint(output, rootUsage)
		return nil, true, nil
	}

	op := args[0]
	switch op {
	case "help", "-h", "--help":
		fmt.Fprint(output, rootUsage)
		return nil, true, nil
	case app.OpMask, app.OpSim, app.OpSimulate, app.OpRuns, app.OpVersion:
	default:
		msg := fmt.Sprintf("unknown command %q", op)
		if hint, ok := suggest.Closest(op, commands); ok {
			msg = fmt.Sprintf("%s, did you mean %q?", msg, hint)
		}
		return nil, false, &ExitError{Code: 2, Message: msg}
	}

	cfg := app.Config{Op: op}
	flagSet := flag.NewFlagSet("kqc "+op, flag.ContinueOnError)
	flagSet.SetOutput(output)

	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	switch op {
	case app.OpSim, app.OpSimulate:
		flagSet.StringVar(&cfg.WorkloadPath, "workload", "", "Path to an .hcl workload file or a directory of them.")
		flagSet.BoolVar(&cfg.Force, "force", false, "Replace the bundle directory if it already exists.")
	}
	if op == app.OpSimulate {
		flagSet.BoolVar(&cfg.Quiet, "q", false, "Suppress the dashboard and per-phase info logs.")
		flagSet.IntVar(&cfg.HealthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	}
	if op == app.OpRuns {
		flagSet.IntVar(&cfg.Limit, "n", 10, "Number of runs to list.")
	}

	flagSet.Usage = func() {
		fmt.Fprintf(output, "Usage:\n  kqc %s%s\n\nOptions:\n", op, argsHint(op))
		flagSet.PrintDefaults()
	}

	if err := parseInterleaved(flagSet, args[1:], &cfg); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.", "command", op)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	cfg.LogFormat = logFormat
	cfg.LogLevel = logLevel

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parser finished successfully.", "op", config.Op)
	return config, false, nil
}

// parseInterleaved accepts flags on either side of the positional
// argument, so `kqc simulate chip.py -q` works as documented.
func parseInterleaved(fs *flag.FlagSet, args []string, cfg *app.Config) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	for fs.NArg() > 0 {
		positional := fs.Arg(0)
		if cfg.Script != "" || !takesScript(cfg.Op) {
			return fmt.Errorf("unexpected argument %q", positional)
		}
		cfg.Script = positional
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return err
		}
	}
	return nil
}

func takesScript(op string) bool {
	return op == app.OpMask || op == app.OpSim || op == app.OpSimulate
}

func argsHint(op string) string {
	if takesScript(op) {
		return " <script> [options]"
	}
	return " [options]"
}
