package app

import "fmt"

// Operations the CLI dispatches to.
const (
	OpMask     = "mask"
	OpSim      = "sim"
	OpSimulate = "simulate"
	OpRuns     = "runs"
	OpVersion  = "version"
)

// Config holds everything one kqc invocation needs to run.
type Config struct {
	Op     string // mask, sim, simulate, runs, version
	Script string // layout script, staging dir, or manifest path

	WorkloadPath    string // .hcl file or directory; empty means defaults
	Force           bool   // replace an existing bundle directory
	Quiet           bool   // no dashboard, warnings and errors only
	Limit           int    // runs: how many rows to list
	HealthcheckPort int    // 0 disables the status server

	LogFormat string
	LogLevel  string
}

// NewConfig validates cross-field requirements and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Op {
	case OpMask, OpSim, OpSimulate:
		if cfg.Script == "" {
			return nil, fmt.Errorf("%s: missing <script> argument", cfg.Op)
		}
	case OpRuns, OpVersion:
	default:
		return nil, fmt.Errorf("unknown operation %q", cfg.Op)
	}

	if cfg.Limit < 0 {
		return nil, fmt.Errorf("runs: -n must be positive, got %d", cfg.Limit)
	}
	if cfg.Limit == 0 {
		cfg.Limit = 10
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck-port %d is out of range", cfg.HealthcheckPort)
	}

	return &cfg, nil
}
