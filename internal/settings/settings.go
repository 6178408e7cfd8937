// Package settings resolves the tool's paths and host-application
// configuration from, in ascending precedence: built-in defaults, the
// config file, and the environment (KQC_ROOT_PATH, KQC_TMP_PATH,
// KLAYOUT_HOME, KQC_KLAYOUT_EXE).
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Settings holds the resolved runtime configuration.
type Settings struct {
	// RootPath is the project root the user works in. Masks and
	// simulation bundles are placed under its tmp directory.
	RootPath string `mapstructure:"root_path"`

	// TmpPath receives all generated output. Defaults to <root>/tmp.
	TmpPath string `mapstructure:"tmp_path"`

	// KLayoutHome is the host application's per-user configuration
	// directory, exported to host invocations as KLAYOUT_HOME.
	KLayoutHome string `mapstructure:"klayout_home"`

	// KLayoutExe overrides host executable discovery. Empty means
	// search PATH and the conventional install locations.
	KLayoutExe string `mapstructure:"klayout_exe"`

	// ClustersFile points at the cluster profile list. Defaults to
	// <root>/clusters.yaml, then ~/.config/kqc/clusters.yaml, whichever
	// exists first.
	ClustersFile string `mapstructure:"clusters_file"`

	// LedgerPath is the sqlite run-history database. Defaults to
	// <tmp>/kqc.db.
	LedgerPath string `mapstructure:"ledger_path"`
}

// Load reads configuration from file and env. Env overrides use the KQC_
// prefix, except KLAYOUT_HOME which is bound verbatim because the host
// application itself reads that exact name.
func Load() (*Settings, error) {
	v := viper.New()

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	v.SetDefault("root_path", cwd)
	v.SetDefault("tmp_path", "")
	v.SetDefault("klayout_home", defaultKLayoutHome())
	v.SetDefault("klayout_exe", "")
	v.SetDefault("clusters_file", "")
	v.SetDefault("ledger_path", "")

	v.SetConfigType("yaml")
	if cfgPath := os.Getenv("KQC_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(home(), ".config", "kqc"))
		v.AddConfigPath(cwd)
		v.SetConfigName("kqc")
	}

	v.SetEnvPrefix("KQC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// KLAYOUT_HOME is the host application's own variable, no KQC_ prefix.
	_ = v.BindEnv("klayout_home", "KLAYOUT_HOME", "KQC_KLAYOUT_HOME")

	// The config file is optional; missing is not an error.
	_ = v.ReadInConfig()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	s.applyDerivedDefaults()
	return &s, nil
}

// applyDerivedDefaults fills fields whose defaults depend on other fields.
func (s *Settings) applyDerivedDefaults() {
	if s.RootPath == "" {
		s.RootPath, _ = os.Getwd()
	}
	if s.TmpPath == "" {
		s.TmpPath = filepath.Join(s.RootPath, "tmp")
	}
	if s.ClustersFile == "" {
		// The project root wins over the per-user settings directory.
		for _, candidate := range []string{
			filepath.Join(s.RootPath, "clusters.yaml"),
			filepath.Join(home(), ".config", "kqc", "clusters.yaml"),
		} {
			if _, err := os.Stat(candidate); err == nil {
				s.ClustersFile = candidate
				break
			}
		}
	}
	if s.LedgerPath == "" {
		s.LedgerPath = filepath.Join(s.TmpPath, "kqc.db")
	}
}

// EnsureDirs creates the output directory tree the tool relies on.
// Safe to call repeatedly.
func (s *Settings) EnsureDirs() error {
	for _, dir := range []string{s.TmpPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// HostEnv returns the environment entries exported to host-application
// and solver child processes.
func (s *Settings) HostEnv() []string {
	return []string{
		"KQC_ROOT_PATH=" + s.RootPath,
		"KQC_TMP_PATH=" + s.TmpPath,
		"KLAYOUT_HOME=" + s.KLayoutHome,
	}
}

func defaultKLayoutHome() string {
	return filepath.Join(home(), ".klayout")
}

func home() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return h
}
