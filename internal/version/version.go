// Package version identifies the kqc build. The same payload is printed
// by `kqc version` and written into every bundle's COMMIT_REFERENCE so a
// job directory can always be traced back to the tool that produced it.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Version is overridden at release time via -ldflags.
var Version = "dev"

// Info describes the running build.
type Info struct {
	Version   string
	Commit    string
	GoVersion string
}

// Current resolves build information, preferring VCS metadata stamped by
// the Go toolchain over the default placeholders.
func Current() Info {
	info := Info{
		Version:   Version,
		Commit:    "unknown",
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			info.Commit = s.Value
		}
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	return info
}

// String renders the one-line form used by `kqc version`.
func (i Info) String() string {
	return fmt.Sprintf("kqc %s (commit %s, %s)", i.Version, i.Commit, i.GoVersion)
}

// CommitReference renders the COMMIT_REFERENCE file body. hostCommit is
// the host-side library revision reported by the manifest; it may be
// empty. now is injected so exports are reproducible in tests.
func CommitReference(i Info, hostCommit string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "kqc_version: %s\n", i.Version)
	fmt.Fprintf(&b, "kqc_commit: %s\n", i.Commit)
	if hostCommit != "" {
		fmt.Fprintf(&b, "library_commit: %s\n", hostCommit)
	}
	fmt.Fprintf(&b, "exported_at: %s\n", now.UTC().Format(time.RFC3339))
	return b.String()
}
