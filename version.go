package itemapprove

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release of the orchestrator; release builds override it
	// with -ldflags "-X .../ItemApprove-sub001.Version=...".
	Version = "0.1.0"
	// GitCommit is the git SHA set by -ldflags.
	GitCommit = "unknown"
	// BuildDate is set by -ldflags.
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// GetVersion returns a human-readable version string for the CLI and logs.
func GetVersion() string {
	return fmt.Sprintf("itemapprove v%s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, GoVersion)
}

// GetVersionInfo returns version metadata as labels, as exported by the
// itemapprove_build_info gauge.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}
