// Package version exposes build-time version information for the specforge binary.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set via -ldflags.
//
//nolint:gochecknoglobals // Populated by the linker at build time.
var (
	// Version is the semantic version of the build (e.g. "1.4.0").
	Version = "dev"

	// Commit is the git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"
)

// GetVersion returns the semantic version string.
func GetVersion() string {
	return Version
}

// GetFullVersion returns a human-readable version string including commit,
// build date, and the Go runtime version.
func GetFullVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", Version, Commit, Date, runtime.Version())
}
