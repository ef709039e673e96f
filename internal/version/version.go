// Package version carries build metadata injected via ldflags:
//
//	-X modelgate/internal/version.Version=v1.2.3
//	-X modelgate/internal/version.Commit=abc1234
//	-X modelgate/internal/version.Date=2026-08-25
package version

import "fmt"

var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// String returns a single-line human-readable version string.
func String() string {
	return fmt.Sprintf("modelgate %s (commit %s, built %s)", Version, Commit, Date)
}
