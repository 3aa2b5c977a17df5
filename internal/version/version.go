// Package version carries build identification stamped in via ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the bsma binary.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String renders the build information the version command prints.
func String() string {
	return fmt.Sprintf("bsma %s (commit %s, built %s)", Version, Commit, BuildDate)
}
