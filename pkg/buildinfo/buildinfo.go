// Package buildinfo carries the version stamped in at link time with
// -ldflags "-X github.com/gizmo-platform/copter/pkg/buildinfo.Version=...".
package buildinfo

import "fmt"

var (
	// Version is the release number for this build
	Version = "dev"

	// Commit is the specific git hash
	Commit = "UNKNOWN"

	// BuildDate is the build timestamp
	BuildDate = "UNKNOWN"
)

// Summary returns the version on one line, for logs.
func Summary() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, Commit, BuildDate)
}
