package version

import "fmt"

// Tagline is used in help text
const Tagline = "Isolated databases, browsers and applications for Go integration tests"

// Build information injected at build time via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = "unknown"
)

// Info returns formatted version information
func Info() string {
	return fmt.Sprintf("testbed %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}
