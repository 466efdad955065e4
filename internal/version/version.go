package version

import "fmt"

// Version is set at build time:
// go build -ldflags "-X github.com/sugarshin/frrr-boilerplate/internal/version.Version=v0.3.0".
var Version = "dev"

// Build metadata, also injected through ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by `assetpipe version`.
func String() string {
	return fmt.Sprintf("assetpipe %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
