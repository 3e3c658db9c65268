package version

import "fmt"

// Set at build time with -ldflags "-X github.com/connorhough/modelctl/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String returns the version shown by modelctl --version.
func String() string {
	return fmt.Sprintf("%s (commit: %s, date: %s)", Version, GitCommit, BuildDate)
}

// UserAgent is sent by the HTTP clients modelctl builds itself.
func UserAgent() string {
	return "modelctl/" + Version
}
