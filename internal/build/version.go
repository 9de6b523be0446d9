package build

import "fmt"

// Set with -ldflags "-X github.com/rohmanhakim/curlgrab/internal/build.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// FullVersion returns "Version+Commit", or Version alone when no commit was injected.
func FullVersion() string {
	if Commit == "" || Commit == "none" {
		return Version
	}
	return Version + "+" + Commit
}

// Banner is the line printed by the version command.
func Banner() string {
	return fmt.Sprintf("curlgrab %s (built %s)", FullVersion(), BuildTime)
}
