// Package version carries build metadata injected with -ldflags, e.g.
//
//	-X github.com/banshee-data/cloudblocks/internal/version.Version=v0.3.0
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	sha := GitSHA
	if len(sha) > 12 {
		sha = sha[:12]
	}
	return fmt.Sprintf("cloudblocks %s (%s, built %s, %s)", Version, sha, BuildTime, runtime.Version())
}
