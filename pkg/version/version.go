// Package version carries build metadata for vland and vlanctl.
package version

import (
	"fmt"
	"runtime"
)

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/vland/pkg/version.Version=v0.3.0 \
//	  -X github.com/newtron-network/vland/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/vland/pkg/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a formatted version string for display.
func Info() string {
	return Version + " (" + GitCommit + ") built " + BuildDate
}

// Full returns Info prefixed with the program name and followed by the
// Go runtime, as printed by "<program> version".
func Full(program string) string {
	return fmt.Sprintf("%s %s %s/%s %s", program, Info(), runtime.GOOS, runtime.GOARCH, runtime.Version())
}
