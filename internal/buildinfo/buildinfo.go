// Package buildinfo carries version metadata set at link time with
// -ldflags "-X mcp-fleet/internal/buildinfo.Version=...".
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func init() {
	if Version != "dev" {
		return
	}
	// go install stamps module and VCS data that ldflags would otherwise set.
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "none" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = s.Value
			}
		}
	}
}

func String() string {
	return fmt.Sprintf("mcp-fleet %s (commit=%s, date=%s)", Version, Commit, Date)
}
