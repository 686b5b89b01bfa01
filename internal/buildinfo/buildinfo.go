// Package buildinfo holds the version metadata stamped into the t262export binary.
// cmd/t262export receives the linker values and forwards them with Set.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Info describes one build.
type Info struct {
	Version string
	Commit  string
	Date    string
	BuiltBy string
}

var (
	mu      sync.Mutex
	current = Info{Version: "dev", Commit: "none", Date: "unknown", BuiltBy: "unknown"}

	readBuildInfo = debug.ReadBuildInfo
)

// Set stores the linker-injected metadata.
func Set(version, commit, date, builtBy string) {
	mu.Lock()
	defer mu.Unlock()
	current = Info{Version: version, Commit: commit, Date: date, BuiltBy: builtBy}
}

// Version returns the build version.
func Version() string {
	mu.Lock()
	defer mu.Unlock()
	return current.Version
}

// Get returns the build metadata. A missing commit falls back to the VCS revision
// and a missing builder to the Go version recorded in the binary.
func Get() Info {
	mu.Lock()
	info := current
	mu.Unlock()

	if info.Commit != "none" && info.BuiltBy != "unknown" {
		return info
	}
	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Commit == "none" {
		for _, setting := range bi.Settings {
			if setting.Key == "vcs.revision" {
				info.Commit = setting.Value
			}
		}
	}
	if info.BuiltBy == "unknown" {
		info.BuiltBy = bi.GoVersion
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("t262export %s\n  commit:   %s\n  built:    %s\n  built by: %s", i.Version, i.Commit, i.Date, i.BuiltBy)
}
