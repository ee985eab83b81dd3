// Package version reports the build's version information.
package version

import (
	"fmt"
	"runtime/debug"
)

// These variables are populated by the Go linker (LDFLAGS) at build time.
var (
	Version    = "dev"     // Default value if not built with LDFLAGS
	CommitHash = "unknown" // Default value
	BuildDate  = "unknown" // Default value
)

// Info is the resolved version information.
type Info struct {
	Version    string
	CommitHash string
	BuildDate  string
}

// Get returns the linker-provided values, falling back to the module
// version and VCS stamp recorded by `go install`.
func Get() Info {
	info := Info{Version: Version, CommitHash: CommitHash, BuildDate: BuildDate}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.CommitHash == "unknown" {
				info.CommitHash = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

// String formats the information the way the version command prints it.
func (i Info) String() string {
	return fmt.Sprintf("prettytest %s\n  commit: %s\n  built:  %s\n", i.Version, i.CommitHash, i.BuildDate)
}
