// Package version records the build metadata stamped at link time.
package version

import "runtime/debug"

// Set via -ldflags on release builds.
var (
	Version = "dev"
	Commit  = ""
)

// String returns a human-readable version, falling back to the module
// version embedded by `go install` when no ldflags were set.
func String() string {
	v := Version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	if Commit != "" {
		v += " (" + Commit + ")"
	}
	return v
}
