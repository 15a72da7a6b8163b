// Package buildinfo reports the version of the elk binary.
//
// Release builds stamp the variables through ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/elk/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/elk/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/elk/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Binaries built with `go install module@version` carry no ldflags; for those
// the module version and VCS stamp recorded by the Go toolchain are used.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

func init() { fillFromModule() }

// fillFromModule replaces unset values with what the toolchain embedded.
func fillFromModule() {
	info, ok := readBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "none":
			Commit = s.Value
		case s.Key == "vcs.time" && Date == "unknown":
			Date = s.Value
		}
	}
}

// String returns a multi-line description of the build.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\ngo: %s", Version, Commit, Date, runtime.Version())
}

// Template returns the cobra version template.
func Template() string {
	return "{{.Name}} " + String() + "\n"
}

// UserAgent is sent with release downloads.
func UserAgent() string {
	return "elk/" + Version
}
