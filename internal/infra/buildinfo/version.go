// Package buildinfo reports the version the binary was built from.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/hostgate/internal/infra/buildinfo.Version=v1.2.0"
//
// Development builds fall back to the module and VCS data the Go toolchain
// embeds.
package buildinfo

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info contains build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

var (
	once sync.Once
	info Info
)

// Get returns the build information.
func Get() Info {
	once.Do(func() {
		info = Info{
			Version:   Version,
			Commit:    Commit,
			BuildTime: BuildTime,
			GoVersion: runtime.Version(),
		}
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		fromBuildInfo(&info, bi)
	})
	return info
}

func fromBuildInfo(in *Info, bi *debug.BuildInfo) {
	if in.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		in.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if in.Commit == "unknown" {
				in.Commit = s.Value
				if len(in.Commit) > 12 {
					in.Commit = in.Commit[:12]
				}
			}
		case "vcs.time":
			if in.BuildTime == "unknown" {
				in.BuildTime = s.Value
			}
		case "vcs.modified":
			in.Modified = s.Value == "true"
		}
	}
}

// String returns a one-line version string.
func String() string {
	i := Get()
	s := i.Version + " (" + i.Commit
	if i.Modified {
		s += "+dirty"
	}
	return s + ") built at " + i.BuildTime + " with " + i.GoVersion
}
