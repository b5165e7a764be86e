package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Errorf("Get() has empty fields: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestFromBuildInfo(t *testing.T) {
	in := Info{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
	fromBuildInfo(&in, &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	want := Info{Version: "v1.4.0", Commit: "0123456789ab", BuildTime: "2026-01-02T03:04:05Z", Modified: true}
	if in != want {
		t.Errorf("fromBuildInfo() = %+v, want %+v", in, want)
	}
}

func TestFromBuildInfo_KeepsLinkerValues(t *testing.T) {
	in := Info{Version: "v2.0.0", Commit: "abc", BuildTime: "yesterday"}
	fromBuildInfo(&in, &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffff"}},
	})
	if in.Version != "v2.0.0" || in.Commit != "abc" || in.BuildTime != "yesterday" {
		t.Errorf("linker values overwritten: %+v", in)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.Contains(s, Get().Version) || !strings.Contains(s, runtime.Version()) {
		t.Errorf("String() = %q", s)
	}
}
