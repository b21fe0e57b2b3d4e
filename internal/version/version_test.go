package version

import (
	"runtime/debug"
	"testing"
)

func TestResolveUsesBuildInfo(t *testing.T) {
	prev := readBuildInfo
	defer func() { readBuildInfo = prev }()
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			GoVersion: "go1.26.0",
			Main:      debug.Module{Version: "v0.3.0"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-10-01T00:00:00Z"},
			},
		}, true
	}

	info := Resolve()
	if info.Version != "v0.3.0" || info.GoVersion != "go1.26.0" || info.BuildTime != "2026-10-01T00:00:00Z" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if got := String(); got != "v0.3.0 (0123456789ab)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestResolvePrefersLdflags(t *testing.T) {
	prevInfo, prevVersion, prevCommit := readBuildInfo, Version, Commit
	defer func() { readBuildInfo, Version, Commit = prevInfo, prevVersion, prevCommit }()
	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }
	Version, Commit = "1.0.0", "abc"

	if got := String(); got != "1.0.0 (abc)" {
		t.Fatalf("String() = %q", got)
	}
}
