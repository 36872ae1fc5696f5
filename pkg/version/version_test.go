package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestBuildString(t *testing.T) {
	b := Build{Version: "1.2.3", Go: "go1.21.1", Platform: "linux/amd64"}
	want := "rawhttpd version 1.2.3\nGo version: go1.21.1\nPlatform: linux/amd64"
	if got := b.String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	b.Commit = "abc123"
	b.Modified = true
	b.Date = "2026-01-02T03:04:05Z"
	got := b.String()
	for _, exp := range []string{"Git commit: abc123 (modified)", "Build date: 2026-01-02T03:04:05Z"} {
		if !strings.Contains(got, exp) {
			t.Errorf("Expected %q in %q", exp, got)
		}
	}
}

func TestFillFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "deadbeef"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	var b Build
	b.fillFromSettings(settings)
	if b.Commit != "deadbeef" || b.Date != "2026-01-02T03:04:05Z" || !b.Modified {
		t.Errorf("Expected VCS settings to be used, got %+v", b)
	}

	// Link-time values win
	b = Build{Commit: "release", Date: "today"}
	b.fillFromSettings(settings)
	if b.Commit != "release" || b.Date != "today" {
		t.Errorf("Expected link-time values to be kept, got %+v", b)
	}
}

func TestGetVersionInfo(t *testing.T) {
	if !strings.HasPrefix(GetVersionInfo(), "rawhttpd version "+Version) {
		t.Errorf("Unexpected version info: %s", GetVersionInfo())
	}
}
