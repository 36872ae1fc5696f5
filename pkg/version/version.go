package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags "-X github.com/niels/rawhttpd/pkg/version.Version=..." at release time
var (
	Version   = "0.1.0"
	GitCommit = ""
	BuildDate = ""
)

const (
	// AppName is the binary and command name
	AppName = "rawhttpd"
	// Description is the one-line summary shown in help output
	Description = "A minimal HTTP/1.1 server for static files from a single document root"
)

// Build describes the running binary
type Build struct {
	Version  string
	Commit   string
	Date     string
	Modified bool
	Go       string
	Platform string
}

// Current returns the build description. Commit and date fall back to the
// VCS stamp the Go toolchain embeds when they were not set at link time.
func Current() Build {
	b := Build{
		Version:  Version,
		Commit:   GitCommit,
		Date:     BuildDate,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		b.fillFromSettings(info.Settings)
	}
	return b
}

func (b *Build) fillFromSettings(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "" {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
}

// String renders the build the way --version prints it
func (b Build) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s version %s", AppName, b.Version)
	if b.Commit != "" {
		commit := b.Commit
		if b.Modified {
			commit += " (modified)"
		}
		fmt.Fprintf(&sb, "\nGit commit: %s", commit)
	}
	if b.Date != "" {
		fmt.Fprintf(&sb, "\nBuild date: %s", b.Date)
	}
	fmt.Fprintf(&sb, "\nGo version: %s\nPlatform: %s", b.Go, b.Platform)
	return sb.String()
}

// GetVersionInfo returns the formatted version of the running binary
func GetVersionInfo() string {
	return Current().String()
}
