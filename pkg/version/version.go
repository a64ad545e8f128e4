// Package version reports the build of the repo-ingest binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X .../pkg/version.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Build describes the running binary
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Current returns the linked-in build values. A binary built without
// ldflags falls back to the VCS stamp the Go toolchain embeds.
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if b.Commit != "" && b.BuildTime != "" {
		return b
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = s.Value
				}
			case "vcs.time":
				if b.BuildTime == "" {
					b.BuildTime = s.Value
				}
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}
	return b
}

// String renders b on one line
func (b Build) String() string {
	commit := b.Commit
	if commit == "" {
		commit = "unknown"
	} else if len(commit) > 12 {
		commit = commit[:12]
	}
	if b.Modified {
		commit += "-dirty"
	}
	s := fmt.Sprintf("repo-ingest %s (%s", b.Version, commit)
	if b.BuildTime != "" {
		s += ", " + b.BuildTime
	}
	return s + ", " + b.GoVersion + " " + b.Platform + ")"
}

// Full is Current().String()
func Full() string {
	return Current().String()
}
