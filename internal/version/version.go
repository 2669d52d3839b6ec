// Package version holds archscan build information. The variables are set
// with -ldflags "-X archscan/internal/version.Version=..." at release time.
package version

import (
	"runtime/debug"
	"sync"
)

var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var vcsOnce sync.Once

// fillFromBuildInfo uses the VCS stamp of `go build` when ldflags were not
// given.
func fillFromBuildInfo(read func() (*debug.BuildInfo, bool)) {
	info, ok := read()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" {
				Commit = s.Value
			}
		case "vcs.time":
			if BuildDate == "unknown" {
				BuildDate = s.Value
			}
		}
	}
}

// Info returns "<version>" or "<version> (<short commit>)"
func Info() string {
	vcsOnce.Do(func() { fillFromBuildInfo(debug.ReadBuildInfo) })
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns the multi-line form printed by `archscan version`
func Full() string {
	vcsOnce.Do(func() { fillFromBuildInfo(debug.ReadBuildInfo) })
	return "archscan version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
