package labrag

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the release, overridden with -ldflags "-X ...labrag.Version=...".
var Version = "0.1.0"

// VersionString is the line printed by "labrag version": the release, the
// VCS revision stamped by the Go toolchain when there is one, and the Go
// version.
func VersionString() string {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	return formatVersion(Version, settings, runtime.Version())
}

func formatVersion(version string, settings []debug.BuildSetting, goVersion string) string {
	var revision string
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if revision == "" {
		return fmt.Sprintf("labrag %s (%s)", version, goVersion)
	}
	if dirty {
		revision += "-dirty"
	}
	return fmt.Sprintf("labrag %s (%s, %s)", version, revision, goVersion)
}
