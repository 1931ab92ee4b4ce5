// Package version reports the client's build identity, adapted from the
// teacher's version.go: an ldflags-injected version string backed by
// runtime/debug build info for anything that wasn't (or couldn't be) baked
// in at link time.
package version

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// Version is set at build time via:
//
//	-ldflags "-X 'github.com/jrhodes/barrierscreen/internal/version.Version=X'"
var Version string

func buildSettingOrDefault(bi *debug.BuildInfo, key, defaultValue string) string {
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}

	return defaultValue
}

// Info is the resolved build identity: an explicit Version if the linker
// set one, otherwise the module's pseudo-version, plus VCS revision and a
// dirty-tree flag from the embedded build info.
type Info struct {
	Version string
	Commit  string
	Dirty   bool
}

// String renders Info the way the teacher's printVersion formats its
// version banner: "name version (commit[-DIRTY])".
func (i Info) String() string {
	commit := i.Commit
	if i.Dirty {
		commit += "-DIRTY"
	}

	return fmt.Sprintf("barrierscreen %s (%s)", i.Version, commit)
}

// Get resolves the current build's Info.
func Get() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{Version: orDefault(Version, "UNKNOWN"), Commit: "UNKNOWN"}
	}

	commit := buildSettingOrDefault(bi, "vcs.revision", "UNKNOWN")
	dirtyStr := buildSettingOrDefault(bi, "vcs.modified", "false")

	dirty, err := strconv.ParseBool(dirtyStr)
	if err != nil {
		dirty = false
	}

	v := Version
	if v == "" {
		v = bi.Main.Version
	}

	return Info{Version: orDefault(v, "UNKNOWN"), Commit: commit, Dirty: dirty}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}

	return s
}
