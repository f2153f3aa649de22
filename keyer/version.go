package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Build/version banner, mirroring the source project's
 *		own runtime/debug.BuildInfo pattern.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// Version is set at build time via:
//
//	go build -ldflags "-X 'github.com/iu3qez/IU3QEZ-Keyer-sub000/keyer.Version=X'"
var Version string

func getBuildSettingOrDefault(bi *debug.BuildInfo, key, defaultValue string) string {
	if bi == nil {
		return defaultValue
	}
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}
	return defaultValue
}

// VersionString renders a one-line build banner, or a multi-line one
// with full BuildInfo when verbose is set.
func VersionString(verbose bool) string {
	buildInfo, _ := debug.ReadBuildInfo()

	buildTime := getBuildSettingOrDefault(buildInfo, "vcs.time", "UNKNOWN")
	buildCommit := getBuildSettingOrDefault(buildInfo, "vcs.revision", "UNKNOWN")
	dirtyStr := getBuildSettingOrDefault(buildInfo, "vcs.modified", "INVALID")

	if dirty, err := strconv.ParseBool(dirtyStr); err == nil && dirty {
		buildCommit += "-DIRTY"
	}

	version := Version
	if version == "" {
		version = "!UNKNOWN!"
	}

	s := fmt.Sprintf("ironkeyerd - Version %s (revision %s, built at %s)", version, buildCommit, buildTime)
	if verbose {
		s += fmt.Sprintf("\n\nBuildInfo: %+v\n", buildInfo)
	}
	return s
}
