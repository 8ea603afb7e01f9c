// Package buildinfo provides version information for drillforge, grounded
// on runtime/version/version.go: build-time ldflags variables that fall back
// to debug.ReadBuildInfo() when unset.
package buildinfo

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/drillforge/core/logger"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
	vcsRevisionKey = "vcs.revision"
	vcsModifiedKey = "vcs.modified"
)

// Build-time variables, overridable with -ldflags.
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the current version string.
func GetVersion() string {
	if version != devVersion {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return devVersion
}

func getCommitFromBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == vcsRevisionKey && setting.Value != "" {
			n := shortCommitLen
			if len(setting.Value) < n {
				n = len(setting.Value)
			}
			return setting.Value[:n]
		}
	}
	return ""
}

func isDirtyFromBuildInfo() bool {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return false
	}
	for _, setting := range info.Settings {
		if setting.Key == vcsModifiedKey && setting.Value == "true" {
			return true
		}
	}
	return false
}

// GetVersionInfo returns a multi-line human-readable version string.
func GetVersionInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "drillforge %s", GetVersion())

	commit := gitCommit
	if commit == "" {
		commit = getCommitFromBuildInfo()
	}
	if commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", commit)
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}
	return b.String()
}

// GetBuildInfo returns version details as structured slog attributes.
func GetBuildInfo() []any {
	attrs := []any{"version", GetVersion()}

	commit := gitCommit
	if commit == "" {
		commit = getCommitFromBuildInfo()
	}
	if commit != "" {
		attrs = append(attrs, "commit", commit)
	}
	if gitCommit == "" && isDirtyFromBuildInfo() {
		attrs = append(attrs, "dirty", true)
	}
	if buildDate != "" {
		attrs = append(attrs, "built", buildDate)
	}
	return attrs
}

// LogStartup logs version information at debug level.
func LogStartup() {
	if !logger.DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	logger.DefaultLogger.Debug("drillforge starting", GetBuildInfo()...)
}
