package version

import (
	"fmt"
	"runtime"
)

// Build-time variables injected by ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// BuildInfo contains build information for the version endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	GoArch    string `json:"go_arch"`
	GoOS      string `json:"go_os"`
}

func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		GoArch:    runtime.GOARCH,
		GoOS:      runtime.GOOS,
	}
}

func GetVersionString() string {
	return Version
}

func GetFullVersionString() string {
	return fmt.Sprintf("Caseflow %s\nBuilt: %s\nGo: %s", Version, BuildTime, runtime.Version())
}
