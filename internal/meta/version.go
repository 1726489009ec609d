package meta

import (
	"fmt"
	"runtime"
)

// Info describes how an imubridge binary was built. The values are set by
// the Go linker, e.g.
//
//	go build -ldflags "-X github.com/luma/imubridge/internal/meta.Version=v0.3.0"
type Info struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	Branch    string `json:"branch"`
	BuildTime string `json:"buildTime"`
	Platform  string `json:"platform"`
	GoVersion string `json:"goVersion"`
}

// These will be filled in using the linker -X flag
var (
	Version string

	// Build is the Git sha from when we are building
	Build string

	Branch string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

// GetInfo returns the build information, with "dev" standing in for an
// unset version.
func GetInfo() Info {
	version := Version
	if version == "" {
		version = "dev"
	}

	return Info{
		Version:   version,
		Build:     Build,
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		Platform:  platform,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("imubridge %s (%s, %s)", i.Version, i.Build, i.Platform)
}
