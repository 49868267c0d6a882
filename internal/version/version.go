package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version (set by ldflags during build)
	Version = "dev"
	// Commit is the git commit hash (set by ldflags during build)
	Commit = "unknown"
	// Date is the build date (set by ldflags during build)
	Date = "unknown"
)

// Info contains complete version information
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// GetInfo returns complete version information
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a formatted version string
func (i Info) String() string {
	commitShort := i.Commit
	if len(commitShort) > 8 {
		commitShort = commitShort[:8]
	}
	return fmt.Sprintf("truematch %s (%s) built %s with %s for %s",
		i.Version, commitShort, i.Date, i.GoVersion, i.Platform)
}

// UserAgent is sent on every API request
func (i Info) UserAgent() string {
	return fmt.Sprintf("truematch-cli/%s (%s)", i.Version, i.Platform)
}
