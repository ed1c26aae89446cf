// Package version reports the build version of msgsrv.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/msgsrv/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/msgsrv/internal/version.Commit=abc123"
//
// Otherwise they are read from the module and VCS build info.
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	GoVersion string
	Platform  string
}

// Get returns the version info of the running binary.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

// fillFromBuildInfo fills unset fields from build info. "go install
// module@version" records the module version; local builds record VCS
// settings instead.
func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	if info.Commit != "" {
		return
	}

	var revision string
	var modified bool
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return
	}

	if len(revision) > 7 {
		revision = revision[:7]
	}
	if modified {
		revision += "-dirty"
	}
	info.Commit = revision
}

// String returns the version line printed by "msgsrv version".
func (i Info) String() string {
	return fmt.Sprintf("msgsrv %s (commit: %s, %s, %s)", i.Version, i.Commit, i.GoVersion, i.Platform)
}

// Full returns the version string including commit
func Full() string {
	info := Get()
	return fmt.Sprintf("%s (commit: %s)", info.Version, info.Commit)
}
