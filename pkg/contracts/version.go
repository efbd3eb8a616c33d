package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the release of the pipeline and its API.
	Version = "0.3.0"

	// DataFormatVersion names the exported CSV layout. It moves only when
	// a column is added, removed, or renamed.
	DataFormatVersion = "v1"
)

// Stamped at build time via -ldflags "-X nycsales/pkg/contracts.BuildTime=..."
// and left at "unknown" for plain go build.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the full build fingerprint served by /api/version and
// printed by the -version flag.
type VersionInfo struct {
	Version    string `json:"version"`
	BuildTime  string `json:"build_time"`
	GitCommit  string `json:"git_commit"`
	GoVersion  string `json:"go_version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	DataFormat string `json:"data_format"`
}

// GetVersionInfo assembles the fingerprint from the build stamps and the
// running toolchain.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		DataFormat: DataFormatVersion,
	}
}

// GetVersionString is the one-line banner for CLI output.
func GetVersionString() string {
	return fmt.Sprintf("NYC Property Sales Pipeline v%s", Version)
}
