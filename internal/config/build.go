package config

// Build metadata injected by the linker via -ldflags at release time.
// Defaults identify a non-release (local or test) binary.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildTime    = "unknown"
)

// NewBuildInfo returns the build metadata captured at link time.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildTime: buildTime,
	}
}
