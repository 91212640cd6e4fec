package config

// Set at link time:
//
//	go build -ldflags "-X cinotify/internal/config.version=1.2.3 \
//	    -X cinotify/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X cinotify/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// ServiceVersion returns the version reported by /health: the linked build
// version when set, otherwise the configured fallback.
func (c *Config) ServiceVersion() string {
	if c.Build.Version != "" && c.Build.Version != "dev" {
		return c.Build.Version
	}
	return c.Health.Version
}
