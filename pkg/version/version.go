package version

// Overridden at build time with -ldflags "-X github.com/openshift/osc-mcp-server/pkg/version.Version=..."
var (
	CommitHash = "unknown"
	BuildTime  = "1970-01-01T00:00:00Z"
	Version    = "0.0.0"
)

const (
	BinaryName = "osc-mcp-server"
	WebsiteURL = "https://github.com/openshift/osc-mcp-server"
)
