package mcplog

import (
	"context"
	"regexp"
	"slices"

	"github.com/go-logr/logr"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"k8s.io/klog/v2"

	"github.com/openshift/osc-mcp-server/pkg/version"
)

type ContextKey string

// MCPSessionContextKey carries the *mcp.ServerSession a tool call arrived on.
const MCPSessionContextKey = ContextKey("mcp_session")

// Level is an MCP (RFC 5424) log severity, ordered from least to most severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarning
	LevelError
	LevelCritical
	LevelAlert
	LevelEmergency
)

var levelNames = [...]string{"debug", "info", "notice", "warning", "error", "critical", "alert", "emergency"}

// String returns the protocol name of the level, unknown levels map to debug.
func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "debug"
}

// redaction pairs a sensitive pattern with the replacement that keeps its non-sensitive groups.
type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

func redact(replacement string, patterns ...string) []redaction {
	ret := make([]redaction, 0, len(patterns))
	for _, p := range patterns {
		ret = append(ret, redaction{pattern: regexp.MustCompile(p), replacement: replacement})
	}
	return ret
}

var (
	// server side copy of every message sent to clients
	mcpLogger logr.Logger = klog.NewKlogr().WithName("mcp")

	// Applied in order. Field patterns come first so that the generic token patterns don't eat the field names.
	redactions = slices.Concat(
		// JSON fields, as printed by `describe secret -o json` or `get -o json`
		redact(`$1"[REDACTED]"`,
			`("password"\s*:\s*)"[^"]*"`,
			`("token"\s*:\s*)"[^"]*"`,
			`("secret"\s*:\s*)"[^"]*"`,
			`("api[_-]?key"\s*:\s*)"[^"]*"`,
			`("access[_-]?key"\s*:\s*)"[^"]*"`,
			`("client[_-]?secret"\s*:\s*)"[^"]*"`,
			`("private[_-]?key"\s*:\s*)"[^"]*"`,
		),
		// kubeconfig credentials
		redact(`$1[REDACTED]`,
			`((?:client-key-data|client-certificate-data|token)\s*:\s*)[A-Za-z0-9+/=._~-]{16,}`,
		),
		// Authorization headers, printed by the CLIs at high verbosity
		redact(`$1[REDACTED]`,
			`(Bearer\s+)[A-Za-z0-9\-._~+/]+=*`,
			`(Basic\s+)[A-Za-z0-9+/]+=*`,
		),
		// Connection strings keep the URL structure
		redact(`$1[REDACTED]$3`,
			`(postgres://[^:]+:)([^@]+)(@)`,
			`(mysql://[^:]+:)([^@]+)(@)`,
		),
		redact(`$1[REDACTED]$4`,
			`(mongodb(\+srv)?://[^:]+:)([^@]+)(@)`,
		),
		redact(`$1[REDACTED]`,
			`(aws_secret_access_key\s*=\s*)[A-Za-z0-9/+=]{40}`,
		),
		redact(`[REDACTED]`,
			`(A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`,
			`ghp_[a-zA-Z0-9]{36}`,
			`github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59}`,
			`glpat-[a-zA-Z0-9\-_]{20}`,
			`AIza[0-9A-Za-z\-_]{35}`,
			`AccountKey=[A-Za-z0-9+/]{88}==`,
			`sk-proj-[a-zA-Z0-9]{48}`,
			`sk-ant-api03-[a-zA-Z0-9\-_]{95}`,
			`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
			`-----BEGIN[A-Z ]+PRIVATE KEY( BLOCK)?-----`,
		),
	)
)

func sanitizeMessage(msg string) string {
	for _, r := range redactions {
		msg = r.pattern.ReplaceAllString(msg, r.replacement)
	}
	return msg
}

// SendMCPLog redacts message, logs it on the "mcp" logger and, when ctx carries a session, notifies
// the client. Clients that never set a level receive nothing.
func SendMCPLog(ctx context.Context, level Level, message string) {
	message = sanitizeMessage(message)
	switch level {
	case LevelError, LevelCritical, LevelAlert, LevelEmergency:
		mcpLogger.Error(nil, message)
	case LevelWarning, LevelNotice:
		mcpLogger.V(1).Info(message)
	default:
		mcpLogger.V(2).Info(message)
	}

	session, ok := ctx.Value(MCPSessionContextKey).(*mcp.ServerSession)
	if !ok || session == nil {
		return
	}
	if err := session.Log(ctx, &mcp.LoggingMessageParams{
		Level:  mcp.LoggingLevel(level.String()),
		Logger: version.BinaryName,
		Data:   message,
	}); err != nil {
		mcpLogger.V(3).Info("failed to send log to MCP client", "error", err)
	}
}
