package mcplog

import (
	"context"
	"errors"
	"strings"

	"github.com/openshift/osc-mcp-server/pkg/cli"
)

// stderrHints recognizes well known kubectl/oc failure messages.
var stderrHints = []struct {
	match   []string
	level   Level
	message string
}{
	{[]string{"forbidden"}, LevelError, "Permission denied - check RBAC permissions for "},
	{[]string{"unauthorized", "you must be logged in"}, LevelError, "Authentication failed - check cluster credentials"},
	{[]string{"the server doesn't have a resource type", "no matches for kind"}, LevelWarning,
		"Resource type not available - the required operator or CRD may not be installed"},
	{[]string{"notfound", "not found"}, LevelInfo, "Resource not found - it may not exist or may have been deleted"},
	{[]string{"unable to connect to the server", "connection refused", "no such host"}, LevelError,
		"Cluster unreachable - check the kubeconfig and network connectivity"},
	{[]string{"toomanyrequests", "rate limit"}, LevelWarning, "Rate limited - too many requests to the cluster"},
}

// classifyCommandError maps a command failure to a log level and message.
// Returns false for nil errors and for errors that are not command errors.
func classifyCommandError(err error, operation string) (Level, string, bool) {
	var cliErr *cli.Error
	if err == nil || !errors.As(err, &cliErr) {
		return 0, "", false
	}
	switch cliErr.Code {
	case cli.CodeToolNotFound:
		return LevelCritical, "CLI tool not found - install kubectl or oc, or configure its path", true
	case cli.CodeExecutionTimeout:
		return LevelError, "Command timed out - cluster may be slow or overloaded", true
	case cli.CodeExecutionCanceled:
		return LevelDebug, "Command canceled for " + operation, true
	case cli.CodeExternalCommandFailed:
		stderr := strings.ToLower(cliErr.Stderr)
		for _, hint := range stderrHints {
			for _, m := range hint.match {
				if strings.Contains(stderr, m) {
					message := hint.message
					if strings.HasSuffix(message, " ") {
						message += operation
					}
					return hint.level, message, true
				}
			}
		}
		return LevelError, "Command failed - cluster may be unreachable or experiencing issues", true
	}
	// Validation failures are reported to the caller in the tool result only.
	return 0, "", false
}

// HandleCommandError sends an MCP log message describing why a command failed.
func HandleCommandError(ctx context.Context, err error, operation string) {
	if level, message, ok := classifyCommandError(err, operation); ok {
		SendMCPLog(ctx, level, message)
	}
}
