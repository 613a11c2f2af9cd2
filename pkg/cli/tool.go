package cli

import (
	"fmt"
	"strings"
)

// Tool is the cluster CLI front-end an invocation runs with.
type Tool string

const (
	Kubectl Tool = "kubectl"
	OC      Tool = "oc"
)

// Tools returns the supported tools in a stable order.
func Tools() []Tool {
	return []Tool{Kubectl, OC}
}

// ToolNames returns the supported tools as strings, used for schema enums and help text.
func ToolNames() []string {
	names := make([]string, 0, len(Tools()))
	for _, t := range Tools() {
		names = append(names, string(t))
	}
	return names
}

// ParseTool resolves a tool selector. Matching is exact.
func ParseTool(s string) (Tool, error) {
	for _, t := range Tools() {
		if s == string(t) {
			return t, nil
		}
	}
	return "", &Error{
		Code:      CodeInvalidToolSelector,
		Parameter: ParamCommand,
		Message:   fmt.Sprintf("invalid CLI tool %q, use one of: %s", s, strings.Join(ToolNames(), ", ")),
	}
}
