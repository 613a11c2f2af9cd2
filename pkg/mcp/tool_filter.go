package mcp

import (
	"slices"

	"k8s.io/utils/ptr"

	"github.com/openshift/osc-mcp-server/pkg/api"
)

// ToolFilter is a function that takes a ServerTool and returns a boolean indicating whether to include the tool
type ToolFilter func(tool api.ServerTool) bool

func CompositeFilter(filters ...ToolFilter) ToolFilter {
	return func(tool api.ServerTool) bool {
		for _, f := range filters {
			if !f(tool) {
				return false
			}
		}

		return true
	}
}

// ReadOnlyFilter drops tools without a readOnlyHint when readOnly is set.
func ReadOnlyFilter(readOnly bool) ToolFilter {
	return func(tool api.ServerTool) bool {
		return !readOnly || ptr.Deref(tool.Tool.Annotations.ReadOnlyHint, false)
	}
}

// EnabledToolsFilter keeps only the listed tools, or every tool when the list is nil.
func EnabledToolsFilter(enabled []string) ToolFilter {
	return func(tool api.ServerTool) bool {
		return enabled == nil || slices.Contains(enabled, tool.Tool.Name)
	}
}

func DisabledToolsFilter(disabled []string) ToolFilter {
	return func(tool api.ServerTool) bool {
		return !slices.Contains(disabled, tool.Tool.Name)
	}
}
