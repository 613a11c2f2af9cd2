package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/openshift/osc-mcp-server/pkg/cli"
	"github.com/openshift/osc-mcp-server/pkg/toolsets"

	_ "github.com/openshift/osc-mcp-server/pkg/toolsets/osc"
)

func main() {
	// Snyk reports false positive unless we flow the args through filepath.Clean and filepath.Localize in this specific order
	var err error
	localReadmePath := filepath.Clean(os.Args[1])
	localReadmePath, err = filepath.Localize(localReadmePath)
	if err != nil {
		panic(err)
	}
	readme, err := os.ReadFile(localReadmePath)
	if err != nil {
		panic(err)
	}

	updated := replaceBetweenMarkers(
		string(readme),
		"<!-- AVAILABLE-TOOLSETS-START -->",
		"<!-- AVAILABLE-TOOLSETS-END -->",
		availableToolsets(),
	)
	updated = replaceBetweenMarkers(
		updated,
		"<!-- AVAILABLE-TOOLSETS-TOOLS-START -->",
		"<!-- AVAILABLE-TOOLSETS-TOOLS-END -->",
		toolsetTools(),
	)

	if err := os.WriteFile(localReadmePath, []byte(updated), 0o644); err != nil {
		panic(err)
	}
}

func availableToolsets() string {
	maxNameLen, maxDescLen := len("Toolset"), len("Description")
	for _, toolset := range toolsets.Toolsets() {
		maxNameLen = max(maxNameLen, len(toolset.GetName()))
		maxDescLen = max(maxDescLen, len(toolset.GetDescription()))
	}
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("| %-*s | %-*s |\n", maxNameLen, "Toolset", maxDescLen, "Description"))
	sb.WriteString(fmt.Sprintf("|-%s-|-%s-|\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxDescLen)))
	for _, toolset := range toolsets.Toolsets() {
		sb.WriteString(fmt.Sprintf("| %-*s | %-*s |\n", maxNameLen, toolset.GetName(), maxDescLen, toolset.GetDescription()))
	}
	return sb.String()
}

// toolsetTools lists every tool with its parameters and the command line it runs with default values.
func toolsetTools() string {
	builder := cli.NewBuilder(cli.Kubectl, cli.DefaultNamespace)
	sb := strings.Builder{}
	for _, toolset := range toolsets.Toolsets() {
		sb.WriteString("<details>\n\n<summary>" + toolset.GetName() + "</summary>\n\n")
		for _, tool := range toolset.GetTools() {
			sb.WriteString(fmt.Sprintf("- **%s** - %s\n", tool.Tool.Name, tool.Tool.Description))
			for _, propName := range slices.Sorted(maps.Keys(tool.Tool.InputSchema.Properties)) {
				property := tool.Tool.InputSchema.Properties[propName]
				sb.WriteString(fmt.Sprintf("  - `%s` (`%s`)", propName, property.Type))
				if slices.Contains(tool.Tool.InputSchema.Required, propName) {
					sb.WriteString(" **(required)**")
				}
				sb.WriteString(fmt.Sprintf(" - %s\n", property.Description))
			}
			if invocation, err := builder.Build(tool.Tool.Name, exampleParams(tool.Tool.InputSchema.Required)); err == nil {
				sb.WriteString(fmt.Sprintf("  - runs `%s`\n", invocation))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("</details>\n\n")
	}
	return sb.String()
}

func exampleParams(required []string) map[string]any {
	params := map[string]any{}
	if slices.Contains(required, cli.ParamName) {
		params[cli.ParamName] = "example"
	}
	return params
}

func replaceBetweenMarkers(content, startMarker, endMarker, replacement string) string {
	startIdx := strings.Index(content, startMarker)
	if startIdx == -1 {
		return content
	}
	endIdx := strings.Index(content, endMarker)
	if endIdx == -1 || endIdx <= startIdx {
		return content
	}
	return content[:startIdx+len(startMarker)] + "\n\n" + replacement + "\n" + content[endIdx:]
}
