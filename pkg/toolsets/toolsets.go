// Package toolsets is the registry toolset packages add themselves to from init.
package toolsets

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/openshift/osc-mcp-server/pkg/api"
)

var registry = map[string]api.Toolset{}

// Clear empties the registry, TESTING PURPOSES ONLY.
func Clear() {
	registry = map[string]api.Toolset{}
}

// Register adds a toolset under its name. Names are config values, registering one twice panics.
func Register(toolset api.Toolset) {
	name := toolset.GetName()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("toolset %q registered twice", name))
	}
	registry[name] = toolset
}

// Toolsets returns the registered toolsets sorted by name.
func Toolsets() []api.Toolset {
	return slices.SortedFunc(maps.Values(registry), func(a, b api.Toolset) int {
		return strings.Compare(a.GetName(), b.GetName())
	})
}

func ToolsetNames() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Resolve maps configured names to toolsets, keeping the configured order. Unknown names are skipped
// and the first one is reported in the error.
func Resolve(names []string) ([]api.Toolset, error) {
	resolved := make([]api.Toolset, 0, len(names))
	var err error
	for _, name := range names {
		toolset, ok := registry[strings.TrimSpace(name)]
		if !ok {
			if err == nil {
				err = fmt.Errorf("invalid toolset name: %s, valid names are: %s", name, strings.Join(ToolsetNames(), ", "))
			}
			continue
		}
		resolved = append(resolved, toolset)
	}
	return resolved, err
}

func Validate(names []string) error {
	_, err := Resolve(names)
	return err
}
