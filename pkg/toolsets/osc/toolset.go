package osc

import (
	"github.com/openshift/osc-mcp-server/pkg/api"
	"github.com/openshift/osc-mcp-server/pkg/toolsets"
)

// Name is the toolset enabled by default.
const Name = "osc"

type Toolset struct{}

var _ api.Toolset = (*Toolset)(nil)

func (t *Toolset) GetName() string {
	return Name
}

func (t *Toolset) GetDescription() string {
	return "Read-only kubectl/oc commands for inspecting OpenShift sandboxed containers (nodes, operators, pods, jobs, daemonsets, KataConfig, ConfigMaps, Secrets)"
}

func (t *Toolset) GetTools() []api.ServerTool {
	return initCatalog()
}

func init() {
	toolsets.Register(&Toolset{})
}
