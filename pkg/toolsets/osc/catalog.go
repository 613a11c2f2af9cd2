package osc

import (
	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/utils/ptr"

	"github.com/openshift/osc-mcp-server/pkg/api"
	"github.com/openshift/osc-mcp-server/pkg/cli"
	"github.com/openshift/osc-mcp-server/pkg/mcplog"
)

// initCatalog exposes every catalog operation as a tool, in catalog order.
func initCatalog() []api.ServerTool {
	ret := make([]api.ServerTool, 0, len(cli.Catalog()))
	for _, op := range cli.Catalog() {
		ret = append(ret, api.ServerTool{
			Tool: api.Tool{
				Name:        op.Name,
				Description: op.Description,
				InputSchema: inputSchema(op),
				Annotations: api.ToolAnnotations{
					Title:           op.Title,
					ReadOnlyHint:    ptr.To(true),
					DestructiveHint: ptr.To(false),
					IdempotentHint:  ptr.To(true),
					OpenWorldHint:   ptr.To(true),
				},
			},
			Handler: handler(op.Name),
		})
	}
	return ret
}

func inputSchema(op cli.OperationSpec) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(op.Params)),
	}
	for _, p := range op.Params {
		prop := &jsonschema.Schema{
			Type:        "string",
			Description: p.Description,
		}
		if p.Default != "" {
			prop.Default = api.ToRawMessage(p.Default)
		}
		if p.Kind == cli.ParamTool {
			for _, name := range cli.ToolNames() {
				prop.Enum = append(prop.Enum, name)
			}
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

func handler(operation string) api.ToolHandlerFunc {
	return func(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
		out, err := params.Invoke(params.Context, operation, params.GetArguments())
		if err != nil {
			mcplog.HandleCommandError(params.Context, err, operation)
			return api.NewToolCallResult("", err), nil
		}
		return api.NewToolCallResult(out, nil), nil
	}
}
