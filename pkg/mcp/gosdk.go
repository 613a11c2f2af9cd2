package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"k8s.io/utils/ptr"

	"github.com/openshift/osc-mcp-server/pkg/api"
)

// ToolCallRequest is a decoded tools/call request.
type ToolCallRequest struct {
	Name      string
	arguments map[string]any
}

var _ api.ToolCallRequest = (*ToolCallRequest)(nil)

func (t *ToolCallRequest) GetArguments() map[string]any {
	return t.arguments
}

// GoSdkToolCallParamsToToolCallRequest decodes the raw arguments of a tools/call request.
// Missing or null arguments decode to an empty map.
func GoSdkToolCallParamsToToolCallRequest(params *mcp.CallToolParamsRaw) (*ToolCallRequest, error) {
	if params == nil {
		return nil, fmt.Errorf("missing tool call parameters")
	}
	request := &ToolCallRequest{Name: params.Name, arguments: map[string]any{}}
	if len(params.Arguments) == 0 {
		return request, nil
	}
	var arguments map[string]any
	if err := json.Unmarshal(params.Arguments, &arguments); err != nil {
		return request, fmt.Errorf("failed to unmarshal arguments for tool %s: %w", params.Name, err)
	}
	if arguments != nil {
		request.arguments = arguments
	}
	return request, nil
}

// ServerToolToGoSdkTool converts an api.ServerTool into a go-sdk tool whose handler dispatches through s.
func ServerToolToGoSdkTool(s *Server, tool api.ServerTool) (*mcp.Tool, mcp.ToolHandler, error) {
	goSdkTool := &mcp.Tool{
		Name:        tool.Tool.Name,
		Title:       tool.Tool.Annotations.Title,
		Description: tool.Tool.Description,
		Annotations: &mcp.ToolAnnotations{
			Title:           tool.Tool.Annotations.Title,
			ReadOnlyHint:    ptr.Deref(tool.Tool.Annotations.ReadOnlyHint, false),
			DestructiveHint: tool.Tool.Annotations.DestructiveHint,
			IdempotentHint:  ptr.Deref(tool.Tool.Annotations.IdempotentHint, false),
			OpenWorldHint:   tool.Tool.Annotations.OpenWorldHint,
		},
	}
	if tool.Tool.InputSchema == nil {
		goSdkTool.InputSchema = json.RawMessage(`{"type":"object","properties":{}}`)
	} else {
		schema, err := json.Marshal(tool.Tool.InputSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal tool input schema for tool %s: %w", tool.Tool.Name, err)
		}
		goSdkTool.InputSchema = json.RawMessage(schema)
	}
	handler := func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolCallRequest, err := GoSdkToolCallParamsToToolCallRequest(request.Params)
		if err != nil {
			return nil, err
		}
		result, err := tool.Handler(api.ToolHandlerParams{
			Context:         ctx,
			Dispatcher:      s,
			ToolCallRequest: toolCallRequest,
		})
		if err != nil {
			return nil, err
		}
		return NewTextResult(result.Content, result.Error), nil
	}
	return goSdkTool, handler, nil
}
