// Package api holds the types shared by the MCP server and the toolsets. It must not import other
// packages of this module.
package api

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Toolset is a named group of tools, selectable with the toolsets config key.
type Toolset interface {
	GetName() string
	// GetDescription is rendered in --help and the README.
	GetDescription() string
	GetTools() []ServerTool
}

// ServerTool pairs the advertised tool with the handler serving its calls.
type ServerTool struct {
	Tool    Tool
	Handler ToolHandlerFunc
}

type ToolHandlerFunc func(params ToolHandlerParams) (*ToolCallResult, error)

// ToolHandlerParams is what a handler gets for one call: the request context, the dispatcher of the
// current configuration and the call arguments.
type ToolHandlerParams struct {
	context.Context
	Dispatcher
	ToolCallRequest
}

type ToolCallRequest interface {
	GetArguments() map[string]any
}

// Dispatcher runs a catalog operation and returns the raw command output.
type Dispatcher interface {
	Invoke(ctx context.Context, operation string, params map[string]any) (string, error)
}

// ToolCallResult is the outcome of a call. Error is reported to the model as an IsError result,
// a handler returns a Go error only for protocol failures.
type ToolCallResult struct {
	Content string
	Error   error
}

func NewToolCallResult(content string, err error) *ToolCallResult {
	return &ToolCallResult{Content: content, Error: err}
}

// Tool is the SDK independent description of a tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Annotations ToolAnnotations `json:"annotations"`
	InputSchema *jsonschema.Schema
}

// ToolAnnotations are the MCP behaviour hints, nil means unset.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// ToRawMessage marshals a schema default, returning nil for nil or unmarshalable values.
func ToRawMessage(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
