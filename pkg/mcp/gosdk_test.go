package mcp

import (
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/suite"
	"k8s.io/utils/ptr"

	"github.com/openshift/osc-mcp-server/pkg/api"
)

type GoSdkSuite struct {
	suite.Suite
}

func (s *GoSdkSuite) TestGoSdkToolCallParamsToToolCallRequest() {
	s.Run("decodes arguments", func() {
		req, err := GoSdkToolCallParamsToToolCallRequest(&mcp.CallToolParamsRaw{
			Name:      "get_pods",
			Arguments: json.RawMessage(`{"command":"oc","namespace":"prod"}`),
		})
		s.Require().NoError(err)
		s.Equal("get_pods", req.Name)
		s.Equal(map[string]any{"command": "oc", "namespace": "prod"}, req.GetArguments())
	})
	s.Run("missing arguments decode to an empty map", func() {
		req, err := GoSdkToolCallParamsToToolCallRequest(&mcp.CallToolParamsRaw{Name: "get_pods"})
		s.Require().NoError(err)
		s.NotNil(req.GetArguments())
		s.Empty(req.GetArguments())
	})
	s.Run("null arguments decode to an empty map", func() {
		req, err := GoSdkToolCallParamsToToolCallRequest(&mcp.CallToolParamsRaw{Name: "get_pods", Arguments: json.RawMessage(`null`)})
		s.Require().NoError(err)
		s.NotNil(req.GetArguments())
	})
	s.Run("non-object arguments are rejected", func() {
		_, err := GoSdkToolCallParamsToToolCallRequest(&mcp.CallToolParamsRaw{Name: "get_pods", Arguments: json.RawMessage(`["oc"]`)})
		s.ErrorContains(err, "failed to unmarshal arguments for tool get_pods")
	})
	s.Run("nil params are rejected", func() {
		_, err := GoSdkToolCallParamsToToolCallRequest(nil)
		s.Error(err)
	})
}

func (s *GoSdkSuite) TestServerToolToGoSdkTool() {
	s.Run("copies metadata and annotations", func() {
		goSdkTool, handler, err := ServerToolToGoSdkTool(&Server{}, api.ServerTool{
			Tool: api.Tool{
				Name:        "get_pods",
				Description: "Get the list of pods",
				Annotations: api.ToolAnnotations{
					Title:           "List pods",
					ReadOnlyHint:    ptr.To(true),
					DestructiveHint: ptr.To(false),
					OpenWorldHint:   ptr.To(true),
				},
			},
		})
		s.Require().NoError(err)
		s.NotNil(handler)
		s.Equal("get_pods", goSdkTool.Name)
		s.Equal("List pods", goSdkTool.Title)
		s.True(goSdkTool.Annotations.ReadOnlyHint)
		s.False(*goSdkTool.Annotations.DestructiveHint)
		s.True(*goSdkTool.Annotations.OpenWorldHint)
	})
	s.Run("tools without a schema advertise an empty object", func() {
		goSdkTool, _, err := ServerToolToGoSdkTool(&Server{}, api.ServerTool{Tool: api.Tool{Name: "noop"}})
		s.Require().NoError(err)
		s.JSONEq(`{"type":"object","properties":{}}`, string(goSdkTool.InputSchema.(json.RawMessage)))
	})
}

func TestGoSdk(t *testing.T) {
	suite.Run(t, new(GoSdkSuite))
}
