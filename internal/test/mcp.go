package test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

type McpClient struct {
	ctx        context.Context
	testServer *httptest.Server
	*mcp.ClientSession
}

func newClient() *mcp.Client {
	return mcp.NewClient(&mcp.Implementation{Name: "test", Version: "1.33.7"}, nil)
}

// NewMcpClient serves mcpHttpServer on a test HTTP server and connects to its /mcp endpoint.
func NewMcpClient(t *testing.T, mcpHttpServer http.Handler) *McpClient {
	require.NotNil(t, mcpHttpServer, "McpHttpServer must be provided")
	var err error
	ret := &McpClient{ctx: t.Context()}
	ret.testServer = httptest.NewServer(mcpHttpServer)
	ret.ClientSession, err = newClient().Connect(t.Context(), &mcp.StreamableClientTransport{Endpoint: ret.testServer.URL + "/mcp"}, nil)
	require.NoError(t, err, "Expected no error connecting MCP client")
	return ret
}

// NewInMemoryMcpClient connects to server through in-memory transports.
func NewInMemoryMcpClient(t *testing.T, server *mcp.Server) *McpClient {
	require.NotNil(t, server, "MCP server must be provided")
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	_, err := server.Connect(t.Context(), serverTransport, nil)
	require.NoError(t, err, "Expected no error connecting MCP server")
	ret := &McpClient{ctx: t.Context()}
	ret.ClientSession, err = newClient().Connect(t.Context(), clientTransport, nil)
	require.NoError(t, err, "Expected no error connecting MCP client")
	return ret
}

func (m *McpClient) Close() {
	if m.ClientSession != nil {
		_ = m.ClientSession.Close()
	}
	if m.testServer != nil {
		m.testServer.Close()
	}
}

// CallTool helper function to call a tool by name with arguments
func (m *McpClient) CallTool(name string, args map[string]any) (*mcp.CallToolResult, error) {
	return m.ClientSession.CallTool(m.ctx, &mcp.CallToolParams{Name: name, Arguments: args})
}

// TextContent returns the text of the first content item of result.
func TextContent(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	if text, ok := result.Content[0].(*mcp.TextContent); ok {
		return text.Text
	}
	return ""
}
