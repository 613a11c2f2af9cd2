package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"k8s.io/klog/v2"
	"k8s.io/utils/exec"

	"github.com/openshift/osc-mcp-server/pkg/api"
	"github.com/openshift/osc-mcp-server/pkg/cli"
	"github.com/openshift/osc-mcp-server/pkg/config"
	"github.com/openshift/osc-mcp-server/pkg/metrics"
	"github.com/openshift/osc-mcp-server/pkg/toolsets"
	"github.com/openshift/osc-mcp-server/pkg/version"
)

type Configuration struct {
	*config.StaticConfig
	toolsets []api.Toolset
}

func (c *Configuration) Toolsets() []api.Toolset {
	if c.toolsets == nil {
		var err error
		if c.toolsets, err = toolsets.Resolve(c.StaticConfig.Toolsets); err != nil {
			klog.Warningf("Ignoring toolsets: %v", err)
		}
	}
	return c.toolsets
}

func (c *Configuration) isToolApplicable(tool api.ServerTool) bool {
	return CompositeFilter(
		ReadOnlyFilter(c.ReadOnly),
		EnabledToolsFilter(c.EnabledTools),
		DisabledToolsFilter(c.DisabledTools),
	)(tool)
}

type Server struct {
	configuration    *Configuration
	server           *mcp.Server
	exec             exec.Interface
	dispatcher       atomic.Pointer[cli.Dispatcher]
	enabledTools     []string
	enabledResources []string
	metrics          *metrics.Metrics
}

func NewServer(configuration Configuration) (*Server, error) {
	s := &Server{
		configuration: &configuration,
		exec:          exec.New(),
		server: mcp.NewServer(
			&mcp.Implementation{
				Name:       version.BinaryName,
				Title:      version.BinaryName,
				Version:    version.Version,
				WebsiteURL: version.WebsiteURL,
			},
			&mcp.ServerOptions{
				Capabilities: &mcp.ServerCapabilities{
					Resources: &mcp.ResourceCapabilities{ListChanged: !configuration.Stateless},
					Tools:     &mcp.ToolCapabilities{ListChanged: !configuration.Stateless},
					Logging:   &mcp.LoggingCapabilities{},
				},
				Instructions: configuration.ServerInstructions,
			}),
	}

	metricsInstance, err := metrics.New(metrics.Config{
		TracerName:     version.BinaryName + "/mcp",
		ServiceName:    version.BinaryName,
		ServiceVersion: version.Version,
		Telemetry:      &configuration.Telemetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	s.metrics = metricsInstance

	s.server.AddReceivingMiddleware(sessionInjectionMiddleware)
	s.server.AddReceivingMiddleware(tracingMiddleware(version.BinaryName + "/mcp"))
	s.server.AddReceivingMiddleware(toolCallLoggingMiddleware)
	s.server.AddReceivingMiddleware(s.metricsMiddleware())
	if err = s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// newDispatcher wires the command builder and executor for the current configuration.
func (s *Server) newDispatcher() *cli.Dispatcher {
	cfg := s.configuration.StaticConfig
	builder := cli.NewBuilder(cli.Tool(cfg.CLI.DefaultTool), cfg.CLI.DefaultNamespace)
	executor := cli.NewExecutor(s.exec, cli.ExecutorOptions{
		Timeout:       cfg.CLI.Timeout,
		Paths:         cfg.ToolPaths(),
		Kubeconfig:    cfg.ResolvePath(cfg.KubeConfig),
		MaxConcurrent: cfg.CLI.MaxConcurrent,
		Recorder:      s.metrics,
	})
	return cli.NewDispatcher(builder, executor)
}

// Invoke runs a catalog operation with the dispatcher active at call time.
func (s *Server) Invoke(ctx context.Context, operation string, params map[string]any) (string, error) {
	return s.dispatcher.Load().Invoke(ctx, operation, params)
}

func (s *Server) reload() error {
	s.dispatcher.Store(s.newDispatcher())

	var err error
	s.enabledTools, err = reloadItems(
		s.enabledTools,
		s.collectApplicableTools(),
		func(t api.ServerTool) string { return t.Tool.Name },
		s.server.RemoveTools,
		s.registerTool,
	)
	if err != nil {
		return err
	}

	s.enabledResources, err = reloadItems(
		s.enabledResources,
		s.collectResources(),
		func(r *mcp.Resource) string { return r.URI },
		s.server.RemoveResources,
		s.registerResource,
	)
	return err
}

// reloadItems removes the previously registered items that are no longer applicable,
// registers every current item and returns their names.
func reloadItems[T any](
	previous []string,
	items []T,
	getName func(T) string,
	remove func(...string),
	register func(T) error,
) ([]string, error) {
	enabled := make([]string, 0, len(items))
	for _, item := range items {
		enabled = append(enabled, getName(item))
	}
	remove(slices.DeleteFunc(slices.Clone(previous), func(name string) bool {
		return slices.Contains(enabled, name)
	})...)

	for _, item := range items {
		if err := register(item); err != nil {
			return nil, err
		}
	}
	return enabled, nil
}

func (s *Server) collectApplicableTools() []api.ServerTool {
	tools := make([]api.ServerTool, 0)
	for _, toolset := range s.configuration.Toolsets() {
		for _, tool := range toolset.GetTools() {
			if s.configuration.isToolApplicable(tool) {
				tools = append(tools, tool)
			}
		}
	}
	return tools
}

func (s *Server) registerTool(tool api.ServerTool) error {
	goSdkTool, goSdkToolHandler, err := ServerToolToGoSdkTool(s, tool)
	if err != nil {
		return fmt.Errorf("failed to convert tool %s: %w", tool.Tool.Name, err)
	}
	s.server.AddTool(goSdkTool, goSdkToolHandler)
	return nil
}

func (s *Server) metricsMiddleware() func(mcp.MethodHandler) mcp.MethodHandler {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			toolName := method
			recordedErr := err
			if method == "tools/call" {
				if params, ok := req.GetParams().(*mcp.CallToolParamsRaw); ok && params != nil {
					toolName = params.Name
				}
				if err == nil && isErrorResult(result) {
					recordedErr = fmt.Errorf("tool %s returned an error result", toolName)
				}
			}

			s.metrics.RecordToolCall(ctx, toolName, duration, recordedErr)
			return result, err
		}
	}
}

// GetMetrics returns the metrics system for use by the HTTP server.
func (s *Server) GetMetrics() *metrics.Metrics {
	return s.metrics
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.LoggingTransport{Transport: &mcp.StdioTransport{}, Writer: os.Stderr})
}

func (s *Server) getServer(*http.Request) *mcp.Server {
	return s.server
}

// ServeSse serves the legacy SSE transport, every session shares the one server.
func (s *Server) ServeSse() *mcp.SSEHandler {
	return mcp.NewSSEHandler(s.getServer, &mcp.SSEOptions{})
}

// ServeHTTP serves the streamable HTTP transport. Stateless servers send no list_changed notifications.
func (s *Server) ServeHTTP() *mcp.StreamableHTTPHandler {
	return mcp.NewStreamableHTTPHandler(s.getServer, &mcp.StreamableHTTPOptions{Stateless: s.configuration.Stateless})
}

func (s *Server) GetEnabledTools() []string {
	return s.enabledTools
}

// ReloadConfiguration swaps in newConfig, rebuilding the dispatcher and the advertised tools and resources.
// Calls already running keep the dispatcher they started with.
func (s *Server) ReloadConfiguration(newConfig *config.StaticConfig) error {
	klog.V(1).Info("Reloading MCP server configuration...")

	s.configuration.StaticConfig = newConfig
	s.configuration.toolsets = nil

	if err := s.reload(); err != nil {
		return fmt.Errorf("failed to reload toolsets: %w", err)
	}

	klog.V(1).Info("MCP server configuration reloaded successfully")
	return nil
}

// Shutdown flushes pending metric exports. Running commands are not waited for.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.metrics.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics: %w", err)
	}
	return nil
}

// NewTextResult wraps command output, or the rendered error as an IsError result, in a single text block.
func NewTextResult(content string, err error) *mcp.CallToolResult {
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: content}}}
}
