package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"k8s.io/cli-runtime/pkg/genericiooptions"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"
	"k8s.io/kubectl/pkg/util/i18n"
	"k8s.io/kubectl/pkg/util/templates"

	"github.com/openshift/osc-mcp-server/pkg/cli"
	"github.com/openshift/osc-mcp-server/pkg/config"
	internalhttp "github.com/openshift/osc-mcp-server/pkg/http"
	"github.com/openshift/osc-mcp-server/pkg/mcp"
	"github.com/openshift/osc-mcp-server/pkg/telemetry"
	"github.com/openshift/osc-mcp-server/pkg/toolsets"
	_ "github.com/openshift/osc-mcp-server/pkg/toolsets/osc"
	"github.com/openshift/osc-mcp-server/pkg/version"
	"github.com/openshift/osc-mcp-server/pkg/watcher"
)

var (
	long     = templates.LongDesc(i18n.T("OpenShift sandboxed containers Model Context Protocol (MCP) server"))
	examples = templates.Examples(i18n.T(`
# show this help
osc-mcp-server -h

# shows version information
osc-mcp-server --version

# start STDIO server
osc-mcp-server

# start a streamable HTTP and SSE server on port 8080
osc-mcp-server --port 8080

# use oc by default and look up resources in the openshift-sandboxed-containers-operator namespace
osc-mcp-server --default-tool oc --default-namespace openshift-sandboxed-containers-operator

# only expose the diagnostic tools, reloading them when the drop-in directory changes
osc-mcp-server --enabled-tools get_kataconfig_status,describe_kataconfig --config-dir /etc/osc-mcp-server/conf.d
`))
)

const (
	flagVersion          = "version"
	flagLogLevel         = "log-level"
	flagConfig           = "config"
	flagConfigDir        = "config-dir"
	flagPort             = "port"
	flagKubeconfig       = "kubeconfig"
	flagToolsets         = "toolsets"
	flagReadOnly         = "read-only"
	flagEnabledTools     = "enabled-tools"
	flagDisabledTools    = "disabled-tools"
	flagStateless        = "stateless"
	flagDefaultTool      = "default-tool"
	flagDefaultNamespace = "default-namespace"
	flagTimeout          = "timeout"
	flagMaxConcurrent    = "max-concurrent"
	flagKubectlPath      = "kubectl-path"
	flagOCPath           = "oc-path"
)

type MCPServerOptions struct {
	Version          bool
	LogLevel         int
	Port             string
	Kubeconfig       string
	Toolsets         []string
	ReadOnly         bool
	EnabledTools     []string
	DisabledTools    []string
	Stateless        bool
	DefaultTool      string
	DefaultNamespace string
	Timeout          time.Duration
	MaxConcurrent    int64
	KubectlPath      string
	OCPath           string

	ConfigPath   string
	ConfigDir    string
	StaticConfig *config.StaticConfig

	cmd *cobra.Command

	genericiooptions.IOStreams
}

func NewMCPServerOptions(streams genericiooptions.IOStreams) *MCPServerOptions {
	return &MCPServerOptions{
		IOStreams:    streams,
		StaticConfig: config.Default(),
	}
}

func NewMCPServer(streams genericiooptions.IOStreams) *cobra.Command {
	return newCommand(NewMCPServerOptions(streams))
}

func newCommand(o *MCPServerOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "osc-mcp-server [command] [options]",
		Short:   "OpenShift sandboxed containers Model Context Protocol (MCP) server",
		Long:    long,
		Example: examples,
		RunE: func(c *cobra.Command, args []string) error {
			if err := o.Complete(c); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&o.Version, flagVersion, o.Version, "Print version information and quit")
	cmd.Flags().IntVar(&o.LogLevel, flagLogLevel, o.LogLevel, "Set the log level (from 0 to 9)")
	cmd.Flags().StringVar(&o.ConfigPath, flagConfig, o.ConfigPath, "Path of the config file.")
	cmd.Flags().StringVar(&o.ConfigDir, flagConfigDir, o.ConfigDir, "Path of a drop-in directory whose *.toml files are merged, in lexical order, on top of the config file.")
	cmd.Flags().StringVar(&o.Port, flagPort, o.Port, "Start a streamable HTTP and SSE HTTP server on the specified port (e.g. 8080)")
	cmd.Flags().StringVar(&o.Kubeconfig, flagKubeconfig, o.Kubeconfig, "Path to the kubeconfig file exported to kubectl and oc as KUBECONFIG")
	cmd.Flags().StringSliceVar(&o.Toolsets, flagToolsets, o.Toolsets, "Comma-separated list of MCP toolsets to use (available toolsets: "+strings.Join(toolsets.ToolsetNames(), ", ")+"). Defaults to "+strings.Join(o.StaticConfig.Toolsets, ", ")+".")
	cmd.Flags().BoolVar(&o.ReadOnly, flagReadOnly, o.ReadOnly, "If true, only tools annotated with readOnlyHint=true are exposed")
	cmd.Flags().StringSliceVar(&o.EnabledTools, flagEnabledTools, o.EnabledTools, "Comma-separated list of tools to expose. If empty, every tool of the selected toolsets is exposed")
	cmd.Flags().StringSliceVar(&o.DisabledTools, flagDisabledTools, o.DisabledTools, "Comma-separated list of tools to hide")
	cmd.Flags().BoolVar(&o.Stateless, flagStateless, o.Stateless, "If true, the streamable HTTP transport keeps no session state and sends no list_changed notifications")
	cmd.Flags().StringVar(&o.DefaultTool, flagDefaultTool, o.DefaultTool, "CLI used when a call omits the command parameter (one of: "+strings.Join(cli.ToolNames(), ", ")+"). Defaults to "+o.StaticConfig.CLI.DefaultTool+".")
	cmd.Flags().StringVar(&o.DefaultNamespace, flagDefaultNamespace, o.DefaultNamespace, "Namespace used when a call omits the namespace parameter. Defaults to "+o.StaticConfig.CLI.DefaultNamespace+".")
	cmd.Flags().DurationVar(&o.Timeout, flagTimeout, o.Timeout, "Maximum duration of a single kubectl or oc invocation. Defaults to "+o.StaticConfig.CLI.Timeout.String()+".")
	cmd.Flags().Int64Var(&o.MaxConcurrent, flagMaxConcurrent, o.MaxConcurrent, "Maximum number of kubectl or oc invocations running at once, 0 means unbounded")
	cmd.Flags().StringVar(&o.KubectlPath, flagKubectlPath, o.KubectlPath, "Path of the kubectl binary. If empty, kubectl is looked up in PATH")
	cmd.Flags().StringVar(&o.OCPath, flagOCPath, o.OCPath, "Path of the oc binary. If empty, oc is looked up in PATH")

	o.cmd = cmd
	return cmd
}

func (m *MCPServerOptions) Complete(cmd *cobra.Command) error {
	if m.ConfigPath != "" || m.ConfigDir != "" {
		cnf, err := config.Read(m.ConfigPath, m.ConfigDir)
		if err != nil {
			return fmt.Errorf("failed to read and merge config files: %w", err)
		}
		m.StaticConfig = cnf
	}

	m.loadFlags(cmd)

	m.initializeLogging()

	return nil
}

// loadFlags applies the flags explicitly set on the command line, they take precedence over any config file.
func (m *MCPServerOptions) loadFlags(cmd *cobra.Command) {
	if cmd.Flag(flagLogLevel).Changed {
		m.StaticConfig.LogLevel = m.LogLevel
	}
	if cmd.Flag(flagPort).Changed {
		m.StaticConfig.Port = m.Port
	}
	if cmd.Flag(flagKubeconfig).Changed {
		m.StaticConfig.KubeConfig = m.Kubeconfig
	}
	if cmd.Flag(flagToolsets).Changed {
		m.StaticConfig.Toolsets = m.Toolsets
	}
	if cmd.Flag(flagReadOnly).Changed {
		m.StaticConfig.ReadOnly = m.ReadOnly
	}
	if cmd.Flag(flagEnabledTools).Changed {
		m.StaticConfig.EnabledTools = m.EnabledTools
	}
	if cmd.Flag(flagDisabledTools).Changed {
		m.StaticConfig.DisabledTools = m.DisabledTools
	}
	if cmd.Flag(flagStateless).Changed {
		m.StaticConfig.Stateless = m.Stateless
	}
	if cmd.Flag(flagDefaultTool).Changed {
		m.StaticConfig.CLI.DefaultTool = m.DefaultTool
	}
	if cmd.Flag(flagDefaultNamespace).Changed {
		m.StaticConfig.CLI.DefaultNamespace = m.DefaultNamespace
	}
	if cmd.Flag(flagTimeout).Changed {
		m.StaticConfig.CLI.Timeout = m.Timeout
	}
	if cmd.Flag(flagMaxConcurrent).Changed {
		m.StaticConfig.CLI.MaxConcurrent = m.MaxConcurrent
	}
	if cmd.Flag(flagKubectlPath).Changed {
		m.StaticConfig.CLI.KubectlPath = m.KubectlPath
	}
	if cmd.Flag(flagOCPath).Changed {
		m.StaticConfig.CLI.OCPath = m.OCPath
	}
}

func (m *MCPServerOptions) initializeLogging() {
	flagSet := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if m.StaticConfig.Port == "" {
		// disable klog output for stdio mode
		// this is needed to avoid klog writing to stderr and breaking the protocol
		_ = flagSet.Parse([]string{"-logtostderr=false", "-alsologtostderr=false", "-stderrthreshold=FATAL"})
		return
	}
	loggerOptions := []textlogger.ConfigOption{textlogger.Output(m.Out)}
	if m.StaticConfig.LogLevel >= 0 {
		loggerOptions = append(loggerOptions, textlogger.Verbosity(m.StaticConfig.LogLevel))
		_ = flagSet.Parse([]string{"--v", strconv.Itoa(m.StaticConfig.LogLevel)})
	}
	logger := textlogger.NewLogger(textlogger.NewConfig(loggerOptions...))
	klog.SetLoggerWithOptions(logger)
}

func (m *MCPServerOptions) Validate() error {
	return validate(m.StaticConfig)
}

func validate(staticConfig *config.StaticConfig) error {
	if err := toolsets.Validate(staticConfig.Toolsets); err != nil {
		return err
	}
	return staticConfig.Validate()
}

// reloadConfig re-reads the config files, re-applies the command line flags and hands the result to the server.
// A config that fails to load or validate is reported and the running configuration is kept.
func (m *MCPServerOptions) reloadConfig(mcpServer *mcp.Server) error {
	cnf, err := config.Read(m.ConfigPath, m.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to read and merge config files: %w", err)
	}
	previous := m.StaticConfig
	m.StaticConfig = cnf
	m.loadFlags(m.cmd)
	if err = validate(cnf); err != nil {
		m.StaticConfig = previous
		return fmt.Errorf("invalid configuration, keeping the previous one: %w", err)
	}
	return mcpServer.ReloadConfiguration(cnf)
}

func (m *MCPServerOptions) Run() error {
	klog.V(1).Info("Starting osc-mcp-server")
	klog.V(1).Infof(" - Config: %s", m.ConfigPath)
	klog.V(1).Infof(" - Config directory: %s", m.ConfigDir)
	klog.V(1).Infof(" - Toolsets: %s", strings.Join(m.StaticConfig.Toolsets, ", "))
	klog.V(1).Infof(" - Read-only mode: %t", m.StaticConfig.ReadOnly)
	klog.V(1).Infof(" - Stateless mode: %t", m.StaticConfig.Stateless)
	klog.V(1).Infof(" - Default tool: %s", m.StaticConfig.CLI.DefaultTool)
	klog.V(1).Infof(" - Default namespace: %s", m.StaticConfig.CLI.DefaultNamespace)
	klog.V(1).Infof(" - Timeout: %s", m.StaticConfig.CLI.Timeout)
	if len(m.StaticConfig.EnabledTools) > 0 {
		klog.V(1).Infof(" - Enabled tools: %s", strings.Join(m.StaticConfig.EnabledTools, ", "))
	}
	if len(m.StaticConfig.DisabledTools) > 0 {
		klog.V(1).Infof(" - Disabled tools: %s", strings.Join(m.StaticConfig.DisabledTools, ", "))
	}

	if m.Version {
		_, _ = fmt.Fprintf(m.Out, "%s\n", version.Version)
		return nil
	}

	tracerCleanup, err := telemetry.InitTracer(&m.StaticConfig.Telemetry, version.BinaryName, version.Version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer tracerCleanup()

	mcpServer, err := mcp.NewServer(mcp.Configuration{StaticConfig: m.StaticConfig})
	if err != nil {
		return fmt.Errorf("failed to initialize MCP server: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mcpServer.Shutdown(ctx); err != nil {
			klog.Errorf("Failed to shutdown MCP server: %v", err)
		}
	}()

	if m.ConfigPath != "" || m.ConfigDir != "" {
		configWatcher := watcher.NewConfig(m.ConfigPath, m.ConfigDir)
		configWatcher.Watch(func() error {
			return m.reloadConfig(mcpServer)
		})
		defer configWatcher.Close()
	}

	if m.StaticConfig.Port != "" {
		ctx := context.Background()
		return internalhttp.Serve(ctx, mcpServer, m.StaticConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := mcpServer.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
