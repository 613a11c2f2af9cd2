package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/openshift/osc-mcp-server/pkg/mcp"
	"github.com/openshift/osc-mcp-server/pkg/toolsets"
)

func testData(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

type CmdSuite struct {
	suite.Suite
}

// execute runs the command with args and returns what it wrote to Out. Passing --port keeps klog on.
func (s *CmdSuite) execute(args ...string) (string, error) {
	out := &bytes.Buffer{}
	rootCmd := NewMCPServer(genericiooptions.IOStreams{In: &bytes.Buffer{}, Out: out, ErrOut: io.Discard})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// banner runs --version in HTTP mode and returns the startup summary.
func (s *CmdSuite) banner(args ...string) string {
	out, err := s.execute(append([]string{"--version", "--port=1337", "--log-level=1"}, args...)...)
	s.Require().NoError(err)
	return out
}

func (s *CmdSuite) writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *CmdSuite) TestVersion() {
	out, err := s.execute("--version")
	s.Require().NoError(err)
	s.Equal("0.0.0\n", out, "stdio mode prints nothing but the version")
}

func (s *CmdSuite) TestDefaults() {
	out := s.banner()
	for _, line := range []string{
		`" - Config: "`,
		" - Toolsets: osc",
		" - Read-only mode: false",
		" - Stateless mode: false",
		" - Default tool: kubectl",
		" - Default namespace: default",
		" - Timeout: 30s",
	} {
		s.Contains(out, line)
	}
	s.Contains(out, "Starting osc-mcp-server", "HTTP mode logs with klog")
}

func (s *CmdSuite) TestFlags() {
	out := s.banner("--read-only", "--stateless", "--default-tool=oc", "--default-namespace=openshift-sandboxed-containers-operator",
		"--timeout=5s", "--enabled-tools=get_pods,get_kataconfig_status", "--disabled-tools=get_pods")
	for _, line := range []string{
		" - Read-only mode: true",
		" - Stateless mode: true",
		" - Default tool: oc",
		" - Default namespace: openshift-sandboxed-containers-operator",
		" - Timeout: 5s",
		" - Enabled tools: get_pods, get_kataconfig_status",
		" - Disabled tools: get_pods",
	} {
		s.Contains(out, line)
	}
}

func (s *CmdSuite) TestInvalidFlags() {
	for args, expected := range map[string]string{
		"--default-tool=podman":                         "invalid cli.default_tool",
		"--default-namespace=Not_A_Namespace":           "invalid cli.default_namespace",
		"--timeout=-1s":                                 "invalid cli.timeout",
		"--toolsets=osc,core":                           "invalid toolset name: core, valid names are: osc",
		"--config=invalid-path-to-config.toml":          "failed to read and merge config files: failed to load main config file invalid-path-to-config.toml",
		"--config-dir=" + testData("empty-config.toml"): "drop-in config path is not a directory",
	} {
		s.Run(args, func() {
			_, err := s.execute("--version", args)
			s.ErrorContains(err, expected)
		})
	}
}

func (s *CmdSuite) TestHelpListsToolsets() {
	// cobra writes --help straight to stdout
	stdout := os.Stdout
	r, w, err := os.Pipe()
	s.Require().NoError(err)
	os.Stdout = w
	_, err = s.execute("--help")
	_ = w.Close()
	os.Stdout = stdout
	help, _ := io.ReadAll(r)
	s.Require().NoError(err)
	s.Contains(string(help), "available toolsets: "+strings.Join(toolsets.ToolsetNames(), ", "))
}

func (s *CmdSuite) TestConfigFile() {
	s.Run("values from --config", func() {
		out := s.banner("--config", testData("valid-config.toml"))
		s.Regexp(`" - Config:[^"]+valid-config\.toml"`, out)
		s.Contains(out, " - Read-only mode: true")
		s.Contains(out, " - Default tool: oc")
		s.Contains(out, " - Default namespace: openshift-sandboxed-containers-operator")
		s.Contains(out, " - Timeout: 45s")
		s.Contains(out, " - Disabled tools: describe_secret")
	})
	s.Run("flags take precedence over --config", func() {
		out := s.banner("--read-only=false", "--default-tool=kubectl", "--timeout=5s", "--config", testData("valid-config.toml"))
		s.Contains(out, " - Read-only mode: false")
		s.Contains(out, " - Default tool: kubectl")
		s.Contains(out, " - Timeout: 5s")
	})
}

func (s *CmdSuite) TestConfigDir() {
	s.Run("drop-ins merge over --config", func() {
		dir := s.T().TempDir()
		main := s.writeFile(dir, "config.toml", `
			read_only = false
			[cli]
			default_namespace = "sandbox"
		`)
		dropIns := filepath.Join(dir, "conf.d")
		s.Require().NoError(os.Mkdir(dropIns, 0o755))
		s.writeFile(dropIns, "10-kata.toml", `
			read_only = true
			[cli]
			default_tool = "oc"
		`)
		out := s.banner("--config", main, "--config-dir", dropIns)
		s.Contains(out, "Default namespace: sandbox")
		s.Contains(out, "Read-only mode: true")
		s.Contains(out, "Default tool: oc")
	})
	s.Run("flags take precedence over drop-ins", func() {
		dropIns := s.T().TempDir()
		s.writeFile(dropIns, "10-kata.toml", `stateless = true`)
		s.Contains(s.banner("--stateless=false", "--config-dir", dropIns), "Stateless mode: false")
	})
	s.Run("missing directory is skipped", func() {
		s.Contains(s.banner("--config-dir", "/nonexistent/path/to/config-dir"), "Default tool: kubectl")
	})
}

func (s *CmdSuite) TestReloadConfig() {
	tempDir := s.T().TempDir()
	configPath := filepath.Join(tempDir, "config.toml")
	s.Require().NoError(os.WriteFile(configPath, []byte(`
		[cli]
		default_tool = "oc"
	`), 0644))

	o := NewMCPServerOptions(genericiooptions.IOStreams{In: &bytes.Buffer{}, Out: io.Discard, ErrOut: io.Discard})
	rootCmd := newCommand(o)
	s.Require().NoError(rootCmd.ParseFlags([]string{"--config", configPath, "--read-only"}))
	s.Require().NoError(o.Complete(rootCmd))
	s.Require().NoError(o.Validate())
	mcpServer, err := mcp.NewServer(mcp.Configuration{StaticConfig: o.StaticConfig})
	s.Require().NoError(err)
	s.Contains(mcpServer.GetEnabledTools(), "get_pods")

	s.Run("valid change is applied and flags are kept", func() {
		s.Require().NoError(os.WriteFile(configPath, []byte(`
			disabled_tools = ["get_pods"]
			[cli]
			default_namespace = "sandbox"
		`), 0644))
		s.Require().NoError(o.reloadConfig(mcpServer))
		s.Equal("sandbox", o.StaticConfig.CLI.DefaultNamespace)
		s.True(o.StaticConfig.ReadOnly, "--read-only still applies")
		s.NotContains(mcpServer.GetEnabledTools(), "get_pods")
	})
	s.Run("invalid change is rejected", func() {
		s.Require().NoError(os.WriteFile(configPath, []byte(`
			[cli]
			default_tool = "podman"
		`), 0644))
		err := o.reloadConfig(mcpServer)
		s.Require().Error(err)
		s.Contains(err.Error(), "keeping the previous one")
		s.Equal("sandbox", o.StaticConfig.CLI.DefaultNamespace)
		s.NotContains(mcpServer.GetEnabledTools(), "get_pods")
	})
	s.Run("unreadable config is rejected", func() {
		s.Require().NoError(os.WriteFile(configPath, []byte(`read_only = [`), 0644))
		s.Error(o.reloadConfig(mcpServer))
		s.Equal("sandbox", o.StaticConfig.CLI.DefaultNamespace)
	})
}

func TestCmd(t *testing.T) {
	suite.Run(t, new(CmdSuite))
}
