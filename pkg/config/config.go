package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"k8s.io/klog/v2"

	"github.com/openshift/osc-mcp-server/pkg/cli"
)

// StaticConfig is the configuration for the server.
// It allows to configure server specific settings and tools to be enabled or disabled.
type StaticConfig struct {
	LogLevel int    `toml:"log_level,omitzero"`
	Port     string `toml:"port,omitempty"`
	// KubeConfig is exported to the CLI tools as KUBECONFIG when set.
	KubeConfig string `toml:"kubeconfig,omitempty"`
	// When true, expose only tools annotated with readOnlyHint=true
	ReadOnly      bool     `toml:"read_only,omitempty"`
	Toolsets      []string `toml:"toolsets,omitempty"`
	EnabledTools  []string `toml:"enabled_tools,omitempty"`
	DisabledTools []string `toml:"disabled_tools,omitempty"`
	// When true, the streamable HTTP transport keeps no session state and sends no list_changed notifications.
	Stateless          bool   `toml:"stateless,omitempty"`
	ServerInstructions string `toml:"server_instructions,omitempty"`
	// UserGuide is a markdown file exposed as an MCP resource when it exists.
	UserGuide string `toml:"user_guide,omitempty"`

	CLI       CLIConfig       `toml:"cli,omitempty"`
	Telemetry TelemetryConfig `toml:"telemetry,omitempty"`

	// Internal: the config.toml directory, to help resolve relative file paths
	configDirPath string
}

// CLIConfig controls how commands are built and executed.
type CLIConfig struct {
	// DefaultTool is used when a call omits the command parameter.
	DefaultTool string `toml:"default_tool,omitempty"`
	// DefaultNamespace is used when a call omits the namespace parameter.
	DefaultNamespace string `toml:"default_namespace,omitempty"`
	// Timeout bounds every command execution (e.g. "30s").
	Timeout time.Duration `toml:"timeout,omitempty"`
	// MaxConcurrent limits the number of commands running at once, 0 means unbounded.
	MaxConcurrent int64  `toml:"max_concurrent,omitzero"`
	KubectlPath   string `toml:"kubectl_path,omitempty"`
	OCPath        string `toml:"oc_path,omitempty"`
}

type ReadConfigOpt func(cfg *StaticConfig)

// WithDirPath returns a ReadConfigOpt that sets the config directory path.
func WithDirPath(path string) ReadConfigOpt {
	return func(cfg *StaticConfig) {
		cfg.configDirPath = path
	}
}

// Read layers the defaults, the main file and the drop-in files of configDir in lexical order.
// Either path may be empty. A missing drop-in directory is skipped.
func Read(configPath string, configDir string, opts ...ReadConfigOpt) (*StaticConfig, error) {
	cfg := Default()
	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path to config file: %w", err)
		}
		// relative tool and guide paths always resolve against the main file, also for drop-ins
		opts = append(opts, WithDirPath(filepath.Dir(absPath)))
		klog.V(2).Infof("Loading main config from: %s", configPath)
		if err = mergeConfigFile(cfg, configPath, opts...); err != nil {
			return nil, fmt.Errorf("failed to load main config file %s: %w", configPath, err)
		}
	}
	if configDir == "" {
		return cfg, nil
	}
	files, err := dropInFiles(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load drop-in configs from %s: %w", configDir, err)
	}
	klog.V(2).Infof("Loading %d drop-in config file(s) from: %s", len(files), configDir)
	for _, file := range files {
		if err = mergeConfigFile(cfg, file, opts...); err != nil {
			return nil, fmt.Errorf("failed to merge drop-in config %s: %w", file, err)
		}
	}
	return cfg, nil
}

// mergeConfigFile decodes filePath over cfg, keys absent from the file keep their current value.
func mergeConfigFile(cfg *StaticConfig, filePath string, opts ...ReadConfigOpt) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if _, err = toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode TOML: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return nil
}

func dropInFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		klog.V(2).Infof("Drop-in config directory does not exist, skipping: %s", dir)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to stat drop-in directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("drop-in config path is not a directory: %s", dir)
	}
	return getSortedConfigFiles(dir)
}

// getSortedConfigFiles lists the regular .toml files of dir, skipping dotfiles, in lexical order.
func getSortedConfigFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	slices.Sort(files)
	return files, nil
}

// ReadToml reads the toml data and returns the StaticConfig, with any opts applied
func ReadToml(configData []byte, opts ...ReadConfigOpt) (*StaticConfig, error) {
	config := Default()
	if _, err := toml.NewDecoder(bytes.NewReader(configData)).Decode(config); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(config)
	}
	return config, nil
}

// Validate checks the values that cannot be enforced by the TOML decoder.
func (c *StaticConfig) Validate() error {
	if c.CLI.DefaultTool != "" {
		if _, err := cli.ParseTool(c.CLI.DefaultTool); err != nil {
			return fmt.Errorf("invalid cli.default_tool: %w", err)
		}
	}
	if c.CLI.DefaultNamespace != "" {
		if _, err := cli.ParseNamespaceScope(c.CLI.DefaultNamespace, ""); err != nil {
			return fmt.Errorf("invalid cli.default_namespace: %w", err)
		}
	}
	if c.CLI.Timeout < 0 {
		return fmt.Errorf("invalid cli.timeout %s: must not be negative", c.CLI.Timeout)
	}
	if c.CLI.MaxConcurrent < 0 {
		return fmt.Errorf("invalid cli.max_concurrent %d: must not be negative", c.CLI.MaxConcurrent)
	}
	return nil
}

// ResolvePath makes path absolute relative to the directory of the main config file.
// Paths are returned unchanged when there is no config file or they are already absolute.
func (c *StaticConfig) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.configDirPath == "" {
		return path
	}
	return filepath.Join(c.configDirPath, path)
}

// ToolPaths returns the configured binary overrides, resolved with ResolvePath.
func (c *StaticConfig) ToolPaths() map[cli.Tool]string {
	paths := map[cli.Tool]string{}
	if c.CLI.KubectlPath != "" {
		paths[cli.Kubectl] = c.ResolvePath(c.CLI.KubectlPath)
	}
	if c.CLI.OCPath != "" {
		paths[cli.OC] = c.ResolvePath(c.CLI.OCPath)
	}
	return paths
}
