package config

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"github.com/openshift/osc-mcp-server/pkg/cli"
)

const DefaultUserGuide = "/tmp/user-guide.txt"

// BaseDefault returns the upstream base defaults before any
// build-time overrides are applied.
func BaseDefault() *StaticConfig {
	return &StaticConfig{
		Toolsets:  []string{"osc"},
		UserGuide: DefaultUserGuide,
		CLI: CLIConfig{
			DefaultTool:      string(cli.Kubectl),
			DefaultNamespace: cli.DefaultNamespace,
			Timeout:          cli.DefaultTimeout,
		},
	}
}

// Default returns the effective default configuration, with any
// downstream build-time overrides (from defaultOverrides) merged
// on top of the base defaults.
func Default() *StaticConfig {
	base := BaseDefault()
	overrides := defaultOverrides()
	merged := mergeConfig(*base, overrides)
	return &merged
}

// HasDefaultOverrides reports whether this build carries downstream default overrides.
func HasDefaultOverrides() bool {
	var buf bytes.Buffer
	overrides := defaultOverrides()
	if err := toml.NewEncoder(&buf).Encode(overrides); err != nil {
		return false
	}
	return len(bytes.TrimSpace(buf.Bytes())) > 0
}

// mergeConfig applies non-zero values from override to base using TOML serialization
// and returns the merged StaticConfig.
// In case of any error during marshalling or unmarshalling, it returns the base config unchanged.
func mergeConfig(base, override StaticConfig) StaticConfig {
	var overrideBuffer bytes.Buffer
	if err := toml.NewEncoder(&overrideBuffer).Encode(override); err != nil {
		return base
	}

	_, _ = toml.NewDecoder(&overrideBuffer).Decode(&base)
	return base
}
