package config

import (
	"os"
	"strconv"
)

// TelemetryConfig holds the OpenTelemetry exporter settings.
// Standard OTEL_* environment variables take precedence over the TOML values.
type TelemetryConfig struct {
	// Enabled forces telemetry off when false. When unset, telemetry is on whenever an endpoint is known.
	Enabled *bool `toml:"enabled,omitempty"`
	// Endpoint is the OTLP endpoint URL (e.g. "http://localhost:4317"), OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string `toml:"endpoint,omitempty"`
	// Protocol is "grpc" (default) or "http/protobuf", OTEL_EXPORTER_OTLP_PROTOCOL.
	Protocol string `toml:"protocol,omitempty"`
	// TracesSampler is one of "always_on", "always_off", "traceidratio",
	// "parentbased_always_on" or "parentbased_traceidratio", OTEL_TRACES_SAMPLER.
	TracesSampler string `toml:"traces_sampler,omitempty"`
	// TracesSamplerArg is the ratio for ratio-based samplers, OTEL_TRACES_SAMPLER_ARG.
	TracesSamplerArg *float64 `toml:"traces_sampler_arg,omitempty"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsEnabled reports whether spans and metrics should be exported.
func (c *TelemetryConfig) IsEnabled() bool {
	if c.Enabled != nil && !*c.Enabled {
		return false
	}
	return c.GetEndpoint() != ""
}

func (c *TelemetryConfig) GetEndpoint() string {
	return envOr("OTEL_EXPORTER_OTLP_ENDPOINT", c.Endpoint)
}

func (c *TelemetryConfig) GetProtocol() string {
	return envOr("OTEL_EXPORTER_OTLP_PROTOCOL", c.Protocol)
}

func (c *TelemetryConfig) GetTracesSampler() string {
	return envOr("OTEL_TRACES_SAMPLER", c.TracesSampler)
}

// GetTracesSamplerArg returns the sampler argument as a string, empty when unset.
// A configured 0.0 is returned as "0".
func (c *TelemetryConfig) GetTracesSamplerArg() string {
	fallback := ""
	if c.TracesSamplerArg != nil {
		fallback = strconv.FormatFloat(*c.TracesSamplerArg, 'f', -1, 64)
	}
	return envOr("OTEL_TRACES_SAMPLER_ARG", fallback)
}
