package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/openshift/osc-mcp-server/pkg/cli"
	"github.com/openshift/osc-mcp-server/pkg/config"
)

type Config struct {
	TracerName     string
	ServiceName    string
	ServiceVersion string
	// Telemetry enables OTLP export when set, OTEL_* env vars are used otherwise.
	Telemetry *config.TelemetryConfig
}

// Metrics is the server facing view of the stats collector: MCP tool calls, the kubectl/oc
// executions they trigger and HTTP requests. It is handed to the executor as its cli.Recorder.
type Metrics struct {
	stats *OtelStatsCollector
}

var _ cli.Recorder = (*Metrics)(nil)

func New(cfg Config) (*Metrics, error) {
	stats, err := NewOtelStatsCollectorWithConfig(CollectorConfig{
		MeterName:      cfg.TracerName,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Telemetry:      cfg.Telemetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stats collector: %w", err)
	}
	klog.V(1).Info("Stats collector enabled")
	return &Metrics{stats: stats}, nil
}

// RecordToolCall counts a catalog tool call, err is set for protocol errors and IsError results alike.
func (m *Metrics) RecordToolCall(ctx context.Context, operation string, duration time.Duration, err error) {
	m.stats.RecordToolCall(ctx, operation, duration, err)
}

func (m *Metrics) RecordCommand(ctx context.Context, tool cli.Tool, outcome cli.Outcome, duration time.Duration) {
	m.stats.RecordCommand(ctx, string(tool), string(outcome), duration)
}

// RecordHTTPRequest counts a request against its registered route, never the raw path.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	m.stats.RecordHTTPRequest(ctx, method, route, statusCode, duration)
}

// GetStats backs the /stats endpoint.
func (m *Metrics) GetStats() *Statistics {
	return m.stats.GetStats()
}

// Shutdown flushes pending OTLP exports.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.stats.Shutdown(ctx)
}

func (m *Metrics) PrometheusHandler() http.Handler {
	return m.stats.PrometheusHandler()
}
