package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"k8s.io/klog/v2"

	"github.com/openshift/osc-mcp-server/pkg/config"
)

// Statistics is the JSON document served on /stats.
type Statistics struct {
	TotalToolCalls   int64            `json:"total_tool_calls"`
	ToolCallErrors   int64            `json:"tool_call_errors"`
	ToolCallsByName  map[string]int64 `json:"tool_calls_by_name"`
	ToolErrorsByName map[string]int64 `json:"tool_errors_by_name"`

	// kubectl/oc child processes, outcome is one of ok, failed, timeout, canceled, not_found
	TotalCommands     int64            `json:"total_commands"`
	CommandsByTool    map[string]int64 `json:"commands_by_tool"`
	CommandsByOutcome map[string]int64 `json:"commands_by_outcome"`
	CommandTimeouts   int64            `json:"command_timeouts"`

	TotalHTTPRequests    int64            `json:"total_http_requests"`
	HTTPRequestsByPath   map[string]int64 `json:"http_requests_by_path"`
	HTTPRequestsByStatus map[string]int64 `json:"http_requests_by_status"`
	HTTPRequestsByMethod map[string]int64 `json:"http_requests_by_method"`

	UptimeSeconds int64 `json:"uptime_seconds"`
	StartTime     int64 `json:"start_time_unix"`
}

func newStatistics(start time.Time) *Statistics {
	return &Statistics{
		ToolCallsByName:      map[string]int64{},
		ToolErrorsByName:     map[string]int64{},
		CommandsByTool:       map[string]int64{},
		CommandsByOutcome:    map[string]int64{},
		HTTPRequestsByPath:   map[string]int64{},
		HTTPRequestsByStatus: map[string]int64{},
		HTTPRequestsByMethod: map[string]int64{},
		UptimeSeconds:        int64(time.Since(start).Seconds()),
		StartTime:            start.Unix(),
	}
}

// Instrument names, exported to Prometheus as osc_mcp_tool_calls_total and so on.
const (
	metricToolCalls       = "osc_mcp.tool.calls"
	metricToolErrors      = "osc_mcp.tool.errors"
	metricToolDuration    = "osc_mcp.tool.duration"
	metricCommands        = "osc_mcp.command.executions"
	metricCommandDuration = "osc_mcp.command.duration"
	metricHTTPRequests    = "osc_mcp.http.requests"
	metricServerInfo      = "osc_mcp.server.info"
)

// Attribute keys shared by the instruments and the /stats aggregation.
const (
	attrToolName    = attribute.Key("tool.name")
	attrCLITool     = attribute.Key("cli.tool")
	attrCLIOutcome  = attribute.Key("cli.outcome")
	attrHTTPMethod  = attribute.Key("http.request.method")
	attrHTTPRoute   = attribute.Key("url.path")
	attrStatusClass = attribute.Key("http.response.status_class")
)

// OtelStatsCollector owns the meter provider. A manual reader backs /stats, a Prometheus registry
// backs /metrics and an optional periodic reader pushes to OTLP.
type OtelStatsCollector struct {
	provider          *sdkmetric.MeterProvider
	reader            *sdkmetric.ManualReader
	prometheusHandler http.Handler
	startTime         time.Time

	toolCalls       metric.Int64Counter
	toolErrors      metric.Int64Counter
	toolDuration    metric.Float64Histogram
	commands        metric.Int64Counter
	commandDuration metric.Float64Histogram
	httpRequests    metric.Int64Counter
	serverInfo      metric.Int64Gauge
}

type CollectorConfig struct {
	MeterName      string
	ServiceName    string
	ServiceVersion string
	Telemetry      *config.TelemetryConfig
}

// createMetricsExporter returns the OTLP exporter for cfg, or nil when no endpoint is known or
// OTEL_METRICS_EXPORTER=none. A nil cfg falls back to the OTEL_* environment.
func createMetricsExporter(ctx context.Context, cfg *config.TelemetryConfig) (sdkmetric.Exporter, error) {
	if strings.EqualFold(os.Getenv("OTEL_METRICS_EXPORTER"), "none") {
		klog.V(2).Info("OTLP metrics export disabled via OTEL_METRICS_EXPORTER=none")
		return nil, nil
	}
	if cfg == nil {
		cfg = &config.TelemetryConfig{}
	}
	if !cfg.IsEnabled() {
		return nil, nil
	}
	endpoint := cfg.GetEndpoint()
	switch protocol := strings.ToLower(cfg.GetProtocol()); protocol {
	case "http/protobuf", "http":
		klog.V(2).Infof("Using HTTP/protobuf OTLP metrics exporter for %s", endpoint)
		return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
	case "grpc", "":
	default:
		klog.V(1).Infof("Unknown OTLP protocol '%s' for metrics, defaulting to gRPC", protocol)
	}
	klog.V(2).Infof("Using gRPC OTLP metrics exporter for %s", endpoint)
	return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(endpoint))
}

func NewOtelStatsCollector(meterName string) (*OtelStatsCollector, error) {
	return NewOtelStatsCollectorWithConfig(CollectorConfig{
		MeterName:      meterName,
		ServiceName:    "osc-mcp-server",
		ServiceVersion: "unknown",
	})
}

func NewOtelStatsCollectorWithConfig(cfg CollectorConfig) (*OtelStatsCollector, error) {
	ctx := context.Background()

	registry := promclient.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	c := &OtelStatsCollector{
		reader:            sdkmetric.NewManualReader(),
		prometheusHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		startTime:         time.Now(),
	}
	opts := []sdkmetric.Option{sdkmetric.WithReader(c.reader), sdkmetric.WithReader(promExporter)}

	switch exporter, err := createMetricsExporter(ctx, cfg.Telemetry); {
	case err != nil:
		klog.Warningf("Failed to create OTLP metrics exporter, OTLP export disabled: %v", err)
	case exporter != nil:
		opts = append(opts,
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
			sdkmetric.WithResource(serviceResource(cfg)),
		)
		klog.V(1).Info("OTLP metrics export enabled")
	}

	c.provider = sdkmetric.NewMeterProvider(opts...)
	if err = c.createInstruments(c.provider.Meter(cfg.MeterName)); err != nil {
		return nil, err
	}
	c.serverInfo.Record(ctx, 1, metric.WithAttributes(
		attribute.String("version", cfg.ServiceVersion),
		attribute.String("go_version", runtime.Version()),
	))
	return c, nil
}

// serviceResource names the exporting service, adding the namespace the operator deployed it to.
func serviceResource(cfg CollectorConfig) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		attrs = append(attrs, semconv.K8SNamespaceName(ns))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func (c *OtelStatsCollector) createInstruments(meter metric.Meter) (err error) {
	counter := func(name, description string) metric.Int64Counter {
		var ctr metric.Int64Counter
		if err == nil {
			ctr, err = meter.Int64Counter(name, metric.WithDescription(description))
		}
		return ctr
	}
	seconds := func(name, description string) metric.Float64Histogram {
		var h metric.Float64Histogram
		if err == nil {
			h, err = meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit("s"))
		}
		return h
	}
	c.toolCalls = counter(metricToolCalls, "MCP tool calls by catalog operation")
	c.toolErrors = counter(metricToolErrors, "MCP tool calls that failed or returned an error result")
	c.toolDuration = seconds(metricToolDuration, "Duration of MCP tool calls")
	c.commands = counter(metricCommands, "kubectl/oc executions by tool and outcome")
	c.commandDuration = seconds(metricCommandDuration, "Duration of kubectl/oc executions")
	c.httpRequests = counter(metricHTTPRequests, "HTTP requests by route")
	if err == nil {
		c.serverInfo, err = meter.Int64Gauge(metricServerInfo, metric.WithDescription("OSC MCP server version information"))
	}
	if err != nil {
		return fmt.Errorf("failed to create metric instruments: %w", err)
	}
	return nil
}

func (c *OtelStatsCollector) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}

func (c *OtelStatsCollector) PrometheusHandler() http.Handler {
	return c.prometheusHandler
}

func (c *OtelStatsCollector) RecordToolCall(ctx context.Context, name string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attrToolName.String(name))
	c.toolCalls.Add(ctx, 1, attrs)
	c.toolDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		c.toolErrors.Add(ctx, 1, attrs)
	}
}

func (c *OtelStatsCollector) RecordCommand(ctx context.Context, tool string, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attrCLITool.String(tool), attrCLIOutcome.String(outcome))
	c.commands.Add(ctx, 1, attrs)
	c.commandDuration.Record(ctx, duration.Seconds(), attrs)
}

func (c *OtelStatsCollector) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, _ time.Duration) {
	c.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attrHTTPMethod.String(method),
		attrHTTPRoute.String(route),
		attrStatusClass.String(statusClass(statusCode)),
	))
}

// statusClass buckets a status code as 2xx to 5xx, anything else is "other".
func statusClass(code int) string {
	if code >= 200 && code < 600 {
		return fmt.Sprintf("%dxx", code/100)
	}
	return "other"
}

// GetStats folds the manual reader's current data points into a Statistics snapshot.
func (c *OtelStatsCollector) GetStats() *Statistics {
	stats := newStatistics(c.startTime)
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(context.Background(), &rm); err != nil {
		klog.V(1).Infof("Failed to collect metrics for stats endpoint: %v", err)
		return stats
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				stats.add(m.Name, dp)
			}
		}
	}
	return stats
}

func (s *Statistics) add(name string, dp metricdata.DataPoint[int64]) {
	attr := func(key attribute.Key) string {
		v, _ := dp.Attributes.Value(key)
		return v.AsString()
	}
	switch name {
	case metricToolCalls:
		s.TotalToolCalls += dp.Value
		s.ToolCallsByName[attr(attrToolName)] += dp.Value
	case metricToolErrors:
		s.ToolCallErrors += dp.Value
		s.ToolErrorsByName[attr(attrToolName)] += dp.Value
	case metricCommands:
		outcome := attr(attrCLIOutcome)
		s.TotalCommands += dp.Value
		s.CommandsByTool[attr(attrCLITool)] += dp.Value
		s.CommandsByOutcome[outcome] += dp.Value
		if outcome == "timeout" {
			s.CommandTimeouts += dp.Value
		}
	case metricHTTPRequests:
		s.TotalHTTPRequests += dp.Value
		s.HTTPRequestsByMethod[attr(attrHTTPMethod)] += dp.Value
		s.HTTPRequestsByPath[attr(attrHTTPRoute)] += dp.Value
		s.HTTPRequestsByStatus[attr(attrStatusClass)] += dp.Value
	}
}
