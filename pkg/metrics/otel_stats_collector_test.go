package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/openshift/osc-mcp-server/pkg/config"
)

type OtelStatsCollectorSuite struct {
	suite.Suite
	collector *OtelStatsCollector
}

func (s *OtelStatsCollectorSuite) SetupTest() {
	collector, err := NewOtelStatsCollectorWithConfig(CollectorConfig{
		MeterName:      "test-meter",
		ServiceName:    "osc-mcp-server",
		ServiceVersion: "1.2.3",
	})
	s.Require().NoError(err)
	s.collector = collector
}

func (s *OtelStatsCollectorSuite) TearDownTest() {
	_ = s.collector.Shutdown(context.Background())
}

// collect returns the named metric from the in-memory reader.
func (s *OtelStatsCollectorSuite) collect(name string) metricdata.Metrics {
	var rm metricdata.ResourceMetrics
	s.Require().NoError(s.collector.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	s.FailNow("metric not collected", name)
	return metricdata.Metrics{}
}

func (s *OtelStatsCollectorSuite) TestRecordToolCall() {
	ctx := context.Background()
	s.collector.RecordToolCall(ctx, "get_pods", 100*time.Millisecond, nil)
	s.collector.RecordToolCall(ctx, "get_pods", 200*time.Millisecond, nil)
	s.collector.RecordToolCall(ctx, "get_pod_logs", 50*time.Millisecond, errors.New("exit status 1"))

	stats := s.collector.GetStats()
	s.Run("counts calls by operation", func() {
		s.Equal(int64(3), stats.TotalToolCalls)
		s.Equal(map[string]int64{"get_pods": 2, "get_pod_logs": 1}, stats.ToolCallsByName)
	})
	s.Run("counts errors by operation", func() {
		s.Equal(int64(1), stats.ToolCallErrors)
		s.Equal(map[string]int64{"get_pod_logs": 1}, stats.ToolErrorsByName)
	})
	s.Run("records a duration per operation", func() {
		histogram, ok := s.collect(metricToolDuration).Data.(metricdata.Histogram[float64])
		s.Require().True(ok)
		s.Len(histogram.DataPoints, 2)
		for _, dp := range histogram.DataPoints {
			s.Positive(dp.Sum)
		}
	})
}

func (s *OtelStatsCollectorSuite) TestRecordCommand() {
	ctx := context.Background()
	s.collector.RecordCommand(ctx, "kubectl", "ok", 120*time.Millisecond)
	s.collector.RecordCommand(ctx, "kubectl", "failed", 80*time.Millisecond)
	s.collector.RecordCommand(ctx, "oc", "ok", 90*time.Millisecond)
	s.collector.RecordCommand(ctx, "oc", "timeout", 30*time.Second)

	stats := s.collector.GetStats()
	s.Run("counts every execution", func() {
		s.Equal(int64(4), stats.TotalCommands)
	})
	s.Run("aggregates by tool", func() {
		s.Equal(map[string]int64{"kubectl": 2, "oc": 2}, stats.CommandsByTool)
	})
	s.Run("aggregates by outcome", func() {
		s.Equal(map[string]int64{"ok": 2, "failed": 1, "timeout": 1}, stats.CommandsByOutcome)
		s.Equal(int64(1), stats.CommandTimeouts)
	})
	s.Run("records a duration per tool and outcome", func() {
		histogram, ok := s.collect(metricCommandDuration).Data.(metricdata.Histogram[float64])
		s.Require().True(ok)
		s.Len(histogram.DataPoints, 4)
	})
}

func (s *OtelStatsCollectorSuite) TestRecordHTTPRequest() {
	ctx := context.Background()
	s.collector.RecordHTTPRequest(ctx, "POST", "/mcp", 200, 50*time.Millisecond)
	s.collector.RecordHTTPRequest(ctx, "POST", "/message", 202, 10*time.Millisecond)
	s.collector.RecordHTTPRequest(ctx, "GET", "unmatched", 404, time.Millisecond)
	s.collector.RecordHTTPRequest(ctx, "POST", "/mcp", 500, 200*time.Millisecond)
	s.collector.RecordHTTPRequest(ctx, "GET", "/sse", 101, time.Millisecond)

	stats := s.collector.GetStats()
	s.Equal(int64(5), stats.TotalHTTPRequests)
	s.Equal(map[string]int64{"2xx": 2, "4xx": 1, "5xx": 1, "other": 1}, stats.HTTPRequestsByStatus)
	s.Equal(map[string]int64{"/mcp": 2, "/message": 1, "unmatched": 1, "/sse": 1}, stats.HTTPRequestsByPath)
	s.Equal(map[string]int64{"GET": 2, "POST": 3}, stats.HTTPRequestsByMethod)
}

func (s *OtelStatsCollectorSuite) TestGetStats() {
	stats := s.collector.GetStats()
	s.GreaterOrEqual(stats.UptimeSeconds, int64(0))
	s.Positive(stats.StartTime)
	s.Run("maps are initialized so /stats never renders null", func() {
		s.NotNil(stats.ToolCallsByName)
		s.NotNil(stats.ToolErrorsByName)
		s.NotNil(stats.CommandsByTool)
		s.NotNil(stats.CommandsByOutcome)
		s.NotNil(stats.HTTPRequestsByPath)
		s.NotNil(stats.HTTPRequestsByStatus)
		s.NotNil(stats.HTTPRequestsByMethod)
	})
}

func (s *OtelStatsCollectorSuite) TestServerInfoGauge() {
	gauge, ok := s.collect(metricServerInfo).Data.(metricdata.Gauge[int64])
	s.Require().True(ok)
	s.Require().Len(gauge.DataPoints, 1)
	dp := gauge.DataPoints[0]
	s.Equal(int64(1), dp.Value)
	version, _ := dp.Attributes.Value("version")
	s.Equal("1.2.3", version.AsString())
	goVersion, _ := dp.Attributes.Value("go_version")
	s.Equal(runtime.Version(), goVersion.AsString())
}

func (s *OtelStatsCollectorSuite) TestPrometheusHandler() {
	ctx := context.Background()
	s.collector.RecordToolCall(ctx, "get_runtimeclasses", 100*time.Millisecond, nil)
	s.collector.RecordCommand(ctx, "oc", "not_found", 0)
	s.collector.RecordHTTPRequest(ctx, "POST", "/mcp", 200, 50*time.Millisecond)

	rec := httptest.NewRecorder()
	s.collector.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, "osc_mcp_tool_calls")
	s.Contains(body, `tool_name="get_runtimeclasses"`)
	s.Contains(body, "osc_mcp_command_executions")
	s.Contains(body, `cli_tool="oc"`)
	s.Contains(body, `cli_outcome="not_found"`)
	s.Contains(body, "osc_mcp_http_requests")
	s.Contains(body, "osc_mcp_server_info")
}

func (s *OtelStatsCollectorSuite) TestCreateMetricsExporter() {
	s.Run("no endpoint keeps metrics in memory", func() {
		s.T().Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		exporter, err := createMetricsExporter(context.Background(), nil)
		s.NoError(err)
		s.Nil(exporter)
	})
	s.Run("OTEL_METRICS_EXPORTER=none wins over configuration", func() {
		s.T().Setenv("OTEL_METRICS_EXPORTER", "none")
		exporter, err := createMetricsExporter(context.Background(), &config.TelemetryConfig{Endpoint: "http://localhost:4317"})
		s.NoError(err)
		s.Nil(exporter)
	})
}

func TestOtelStatsCollector(t *testing.T) {
	suite.Run(t, new(OtelStatsCollectorSuite))
}
