package telemetry

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"k8s.io/klog/v2"

	"github.com/openshift/osc-mcp-server/pkg/config"
)

var tracingEnabled atomic.Bool

// Enabled reports whether a tracer provider with an exporter is installed.
// Middleware checks it before building spans.
func Enabled() bool {
	return tracingEnabled.Load()
}

// samplerRatio parses the ratio argument, falling back to 1.0 when it is missing or outside [0, 1].
func samplerRatio(arg string) float64 {
	if arg == "" {
		return 1.0
	}
	parsed, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		klog.V(1).Infof("Invalid traces sampler argument '%s', using 1.0: %v", arg, err)
		return 1.0
	}
	if parsed < 0.0 || parsed > 1.0 {
		klog.V(1).Infof("Traces sampler argument %f out of range [0.0, 1.0], using 1.0", parsed)
		return 1.0
	}
	return parsed
}

// newSampler maps an OTEL_TRACES_SAMPLER style name to a sampler.
// Unknown and empty names yield ParentBased(AlwaysSample).
func newSampler(samplerType, samplerArg string) trace.Sampler {
	ratio := samplerRatio(samplerArg)
	switch samplerType {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(ratio)
	case "parentbased_always_on", "":
		return trace.ParentBased(trace.AlwaysSample())
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(ratio))
	default:
		klog.V(1).Infof("Unknown traces sampler '%s', using ParentBased(AlwaysSample)", samplerType)
		return trace.ParentBased(trace.AlwaysSample())
	}
}

// newExporter creates the OTLP span exporter for the configured protocol ("grpc" by default).
func newExporter(ctx context.Context, cfg *config.TelemetryConfig) (*otlptrace.Exporter, error) {
	endpoint := cfg.GetEndpoint()
	switch protocol := strings.ToLower(cfg.GetProtocol()); protocol {
	case "http/protobuf", "http":
		klog.V(2).Infof("Using HTTP/protobuf OTLP exporter for %s", endpoint)
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	case "grpc", "":
	default:
		klog.V(1).Infof("Unknown OTLP protocol '%s', defaulting to gRPC", protocol)
	}
	klog.V(2).Infof("Using gRPC OTLP exporter for %s", endpoint)
	return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(endpoint))
}

// InitTracer installs the global tracer provider and propagators.
// Tracing stays off unless cfg resolves an endpoint (OTEL_* variables override cfg).
// Setup failures are logged and leave tracing disabled, the returned cleanup is always safe to call.
func InitTracer(cfg *config.TelemetryConfig, serviceName, serviceVersion string) (func(), error) {
	noop := func() {}
	if cfg == nil {
		cfg = &config.TelemetryConfig{}
	}
	if !cfg.IsEnabled() {
		klog.V(2).Info("Telemetry endpoint not configured, tracing disabled")
		return noop, nil
	}

	ctx := context.Background()
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		klog.V(1).Infof("Failed to create OTLP exporter, tracing disabled: %v", err)
		return noop, nil
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		klog.V(1).Infof("Failed to create resource, tracing disabled: %v", err)
		return noop, nil
	}

	tp := trace.NewTracerProvider(
		trace.WithSpanProcessor(trace.NewBatchSpanProcessor(
			exporter,
			trace.WithBatchTimeout(5*time.Second),
			trace.WithMaxQueueSize(2048),
			trace.WithMaxExportBatchSize(512),
		)),
		trace.WithResource(res),
		trace.WithSampler(newSampler(cfg.GetTracesSampler(), cfg.GetTracesSamplerArg())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracingEnabled.Store(true)
	klog.V(1).Info("OpenTelemetry tracing initialized")

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		tracingEnabled.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			klog.Errorf("Failed to shutdown tracer provider: %v", err)
		}
	}, nil
}
