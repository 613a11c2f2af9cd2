package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"

	"github.com/openshift/osc-mcp-server/pkg/cli"
	"github.com/openshift/osc-mcp-server/pkg/metrics"
	"github.com/openshift/osc-mcp-server/pkg/telemetry"
)

const tracerName = "osc-mcp-server/http"

// maxToolCallPeek bounds how much of a JSON-RPC body is decoded to label a span.
const maxToolCallPeek = 64 << 10

// Span attributes describing the CLI invocation a tools/call request asks for.
const (
	attrMCPMethod    = attribute.Key("mcp.method.name")
	attrCLIOperation = attribute.Key("cli.operation")
	attrCLITool      = attribute.Key("cli.tool")
)

// instrument wraps the mux with request metrics, V(5) access logging and, when telemetry is enabled,
// a server span per request. Health checks are counted but neither traced nor logged.
func instrument(next http.Handler, m *metrics.Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := httpRoute(r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		if route == healthEndpoint || !telemetry.Enabled() {
			next.ServeHTTP(rec, r)
		} else {
			serveTraced(rec, r, route, next)
		}
		duration := time.Since(start)
		if route != healthEndpoint {
			klog.V(5).Infof("%s %s %d %v", r.Method, r.URL.Path, rec.status, duration)
		}
		m.RecordHTTPRequest(r.Context(), r.Method, route, rec.status, duration)
	})
}

func serveTraced(rec *statusRecorder, r *http.Request, route string, next http.Handler) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRoute(route),
		semconv.URLPath(r.URL.Path),
		semconv.ServerAddress(r.Host),
		semconv.ClientAddress(clientAddress(r)),
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.UserAgentOriginal(ua))
	}
	attrs = append(attrs, toolCallAttributes(r)...)

	ctx, span := otel.Tracer(tracerName).Start(ctx, r.Method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	next.ServeHTTP(rec, r.WithContext(ctx))

	span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
	if rec.status >= http.StatusBadRequest {
		span.SetAttributes(attribute.String("error.type", http.StatusText(rec.status)))
	}
	// 4xx stays unset on server spans, only server faults mark the span as failed
	if rec.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(rec.status))
	}
}

// toolCallRequest is the part of a JSON-RPC tools/call message needed to label a span.
type toolCallRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

// toolCallAttributes reads the head of an MCP POST body and returns the operation and CLI tool of a
// tools/call request. The body is restored so the transport handler still sees the whole message.
func toolCallAttributes(r *http.Request) []attribute.KeyValue {
	if r.Method != http.MethodPost || r.Body == nil {
		return nil
	}
	if p := r.URL.Path; p != mcpEndpoint && p != sseMessageEndpoint {
		return nil
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxToolCallPeek))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil {
		return nil
	}

	var req toolCallRequest
	if err := json.Unmarshal(head, &req); err != nil || req.Method != "tools/call" {
		return nil
	}
	attrs := []attribute.KeyValue{attrMCPMethod.String(req.Method)}
	if _, ok := cli.Lookup(req.Params.Name); ok {
		attrs = append(attrs, attrCLIOperation.String(req.Params.Name))
	}
	if command, ok := req.Params.Arguments[cli.ParamCommand].(string); ok {
		if tool, err := cli.ParseTool(command); err == nil {
			attrs = append(attrs, attrCLITool.String(string(tool)))
		}
	}
	return attrs
}

// httpRoute maps a request path to one of the registered routes, keeping metric cardinality bounded.
func httpRoute(path string) string {
	switch path {
	case healthEndpoint, mcpEndpoint, sseEndpoint, sseMessageEndpoint, statsEndpoint, metricsEndpoint:
		return path
	}
	return "unmatched"
}

func clientAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// statusRecorder captures the response status. It keeps Flush and Hijack reachable for the SSE and
// streamable HTTP transports.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rec.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("underlying ResponseWriter does not support hijacking")
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}
