package mcp

import (
	"bytes"
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"

	"github.com/openshift/osc-mcp-server/pkg/mcplog"
	"github.com/openshift/osc-mcp-server/pkg/telemetry"
)

// sessionInjectionMiddleware exposes the server session to mcplog so handlers can send log notifications.
func sessionInjectionMiddleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if session, ok := req.GetSession().(*mcp.ServerSession); ok && session != nil {
			ctx = context.WithValue(ctx, mcplog.MCPSessionContextKey, session)
		}
		return next(ctx, method, req)
	}
}

func toolCallLoggingMiddleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		switch params := req.GetParams().(type) {
		case *mcp.CallToolParamsRaw:
			toolCallRequest, _ := GoSdkToolCallParamsToToolCallRequest(params)
			if toolCallRequest != nil {
				klog.V(5).Infof("mcp tool call: %s(%v)", toolCallRequest.Name, toolCallRequest.GetArguments())
			}
			if req.GetExtra() != nil && req.GetExtra().Header != nil {
				buffer := bytes.NewBuffer(make([]byte, 0))
				if err := req.GetExtra().Header.WriteSubset(buffer, map[string]bool{"Authorization": true, "authorization": true}); err == nil {
					klog.V(7).Infof("mcp tool call headers: %s", buffer)
				}
			}
		}
		return next(ctx, method, req)
	}
}

// tracingMiddleware opens a server span per MCP request, continuing any trace carried in the HTTP headers.
func tracingMiddleware(tracerName string) func(mcp.MethodHandler) mcp.MethodHandler {
	tracer := otel.Tracer(tracerName)
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if !telemetry.Enabled() {
				return next(ctx, method, req)
			}
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(extra.Header))
			}
			spanName := method
			attrs := []attribute.KeyValue{attribute.String("mcp.method.name", method)}
			if params, ok := req.GetParams().(*mcp.CallToolParamsRaw); ok && params != nil {
				spanName = method + " " + params.Name
				attrs = append(attrs, attribute.String("gen_ai.tool.name", params.Name))
			}
			ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attrs...))
			defer span.End()

			result, err := next(ctx, method, req)
			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case isErrorResult(result):
				span.SetStatus(codes.Error, "tool returned an error result")
			default:
				span.SetStatus(codes.Ok, "")
			}
			return result, err
		}
	}
}

func isErrorResult(result mcp.Result) bool {
	callResult, ok := result.(*mcp.CallToolResult)
	return ok && callResult != nil && callResult.IsError
}
