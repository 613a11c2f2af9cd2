package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/openshift/osc-mcp-server/pkg/config"
	"github.com/openshift/osc-mcp-server/pkg/mcp"
	"github.com/openshift/osc-mcp-server/pkg/metrics"
)

const (
	healthEndpoint     = "/healthz"
	statsEndpoint      = "/stats"
	metricsEndpoint    = "/metrics"
	mcpEndpoint        = "/mcp"
	sseEndpoint        = "/sse"
	sseMessageEndpoint = "/message"
)

const shutdownTimeout = 10 * time.Second

// Handler returns the HTTP handler serving the MCP transports and the operational endpoints.
func Handler(mcpServer *mcp.Server) http.Handler {
	m := mcpServer.GetMetrics()
	sse := mcpServer.ServeSse()
	mux := http.NewServeMux()
	mux.Handle(sseEndpoint, sse)
	mux.Handle(sseMessageEndpoint, sse)
	mux.Handle(mcpEndpoint, mcpServer.ServeHTTP())
	mux.HandleFunc("GET "+healthEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET "+statsEndpoint, statsHandler(m))
	mux.Handle("GET "+metricsEndpoint, m.PrometheusHandler())
	return instrument(mux, m)
}

// statsHandler exposes the tool call and CLI command counters as JSON.
func statsHandler(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.GetStats()); err != nil {
			klog.V(1).Infof("Failed to encode stats response: %v", err)
		}
	}
}

// Serve runs the HTTP server on staticConfig.Port until ctx is canceled or a termination signal arrives.
// Flushing the MCP server metrics is left to the caller.
func Serve(ctx context.Context, mcpServer *mcp.Server, staticConfig *config.StaticConfig) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              ":" + staticConfig.Port,
		Handler:           Handler(mcpServer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		klog.V(0).Infof("HTTP server starting on port %s (endpoints: %s, %s, %s, %s, %s, %s)", staticConfig.Port,
			mcpEndpoint, sseEndpoint, sseMessageEndpoint, healthEndpoint, statsEndpoint, metricsEndpoint)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		if ctx.Err() != nil {
			klog.V(0).Infof("Context cancelled, initiating graceful shutdown")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		klog.V(0).Infof("Shutting down HTTP server gracefully...")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		klog.Errorf("%v", err)
		return err
	}
	klog.V(0).Infof("HTTP server shutdown complete")
	return nil
}
