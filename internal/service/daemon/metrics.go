package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/garage-alert/internal/logger"
)

// metricsReadHeaderTimeout bounds slow clients of the metrics endpoint.
const metricsReadHeaderTimeout = 5 * time.Second

// metricsServer exposes Prometheus metrics and a liveness probe over HTTP.
type metricsServer struct {
	server   *http.Server
	listener net.Listener
}

// newMetricsServer binds address and prepares the handlers.
func newMetricsServer(ctx context.Context, address string) (*metricsServer, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &metricsServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
		},
		listener: listener,
	}, nil
}

// Addr returns the bound address.
func (m *metricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Serve blocks until the server is shut down.
func (m *metricsServer) Serve(ctx context.Context) {
	logger.InfoKV(ctx, "Metrics endpoint listening", "metrics_address", m.Addr())

	if err := m.server.Serve(m.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorKV(ctx, "Metrics endpoint failed", "error", err)
	}
}

// Shutdown stops accepting requests and waits for in-flight ones. The
// listener is released even if Serve was never called.
func (m *metricsServer) Shutdown(ctx context.Context) error {
	err := m.server.Shutdown(ctx)

	_ = m.listener.Close()

	return err
}
