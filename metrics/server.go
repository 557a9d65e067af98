// Package metrics define telemetry primitives to use across components. it uses the prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the default prometheus registry on /metrics.
type Server struct {
	logger *zap.Logger
	srv    *http.Server
	addr   net.Addr
}

// NewServer creates a metrics server listening on the given port once started.
func NewServer(logger *zap.Logger, port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", s.srv.Addr, err)
	}
	s.addr = lis.Addr()
	s.logger.Info("metrics server starts serving", zap.Stringer("addr", s.addr))
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the address the server listens on, nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close stops the server.
func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
