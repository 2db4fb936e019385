package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/mcpchat/pkg/config"
)

// Server exposes the default Prometheus registry over HTTP.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Start binds cfg.Addr and serves metrics at cfg.Path in the background.
// Binding happens before Start returns so address conflicts surface at
// startup.
func Start(cfg config.MetricsConfig) (*Server, error) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET "+path, promhttp.Handler())

	s := &Server{
		srv: &http.Server{Handler: mux},
		ln:  ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	slog.Info("metrics server started", "addr", ln.Addr().String(), "path", path)
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
