package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moolen-fork/changeintel/internal/logging"
)

// Server exposes a /metrics endpoint over reg, implementing
// lifecycle.Component so it starts and stops alongside the rest of the
// host.
type Server struct {
	addr   string
	server *http.Server
	logger *logging.Logger
}

// NewServer builds a metrics Server bound to addr, scraping reg.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{
		addr:   addr,
		logger: logging.GetLogger("metrics"),
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// Start begins serving /metrics. It returns once the listener goroutine
// is launched; errors encountered after that point are logged.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.ErrorWithErr("metrics server error", err)
		}
	}()
	s.logger.InfoWithFields("metrics server listening", logging.Field("addr", s.addr))
	return nil
}

// Stop gracefully shuts the metrics server down, up to a 5s timeout.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Name identifies this component in lifecycle logging.
func (s *Server) Name() string {
	return "metrics server"
}
