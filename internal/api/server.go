// Package api implements the HTTP surface over internal/service: the
// REST endpoints a CI/CD pipeline or a human triager calls during an
// incident.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen-fork/changeintel/internal/logging"
)

// Server hosts the change-intelligence HTTP API.
type Server struct {
	addr   string
	server *http.Server
	logger *logging.Logger
	router *http.ServeMux
	tracer trace.Tracer
}

// New builds a Server bound to addr, dispatching onto facade.
func New(addr string, facade Facade) *Server {
	s := &Server{
		addr:   addr,
		logger: logging.GetLogger("api"),
		router: http.NewServeMux(),
		tracer: otel.GetTracerProvider().Tracer("changeintel.api"),
	}

	s.registerHandlers(facade)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.corsMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) registerHandlers(facade Facade) {
	events := NewEventsHandler(facade, s.logger, s.tracer)
	analysis := NewAnalysisHandler(facade, s.logger, s.tracer)
	graph := NewGraphHandler(facade, s.logger, s.tracer)

	s.router.HandleFunc("/events", s.withMethods(events.HandleCollection, http.MethodPost, http.MethodGet))
	s.router.HandleFunc("/events/batch", s.withMethod(http.MethodPost, events.HandleBatch))
	s.router.HandleFunc("/events/", s.withMethods(events.HandleItem, http.MethodGet, http.MethodPatch, http.MethodDelete))
	s.router.HandleFunc("/search", s.withMethod(http.MethodGet, events.HandleSearch))

	s.router.HandleFunc("/correlate", s.withMethod(http.MethodPost, analysis.HandleCorrelate))
	s.router.HandleFunc("/blast-radius", s.withMethod(http.MethodPost, analysis.HandleBlastRadius))
	s.router.HandleFunc("/velocity", s.withMethod(http.MethodGet, analysis.HandleVelocity))
	s.router.HandleFunc("/triage", s.withMethod(http.MethodPost, analysis.HandleTriage))

	s.router.HandleFunc("/graph/import", s.withMethod(http.MethodPost, graph.HandleImport))
	s.router.HandleFunc("/graph/services", s.withMethod(http.MethodGet, graph.HandleListServices))
	s.router.HandleFunc("/graph/services/", s.withMethod(http.MethodGet, graph.HandleDependencies))

	s.router.HandleFunc("/health", s.handleHealth(facade))
}

// withMethod rejects any request not using method.
func (s *Server) withMethod(method string, handler http.HandlerFunc) http.HandlerFunc {
	return s.withMethods(handler, method)
}

// withMethods rejects any request whose method isn't one of methods.
func (s *Server) withMethods(handler http.HandlerFunc, methods ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				handler(w, r)
				return
			}
		}
		s.handleMethodNotAllowed(w, r)
	}
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, string(ErrorCodeMethodNotAllowed),
		fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path))
}

// corsMiddleware allows browser-based triage dashboards to call the API
// cross-origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(facade Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := facade.HealthCheck(r.Context())
		status := http.StatusOK
		if h.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = writeJSON(w, map[string]interface{}{
			"status":     h.Status,
			"storeStats": h.StoreStats,
			"graphStats": h.GraphStats,
		})
	}
}

// Start begins serving HTTP in a background goroutine and returns without
// waiting for the listener; listen and serve errors are logged, not
// returned.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.ErrorWithErr("http server error", err)
		}
	}()
	s.logger.InfoWithFields("api server listening", logging.Field("addr", s.addr))
	return nil
}

// Stop gracefully shuts the server down, up to a 5s timeout.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.ErrorWithErr("http server shutdown error", err)
		return err
	}
	return nil
}

// Name identifies this component in lifecycle logging.
func (s *Server) Name() string {
	return "api server"
}
