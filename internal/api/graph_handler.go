package api

import (
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen-fork/changeintel/internal/logging"
)

// GraphHandler handles /graph/import, /graph/services, and
// /graph/services/{id}/dependencies.
type GraphHandler struct {
	facade Facade
	logger *logging.Logger
	tracer trace.Tracer
}

// NewGraphHandler creates a new graph handler over facade.
func NewGraphHandler(facade Facade, logger *logging.Logger, tracer trace.Tracer) *GraphHandler {
	return &GraphHandler{facade: facade, logger: logger, tracer: tracer}
}

// HandleImport handles POST /graph/import (graphImport).
func (h *GraphHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "graph.import")
	defer span.End()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "failed to read request body: "+err.Error())
		return
	}

	provenance := r.URL.Query().Get("provenance")
	if err := h.facade.GraphImport(raw, provenance); err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListServices handles GET /graph/services (listServices).
func (h *GraphHandler) HandleListServices(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "graph.listServices")
	defer span.End()

	writeOK(w, h.facade.ListServices())
}

// HandleDependencies handles GET /graph/services/{id}/dependencies.
func (h *GraphHandler) HandleDependencies(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/graph/services/")
	id, ok := strings.CutSuffix(path, "/dependencies")
	if !ok || id == "" {
		writeError(w, http.StatusNotFound, string(ErrorCodeNotFound), "unrecognized path: "+r.URL.Path)
		return
	}

	_, span := h.tracer.Start(r.Context(), "graph.dependencies")
	defer span.End()
	span.SetAttributes(attribute.String("service.id", id))

	deps, err := h.facade.Dependencies(id)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	writeOK(w, deps)
}
