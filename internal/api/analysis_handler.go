package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/models"
	"github.com/moolen-fork/changeintel/internal/service"
)

// AnalysisHandler handles /correlate, /blast-radius, /velocity, and
// /triage: the analytical heart of the external interface.
type AnalysisHandler struct {
	facade Facade
	logger *logging.Logger
	tracer trace.Tracer
}

// NewAnalysisHandler creates a new analysis handler over facade.
func NewAnalysisHandler(facade Facade, logger *logging.Logger, tracer trace.Tracer) *AnalysisHandler {
	return &AnalysisHandler{facade: facade, logger: logger, tracer: tracer}
}

// correlateRequestBody is the wire shape of POST /correlate.
type correlateRequestBody struct {
	AffectedServices    []string `json:"affectedServices"`
	IncidentTime        string   `json:"incidentTime,omitempty"`
	WindowMinutes       int      `json:"windowMinutes,omitempty"`
	MaxResults          int      `json:"maxResults,omitempty"`
	MinScore            float64  `json:"minScore,omitempty"`
	IncidentEnvironment string   `json:"incidentEnvironment,omitempty"`
	IncludeChangeSets   bool     `json:"includeChangeSets,omitempty"`
}

// HandleCorrelate handles POST /correlate.
func (h *AnalysisHandler) HandleCorrelate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "analysis.correlate")
	defer span.End()

	var body correlateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "invalid request body: "+err.Error())
		return
	}

	incidentTime, err := parseBodyTime(body.IncidentTime)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}

	span.SetAttributes(attribute.Int("affected_services.count", len(body.AffectedServices)))

	result, err := h.facade.Correlate(ctx, service.CorrelateRequest{
		AffectedServices:    body.AffectedServices,
		IncidentTime:        incidentTime,
		WindowMinutes:       body.WindowMinutes,
		MaxResults:          body.MaxResults,
		MinScore:            body.MinScore,
		IncidentEnvironment: body.IncidentEnvironment,
		IncludeChangeSets:   body.IncludeChangeSets,
	})
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	writeOK(w, result)
}

// blastRadiusRequestBody is the wire shape of POST /blast-radius.
type blastRadiusRequestBody struct {
	Services   []string `json:"services"`
	ChangeType string   `json:"changeType,omitempty"`
	MaxDepth   int      `json:"maxDepth,omitempty"`
}

// HandleBlastRadius handles POST /blast-radius.
func (h *AnalysisHandler) HandleBlastRadius(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "analysis.blastRadius")
	defer span.End()

	var body blastRadiusRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "invalid request body: "+err.Error())
		return
	}

	span.SetAttributes(attribute.Int("services.count", len(body.Services)))

	prediction, err := h.facade.BlastRadius(body.Services, models.ChangeType(body.ChangeType), body.MaxDepth)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	writeOK(w, prediction)
}

// HandleVelocity handles GET /velocity.
func (h *AnalysisHandler) HandleVelocity(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "analysis.velocity")
	defer span.End()

	query := r.URL.Query()
	svc := query.Get("service")
	if svc == "" {
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "service is required")
		return
	}
	span.SetAttributes(attribute.String("service", svc))

	windowMinutes, err := intParam(query, "windowMinutes", 60)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	periods, err := intParam(query, "periods", 1)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}

	metrics, err := h.facade.Velocity(ctx, svc, windowMinutes, periods)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	writeOK(w, metrics)
}

// triageRequestBody is the wire shape of POST /triage.
type triageRequestBody struct {
	IncidentTime        string   `json:"incidentTime,omitempty"`
	IncidentEnvironment string   `json:"incidentEnvironment,omitempty"`
	WindowMinutes       int      `json:"windowMinutes,omitempty"`
	SuspectedServices   []string `json:"suspectedServices,omitempty"`
	SymptomTags         []string `json:"symptomTags,omitempty"`
	MaxChangeSets       int      `json:"maxChangeSets,omitempty"`
}

// HandleTriage handles POST /triage.
func (h *AnalysisHandler) HandleTriage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "analysis.triage")
	defer span.End()

	var body triageRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "invalid request body: "+err.Error())
		return
	}

	incidentTime, err := parseBodyTime(body.IncidentTime)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}

	result, err := h.facade.Triage(ctx, service.TriageRequest{
		IncidentTime:        incidentTime,
		IncidentEnvironment: body.IncidentEnvironment,
		WindowMinutes:       body.WindowMinutes,
		SuspectedServices:   body.SuspectedServices,
		SymptomTags:         body.SymptomTags,
		MaxChangeSets:       body.MaxChangeSets,
	})
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	writeOK(w, result)
}

// parseBodyTime parses an optional RFC3339 timestamp from a JSON request
// body, returning the zero time (meaning "now", resolved downstream) when
// raw is empty.
func parseBodyTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, NewValidationError("incidentTime must be RFC3339: %v", err)
	}
	return t, nil
}

func intParam(query map[string][]string, key string, def int) (int, error) {
	values, ok := query[key]
	if !ok || len(values) == 0 || values[0] == "" {
		return def, nil
	}
	n, err := strconv.Atoi(values[0])
	if err != nil {
		return 0, NewValidationError("%s must be an integer", key)
	}
	return n, nil
}
