package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/models"
)

// EventsHandler handles /events, /events/batch, /events/{id}, and /search.
type EventsHandler struct {
	facade    Facade
	logger    *logging.Logger
	tracer    trace.Tracer
	validator *Validator
}

// NewEventsHandler creates a new events handler over facade.
func NewEventsHandler(facade Facade, logger *logging.Logger, tracer trace.Tracer) *EventsHandler {
	return &EventsHandler{facade: facade, logger: logger, tracer: tracer, validator: NewValidator()}
}

// HandleCollection dispatches POST /events (createEvent) and GET /events
// (queryEvents), since both hang off the same path.
func (h *EventsHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		h.handleCreate(w, r)
		return
	}
	h.handleQuery(w, r)
}

func (h *EventsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "events.create")
	defer span.End()

	var partial models.PartialChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "invalid request body: "+err.Error())
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	event, deduped, err := h.facade.CreateEvent(ctx, &partial, idempotencyKey)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}

	if deduped {
		writeOK(w, event)
		return
	}
	writeCreated(w, event)
}

// HandleBatch handles POST /events/batch (batchCreate).
func (h *EventsHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "events.batchCreate")
	defer span.End()

	var partials []*models.PartialChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&partials); err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "invalid request body: "+err.Error())
		return
	}

	events, err := h.facade.BatchCreate(ctx, partials)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	writeCreated(w, events)
}

// HandleItem dispatches GET/PATCH/DELETE on /events/{id}.
func (h *EventsHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/events/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "invalid event id in path")
		return
	}

	ctx, span := h.startSpan(r, "events.item")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", id))

	switch r.Method {
	case http.MethodGet:
		event, err := h.facade.GetEvent(ctx, id)
		if err != nil {
			span.RecordError(err)
			writeErrorFromErr(w, err)
			return
		}
		writeOK(w, event)

	case http.MethodPatch:
		var patch models.PartialChangeEvent
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			span.RecordError(err)
			writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "invalid request body: "+err.Error())
			return
		}
		event, err := h.facade.UpdateEvent(ctx, id, &patch)
		if err != nil {
			span.RecordError(err)
			writeErrorFromErr(w, err)
			return
		}
		writeOK(w, event)

	case http.MethodDelete:
		if err := h.facade.DeleteEvent(ctx, id); err != nil {
			span.RecordError(err)
			writeErrorFromErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *EventsHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "events.query")
	defer span.End()

	opts, err := h.parseQueryOptions(r)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}

	events, err := h.facade.QueryEvents(ctx, opts)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	writeOK(w, events)
}

// HandleSearch handles GET /search (searchEvents).
func (h *EventsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "events.search")
	defer span.End()

	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), "q is required")
		return
	}

	limit, err := h.limitParam(r, 0, 200)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}

	events, err := h.facade.SearchEvents(ctx, q, limit)
	if err != nil {
		span.RecordError(err)
		writeErrorFromErr(w, err)
		return
	}
	writeOK(w, events)
}

func (h *EventsHandler) parseQueryOptions(r *http.Request) (models.QueryOptions, error) {
	query := r.URL.Query()
	opts := models.QueryOptions{
		Environment: query.Get("environment"),
	}

	if services := query["service"]; len(services) > 0 {
		opts.Services = services
	}
	for _, t := range query["changeType"] {
		if err := h.validator.ValidateChangeType(t); err != nil {
			return opts, err
		}
		opts.ChangeTypes = append(opts.ChangeTypes, models.ChangeType(t))
	}
	for _, s := range query["source"] {
		opts.Sources = append(opts.Sources, models.ChangeSource(s))
	}
	if initiator := query.Get("initiator"); initiator != "" {
		i := models.Initiator(initiator)
		opts.Initiator = &i
	}
	if status := query.Get("status"); status != "" {
		s := models.ChangeStatus(status)
		opts.Status = &s
	}

	if since := query.Get("since"); since != "" {
		t, err := parseTime(since, "since")
		if err != nil {
			return opts, err
		}
		opts.Since = &t
	}
	if until := query.Get("until"); until != "" {
		t, err := parseTime(until, "until")
		if err != nil {
			return opts, err
		}
		opts.Until = &t
	}

	limit, err := h.limitParam(r, 0, 500)
	if err != nil {
		return opts, err
	}
	opts.Limit = limit
	return opts, nil
}

func (h *EventsHandler) limitParam(r *http.Request, def, max int) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, NewValidationError("limit must be an integer")
	}
	return h.validator.ValidateLimit(limit, def, max)
}

func (h *EventsHandler) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	return h.tracer.Start(r.Context(), name)
}
