package service

import (
	"context"
	"time"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// CreateEvent inserts a single event. idempotencyKey, if non-empty,
// overrides partial.IdempotencyKey before insertion. The bool result
// reports whether an existing event with that idempotency key was
// returned in place of a fresh insert.
func (s *Service) CreateEvent(ctx context.Context, partial *models.PartialChangeEvent, idempotencyKey string) (*models.ChangeEvent, bool, error) {
	start := time.Now()
	if idempotencyKey != "" {
		partial.IdempotencyKey = &idempotencyKey
	}
	event, deduped, err := s.store.Insert(ctx, partial)
	s.recordIngest(start, deduped, err)
	return event, deduped, err
}

// BatchCreate inserts every partial in order, stopping at the first error.
// It returns the events created (or deduped) so far alongside that error.
func (s *Service) BatchCreate(ctx context.Context, partials []*models.PartialChangeEvent) ([]*models.ChangeEvent, error) {
	out := make([]*models.ChangeEvent, 0, len(partials))
	for _, p := range partials {
		start := time.Now()
		e, deduped, err := s.store.Insert(ctx, p)
		s.recordIngest(start, deduped, err)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// recordIngest updates ingest metrics for a single Insert call, a no-op
// when the service was built without metrics.
func (s *Service) recordIngest(start time.Time, deduped bool, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.IngestLatency.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		s.metrics.IngestErrorsTotal.Inc()
	case deduped:
		s.metrics.EventsDedupedTotal.Inc()
	default:
		s.metrics.EventsIngestedTotal.Inc()
	}
}

// GetEvent retrieves a single event by id.
func (s *Service) GetEvent(ctx context.Context, id string) (*models.ChangeEvent, error) {
	if id == "" {
		return nil, coreerrors.NewValidation("event id must not be empty")
	}
	return s.store.Get(ctx, id)
}

// UpdateEvent applies patch to the event identified by id.
func (s *Service) UpdateEvent(ctx context.Context, id string, patch *models.PartialChangeEvent) (*models.ChangeEvent, error) {
	if id == "" {
		return nil, coreerrors.NewValidation("event id must not be empty")
	}
	return s.store.Update(ctx, id, patch)
}

// DeleteEvent removes the event identified by id.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return coreerrors.NewValidation("event id must not be empty")
	}
	return s.store.Delete(ctx, id)
}

// QueryEvents runs a filtered, AND-combined lookup over the store.
func (s *Service) QueryEvents(ctx context.Context, opts models.QueryOptions) ([]*models.ChangeEvent, error) {
	if s.metrics != nil {
		start := time.Now()
		defer func() { s.metrics.QueryLatency.WithLabelValues("query").Observe(time.Since(start).Seconds()) }()
	}
	return s.store.Query(ctx, opts)
}

// SearchEvents runs a full-text lookup over summary and service, capped at
// limit (0 defers to the store's own default).
func (s *Service) SearchEvents(ctx context.Context, q string, limit int) ([]*models.ChangeEvent, error) {
	if s.metrics != nil {
		start := time.Now()
		defer func() { s.metrics.QueryLatency.WithLabelValues("search").Observe(time.Since(start).Seconds()) }()
	}
	return s.store.Search(ctx, q, models.QueryOptions{Limit: limit})
}

// Velocity computes `periods` sequential trailing windows of width
// windowMinutes, oldest first. periods <= 1 yields the single current
// window via the store's plain getVelocity.
func (s *Service) Velocity(ctx context.Context, service string, windowMinutes, periods int) ([]*models.VelocityMetric, error) {
	if service == "" {
		return nil, coreerrors.NewValidation("service must not be empty")
	}
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	if periods <= 1 {
		m, err := s.store.GetVelocity(ctx, service, windowMinutes)
		if err != nil {
			return nil, err
		}
		return []*models.VelocityMetric{m}, nil
	}
	return s.store.GetVelocityTrend(ctx, service, windowMinutes, periods)
}
