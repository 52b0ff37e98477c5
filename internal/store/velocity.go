package store

import (
	"context"
	"sort"
	"time"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// GetVelocity computes the change rate for service over the trailing
// windowMinutes, bucketed by change type, with the average interval
// between consecutive changes.
func (s *Store) GetVelocity(ctx context.Context, service string, windowMinutes int) (*models.VelocityMetric, error) {
	now := time.Now().UTC()
	since := now.Add(-time.Duration(windowMinutes) * time.Minute)

	events, err := s.Query(ctx, models.QueryOptions{Services: []string{service}, Since: &since, Until: &now})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "get velocity")
	}
	return velocityFromEvents(service, windowMinutes, since, now, events), nil
}

func velocityFromEvents(service string, windowMinutes int, since, until time.Time, events []*models.ChangeEvent) *models.VelocityMetric {
	m := &models.VelocityMetric{
		Service:       service,
		WindowMinutes: windowMinutes,
		WindowStart:   since,
		WindowEnd:     until,
		ChangeCount:   len(events),
		ChangeTypes:   make(map[models.ChangeType]int),
	}
	if len(events) == 0 {
		return m
	}
	timestamps := make([]time.Time, len(events))
	for i, e := range events {
		m.ChangeTypes[e.ChangeType]++
		timestamps[i] = e.Timestamp
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
	if len(timestamps) > 1 {
		total := timestamps[len(timestamps)-1].Sub(timestamps[0])
		m.AverageIntervalMinutes = total.Minutes() / float64(len(timestamps)-1)
	}
	return m
}

// GetVelocityTrend computes GetVelocity for a sequence of trailing windows
// ending now, each windowMinutes wide, spaced windowMinutes apart, for
// `periods` periods — oldest first — so callers can plot a trend line.
func (s *Store) GetVelocityTrend(ctx context.Context, service string, windowMinutes, periods int) ([]*models.VelocityMetric, error) {
	if periods <= 0 {
		return nil, coreerrors.NewValidation("periods must be positive")
	}
	now := time.Now().UTC()
	out := make([]*models.VelocityMetric, periods)
	for i := 0; i < periods; i++ {
		periodEnd := now.Add(-time.Duration((periods-1-i)*windowMinutes) * time.Minute)
		periodStart := periodEnd.Add(-time.Duration(windowMinutes) * time.Minute)
		// An event exactly on the boundary belongs to the later window: every
		// period but the last treats its upper bound as exclusive so it isn't
		// double-counted with the window immediately after it.
		queryEnd := periodEnd
		if i < periods-1 {
			queryEnd = queryEnd.Add(-time.Nanosecond)
		}
		events, err := s.Query(ctx, models.QueryOptions{
			Services: []string{service},
			Since:    &periodStart,
			Until:    &queryEnd,
		})
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "get velocity trend")
		}
		out[i] = velocityFromEvents(service, windowMinutes, periodStart, periodEnd, events)
	}
	return out, nil
}
