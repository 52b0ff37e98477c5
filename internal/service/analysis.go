package service

import (
	"context"
	"sort"
	"time"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// CorrelateRequest is the correlate call's request shape.
type CorrelateRequest struct {
	AffectedServices    []string
	IncidentTime        time.Time
	WindowMinutes       int
	MaxResults          int
	MinScore            float64
	IncidentEnvironment string
	IncludeChangeSets   bool
}

// CorrelateResult bundles the ranked correlations with the change sets
// derived from them, populated only when the request asked for it.
type CorrelateResult struct {
	Correlations []models.ChangeCorrelation
	ChangeSets   []models.RankedChangeSet
}

// Correlate ranks stored change events against an incident.
func (s *Service) Correlate(ctx context.Context, req CorrelateRequest) (*CorrelateResult, error) {
	if s.metrics != nil {
		start := time.Now()
		defer func() { s.metrics.CorrelateDuration.Observe(time.Since(start).Seconds()) }()
	}
	if len(req.AffectedServices) == 0 {
		return nil, coreerrors.NewValidation("affectedServices must not be empty")
	}
	incidentTime := req.IncidentTime
	if incidentTime.IsZero() {
		incidentTime = time.Now().UTC()
	}

	incident := models.Incident{
		AffectedServices:    req.AffectedServices,
		IncidentTime:        incidentTime,
		WindowMinutes:       req.WindowMinutes,
		IncidentEnvironment: req.IncidentEnvironment,
	}
	correlations, err := s.correlator.Correlate(ctx, incident, models.CorrelateOptions{
		MaxResults: req.MaxResults,
		MinScore:   req.MinScore,
	})
	if err != nil {
		return nil, err
	}

	result := &CorrelateResult{Correlations: correlations}
	if req.IncludeChangeSets {
		result.ChangeSets = s.grouper.RankForIncident(correlations, s.analyzer, 5)
	}
	return result, nil
}

// BlastRadius predicts which services are affected if services break or
// change.
func (s *Service) BlastRadius(services []string, changeType models.ChangeType, maxDepth int) (*models.BlastRadiusPrediction, error) {
	if s.metrics != nil {
		start := time.Now()
		defer func() { s.metrics.BlastRadiusDuration.Observe(time.Since(start).Seconds()) }()
	}
	if len(services) == 0 {
		return nil, coreerrors.NewValidation("services must not be empty")
	}
	return s.analyzer.Predict(services, changeType, maxDepth), nil
}

// TriageRequest is the triage call's request shape.
type TriageRequest struct {
	IncidentTime        time.Time
	IncidentEnvironment string
	WindowMinutes       int
	SuspectedServices   []string
	SymptomTags         []string
	MaxChangeSets       int
}

// TriageResult is a ranked set of candidate change sets for an incident,
// each carrying its suggested blast radius.
type TriageResult struct {
	SuspectedServices []string
	ChangeSets        []models.RankedChangeSet
}

// Triage derives suspected services when none are given (the top 5 by
// event count in the window), then correlates and ranks change sets
// against them.
func (s *Service) Triage(ctx context.Context, req TriageRequest) (*TriageResult, error) {
	if s.metrics != nil {
		start := time.Now()
		defer func() { s.metrics.TriageDuration.Observe(time.Since(start).Seconds()) }()
	}
	windowMinutes := req.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	incidentTime := req.IncidentTime
	if incidentTime.IsZero() {
		incidentTime = time.Now().UTC()
	}
	maxChangeSets := req.MaxChangeSets
	if maxChangeSets <= 0 {
		maxChangeSets = 3
	}

	suspected := req.SuspectedServices
	if len(suspected) == 0 {
		derived, err := s.topServicesByEventCount(ctx, incidentTime, windowMinutes, 5)
		if err != nil {
			return nil, err
		}
		suspected = derived
	}
	if len(suspected) == 0 {
		return &TriageResult{SuspectedServices: suspected}, nil
	}

	incident := models.Incident{
		AffectedServices:    suspected,
		IncidentTime:        incidentTime,
		WindowMinutes:       windowMinutes,
		IncidentEnvironment: req.IncidentEnvironment,
	}
	correlations, err := s.correlator.Correlate(ctx, incident, models.CorrelateOptions{})
	if err != nil {
		return nil, err
	}

	return &TriageResult{
		SuspectedServices: suspected,
		ChangeSets:        s.grouper.RankForIncident(correlations, s.analyzer, maxChangeSets),
	}, nil
}

// topServicesByEventCount ranks services within the incident window by
// event count, returning at most n, most-frequent first (ties broken by
// service id for determinism).
func (s *Service) topServicesByEventCount(ctx context.Context, incidentTime time.Time, windowMinutes, n int) ([]string, error) {
	since := incidentTime.Add(-time.Duration(windowMinutes) * time.Minute)
	until := incidentTime.Add(time.Duration(windowMinutes) * time.Minute)
	events, err := s.store.Query(ctx, models.QueryOptions{Since: &since, Until: &until, Limit: 1000})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, e := range events {
		if counts[e.Service] == 0 {
			order = append(order, e.Service)
		}
		counts[e.Service]++
	}
	sort.Slice(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return order[i] < order[j]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order, nil
}

// Health reports store and graph summary stats for liveness checks.
type Health struct {
	Status     string
	StoreStats *models.StoreStats
	GraphStats models.GraphStats
}

// HealthCheck returns the current store and graph stats. Status is
// "degraded" when the store is unreachable rather than an error, since
// health is itself a liveness probe.
func (s *Service) HealthCheck(ctx context.Context) *Health {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		s.logger.WarnWithFields("health check: store unavailable")
		return &Health{Status: "degraded", GraphStats: s.graph.GetStats()}
	}
	if s.metrics != nil {
		s.metrics.StoreSize.Set(float64(stats.Total))
	}
	return &Health{Status: "ok", StoreStats: stats, GraphStats: s.graph.GetStats()}
}
