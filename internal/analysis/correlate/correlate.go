// Package correlate implements the ChangeCorrelator: ranking stored
// change events against an incident by temporal proximity, graph
// adjacency, blast-radius risk, change type, and environment match.
package correlate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/models"
	"github.com/moolen-fork/changeintel/internal/provenance"
)

// EventStore is the subset of the event store the correlator reads from.
type EventStore interface {
	GetRecentForServices(ctx context.Context, services []string, windowMinutes int) ([]*models.ChangeEvent, error)
	Query(ctx context.Context, opts models.QueryOptions) ([]*models.ChangeEvent, error)
}

const (
	weightTimeProximity    = 0.35
	weightServiceAdjacency = 0.30
	weightChangeRisk       = 0.15
	weightChangeType       = 0.10
	weightEnvironmentMatch = 0.10

	defaultMinScore   = 0.1
	defaultMaxResults = 20
	maxEvidence       = 20
)

// Correlator scores EventStore candidates against an incident. graph is
// optional: a nil graph disables neighbor expansion, so only the affected
// services themselves are queried. A plain time-window query is used only
// when the incident names no affected services.
type Correlator struct {
	store  EventStore
	graph  *graph.ServiceGraph
	logger *logging.Logger
}

// New returns a Correlator reading from store, optionally expanding
// candidate service sets via g (pass nil to disable graph expansion).
func New(store EventStore, g *graph.ServiceGraph) *Correlator {
	return &Correlator{store: store, graph: g, logger: logging.GetLogger("analysis.correlate")}
}

// Correlate ranks candidate events against incident per opts.
func (c *Correlator) Correlate(ctx context.Context, incident models.Incident, opts models.CorrelateOptions) ([]models.ChangeCorrelation, error) {
	minScore := opts.MinScore
	if minScore == 0 {
		minScore = defaultMinScore
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	expanded := c.expandServices(incident.AffectedServices)

	candidates, err := c.sourceCandidates(ctx, expanded, incident)
	if err != nil {
		return nil, err
	}

	var out []models.ChangeCorrelation
	for _, event := range candidates {
		corr := c.score(*event, incident, expanded)
		if corr.CorrelationScore < minScore {
			continue
		}
		out = append(out, corr)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CorrelationScore > out[j].CorrelationScore })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

// expandServices returns every affected service at hop 0, its direct graph
// neighbors (either direction) at hop 1, and their neighbors at hop 2. An
// explicit direct hit is never demoted to a higher hop distance. With no
// graph, only hop 0 is populated.
func (c *Correlator) expandServices(affected []string) map[string]int {
	expanded := make(map[string]int, len(affected))
	for _, svc := range affected {
		expanded[svc] = 0
	}
	if c.graph == nil {
		return expanded
	}

	setHop := func(svc string, hop int) {
		if existing, ok := expanded[svc]; ok && existing <= hop {
			return
		}
		expanded[svc] = hop
	}

	hop1 := map[string]bool{}
	for _, svc := range affected {
		for _, n := range c.graph.GetDependencies(svc) {
			hop1[n] = true
		}
		for _, n := range c.graph.GetDependents(svc) {
			hop1[n] = true
		}
	}
	for svc := range hop1 {
		setHop(svc, 1)
	}

	hop2 := map[string]bool{}
	for svc := range hop1 {
		for _, n := range c.graph.GetDependencies(svc) {
			hop2[n] = true
		}
		for _, n := range c.graph.GetDependents(svc) {
			hop2[n] = true
		}
	}
	for svc := range hop2 {
		setHop(svc, 2)
	}
	return expanded
}

func (c *Correlator) sourceCandidates(ctx context.Context, expanded map[string]int, incident models.Incident) ([]*models.ChangeEvent, error) {
	windowMinutes := incident.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	if len(expanded) == 0 {
		since := incident.IncidentTime.Add(-time.Duration(windowMinutes) * time.Minute)
		until := incident.IncidentTime.Add(time.Duration(windowMinutes) * time.Minute)
		return c.store.Query(ctx, models.QueryOptions{Since: &since, Until: &until, Limit: 100})
	}
	services := make([]string, 0, len(expanded))
	for svc := range expanded {
		services = append(services, svc)
	}
	return c.store.GetRecentForServices(ctx, services, windowMinutes)
}

func (c *Correlator) score(event models.ChangeEvent, incident models.Incident, expanded map[string]int) models.ChangeCorrelation {
	timeProximity := round3(timeProximityFactor(incident.IncidentTime, event.Timestamp))
	adjacency, overlap := serviceAdjacencyFactor(event, expanded)
	adjacency = round3(adjacency)
	changeRisk := round3(changeRiskFactor(event.BlastRadius))
	changeType := round3(changeTypeFactor(event.ChangeType))
	environmentMatch := round3(environmentMatchFactor(event.Environment, incident.IncidentEnvironment))

	overall := round3(
		timeProximity*weightTimeProximity +
			adjacency*weightServiceAdjacency +
			changeRisk*weightChangeRisk +
			changeType*weightChangeType +
			environmentMatch*weightEnvironmentMatch,
	)

	deltaMinutes := math.Abs(incident.IncidentTime.Sub(event.Timestamp).Minutes())

	evidence := provenance.ExtractEventEvidence(event)
	if usedGraphHop(event, expanded) {
		evidence = append(evidence, models.EvidenceLink{
			Type:  models.EvidenceGraphPath,
			Label: "Service adjacency via dependency graph",
		})
	}
	evidence = models.DedupeEvidence(evidence, maxEvidence)

	return models.ChangeCorrelation{
		ChangeEvent:        event,
		CorrelationScore:   overall,
		CorrelationReasons: explain(event, incident, deltaMinutes, expanded),
		WhyRelevant:        explain(event, incident, deltaMinutes, expanded),
		ServiceOverlap:     overlap,
		TimeDeltaMinutes:   deltaMinutes,
		Confidence: models.Confidence{
			Overall: overall,
			Factors: models.ConfidenceFactors{
				TimeProximity:    timeProximity,
				ServiceAdjacency: adjacency,
				ChangeRisk:       changeRisk,
				ChangeType:       changeType,
				EnvironmentMatch: environmentMatch,
			},
		},
		Evidence: evidence,
	}
}

func timeProximityFactor(incidentTime, eventTime time.Time) float64 {
	deltaMin := math.Abs(incidentTime.Sub(eventTime).Minutes())
	return math.Exp(-deltaMin / 30)
}

func eventServices(event models.ChangeEvent) []string {
	out := make([]string, 0, 1+len(event.AdditionalServices))
	out = append(out, event.Service)
	out = append(out, event.AdditionalServices...)
	return out
}

func serviceAdjacencyFactor(event models.ChangeEvent, expanded map[string]int) (float64, []string) {
	best := 0.0
	var overlap []string
	for _, svc := range eventServices(event) {
		hop, ok := expanded[svc]
		if !ok {
			continue
		}
		overlap = append(overlap, svc)
		var v float64
		switch hop {
		case 0:
			v = 1.0
		case 1:
			v = 0.7
		case 2:
			v = 0.4
		}
		if v > best {
			best = v
		}
	}
	sort.Strings(overlap)
	return best, overlap
}

func usedGraphHop(event models.ChangeEvent, expanded map[string]int) bool {
	for _, svc := range eventServices(event) {
		if hop, ok := expanded[svc]; ok && hop > 0 {
			return true
		}
	}
	return false
}

func changeRiskFactor(pred *models.BlastRadiusPrediction) float64 {
	if pred == nil {
		return 0.2
	}
	switch pred.RiskLevel {
	case models.RiskCritical:
		return 1.0
	case models.RiskHigh:
		return 0.8
	case models.RiskMedium:
		return 0.5
	case models.RiskLow:
		return 0.2
	default:
		return 0.2
	}
}

func changeTypeFactor(t models.ChangeType) float64 {
	switch t {
	case models.ChangeTypeDeployment:
		return 1.0
	case models.ChangeTypeConfigChange:
		return 0.9
	case models.ChangeTypeDBMigration:
		return 0.85
	case models.ChangeTypeFeatureFlag:
		return 0.8
	case models.ChangeTypeInfraModification:
		return 0.7
	case models.ChangeTypeCodeChange:
		return 0.65
	case models.ChangeTypeRollback:
		return 0.6
	case models.ChangeTypeScaling:
		return 0.5
	case models.ChangeTypeSecurityPatch:
		return 0.4
	default:
		return 0.5
	}
}

func environmentMatchFactor(eventEnv, incidentEnv string) float64 {
	if incidentEnv == "" {
		return 0.5
	}
	if eventEnv == incidentEnv {
		return 1.0
	}
	return 0.2
}

func explain(event models.ChangeEvent, incident models.Incident, deltaMinutes float64, expanded map[string]int) []string {
	var reasons []string
	switch {
	case deltaMinutes < 15:
		reasons = append(reasons, "Very recent (<15m)")
	case deltaMinutes < 60:
		reasons = append(reasons, "Recent (<60m)")
	}

	for _, svc := range eventServices(event) {
		hop, ok := expanded[svc]
		if !ok {
			continue
		}
		switch hop {
		case 0:
			reasons = append(reasons, fmt.Sprintf("Direct service match: %s", svc))
		case 1:
			reasons = append(reasons, fmt.Sprintf("1-hop neighbor: %s", svc))
		case 2:
			reasons = append(reasons, fmt.Sprintf("2-hop neighbor: %s", svc))
		}
	}

	if isHighImpactChangeType(event.ChangeType) {
		reasons = append(reasons, fmt.Sprintf("High-impact change type: %s", event.ChangeType))
	}

	if event.BlastRadius != nil && (event.BlastRadius.RiskLevel == models.RiskHigh || event.BlastRadius.RiskLevel == models.RiskCritical) {
		reasons = append(reasons, fmt.Sprintf("Blast-radius risk: %s", event.BlastRadius.RiskLevel))
	}

	if incident.IncidentEnvironment != "" {
		if event.Environment == incident.IncidentEnvironment {
			reasons = append(reasons, fmt.Sprintf("Environment match: %s", event.Environment))
		} else {
			reasons = append(reasons, fmt.Sprintf("Environment mismatch: %s vs %s", event.Environment, incident.IncidentEnvironment))
		}
	}

	return reasons
}

func isHighImpactChangeType(t models.ChangeType) bool {
	switch t {
	case models.ChangeTypeDeployment, models.ChangeTypeDBMigration, models.ChangeTypeInfraModification:
		return true
	default:
		return false
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
