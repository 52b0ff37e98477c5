// Package blastradius implements the BlastRadiusAnalyzer: given a set of
// target services, predicts which services are affected upstream if the
// targets break or change, classified by confidence and risk.
package blastradius

import (
	"fmt"
	"sort"

	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/models"
)

// maxEvidence caps the deduplicated graph_path evidence emitted per prediction.
const maxEvidence = 40

// highConfidenceThreshold is the minimum aggregated confidence for a
// dependent to be treated as high-confidence rather than possible.
const highConfidenceThreshold = 0.75

// inferredDowngradeThreshold: a path that visited an inferred edge is
// demoted out of high-confidence unless its aggregated confidence clears
// this bar, since a single low-confidence inferred hop can still leave the
// running-minimum confidence above highConfidenceThreshold.
const inferredDowngradeThreshold = 0.9

// impactSource is the traversal surface Predict needs. Both
// *graph.ServiceGraph and *graph.ImpactCache satisfy it, so Analyzer can
// sit on top of either the raw graph or a cached view of it.
type impactSource interface {
	GetUpstreamImpact(node string, maxDepth int) []models.ImpactPath
}

// Analyzer predicts blast radius over a ServiceGraph.
type Analyzer struct {
	graph  impactSource
	logger *logging.Logger
}

// New returns an Analyzer backed by g.
func New(g impactSource) *Analyzer {
	return &Analyzer{graph: g, logger: logging.GetLogger("analysis.blastradius")}
}

// Predict runs the blast-radius algorithm for targets, bounded by maxDepth
// (0 defaults to graph.DefaultMaxDepth). changeType, if non-empty, feeds
// the db_migration risk-escalation rule and the rationale text.
func (a *Analyzer) Predict(targets []string, changeType models.ChangeType, maxDepth int) *models.BlastRadiusPrediction {
	if maxDepth <= 0 {
		maxDepth = graph.DefaultMaxDepth
	}
	targetSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}

	var allPaths []models.ImpactPath
	for _, target := range targets {
		allPaths = append(allPaths, a.graph.GetUpstreamImpact(target, maxDepth)...)
	}

	direct := map[string]bool{}
	downstream := map[string]bool{}
	highConfidence := map[string]bool{}
	possible := map[string]bool{}
	criticalPathAffected := false
	var evidence []models.EvidenceLink

	for _, p := range allPaths {
		if targetSet[p.Affected] {
			continue
		}
		if p.Hops <= 2 {
			direct[p.Affected] = true
		} else {
			downstream[p.Affected] = true
		}

		if isHighConfidence(p) {
			highConfidence[p.Affected] = true
		} else {
			possible[p.Affected] = true
		}

		if p.Criticality == models.CriticalityCritical {
			criticalPathAffected = true
		}

		evidence = append(evidence, models.EvidenceLink{
			Type:  models.EvidenceGraphPath,
			Label: pathLabel(p.Path),
			Details: map[string]interface{}{
				"from":        p.Source,
				"to":          p.Affected,
				"hops":        len(p.Path) - 1,
				"criticality": p.Criticality,
				"confidence":  p.Confidence,
				"edgeSources": p.EdgeSources,
			},
		})
	}

	// A service already classified direct never also counts downstream.
	for svc := range direct {
		delete(downstream, svc)
	}
	// A possible dependent that is also high-confidence via another path is
	// not uncertain; only keep it in possible when no high-confidence path
	// reaches the same service.
	for svc := range highConfidence {
		delete(possible, svc)
	}

	riskLevel := classifyRisk(criticalPathAffected, len(downstream), len(direct), changeType)

	pred := &models.BlastRadiusPrediction{
		DirectServices:           sortedKeys(direct),
		DownstreamServices:       sortedKeys(downstream),
		HighConfidenceDependents: sortedKeys(highConfidence),
		PossibleDependents:       sortedKeys(possible),
		CriticalPathAffected:     criticalPathAffected,
		RiskLevel:                riskLevel,
		ImpactPaths:              allPaths,
		ConfidenceSummary: models.ConfidenceSummary{
			HighConfidenceCount: len(highConfidence),
			PossibleCount:       len(possible),
		},
		Evidence: models.DedupeEvidence(evidence, maxEvidence),
	}
	pred.Rationale = buildRationale(targets, pred, changeType)
	return pred
}

func isHighConfidence(p models.ImpactPath) bool {
	if p.Confidence < highConfidenceThreshold {
		return false
	}
	for _, s := range p.EdgeSources {
		if s == models.EdgeSourceInferred && p.Confidence < inferredDowngradeThreshold {
			return false
		}
	}
	return true
}

func classifyRisk(criticalPathAffected bool, downstreamCount, directCount int, changeType models.ChangeType) models.RiskLevel {
	switch {
	case criticalPathAffected:
		return models.RiskCritical
	case downstreamCount > 10 || directCount > 3:
		return models.RiskHigh
	case downstreamCount > 3 || directCount > 1:
		return models.RiskMedium
	case changeType == models.ChangeTypeDBMigration && directCount > 0:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func pathLabel(path []string) string {
	label := "Impact path"
	for i, node := range path {
		if i == 0 {
			label += " " + node
			continue
		}
		label += " -> " + node
	}
	return label
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func buildRationale(targets []string, pred *models.BlastRadiusPrediction, changeType models.ChangeType) []string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Targets: %v", targets))
	lines = append(lines, fmt.Sprintf("%d direct dependent(s)", len(pred.DirectServices)))
	lines = append(lines, fmt.Sprintf("%d downstream dependent(s)", len(pred.DownstreamServices)))
	lines = append(lines, fmt.Sprintf("%d high-confidence dependent(s)", pred.ConfidenceSummary.HighConfidenceCount))
	if pred.CriticalPathAffected {
		lines = append(lines, "A critical-criticality path is affected")
	}
	if changeType != "" {
		lines = append(lines, fmt.Sprintf("Change type: %s", changeType))
	}
	if len(pred.DirectServices) == 0 && len(pred.DownstreamServices) == 0 {
		lines = append(lines, "No known dependents: the target(s) appear isolated in the graph")
	}
	lines = append(lines, fmt.Sprintf("Risk level: %s", pred.RiskLevel))
	return lines
}
