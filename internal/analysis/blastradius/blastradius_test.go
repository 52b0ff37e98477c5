package blastradius

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/models"
)

func buildGraph(t *testing.T) *graph.ServiceGraph {
	t.Helper()
	g := graph.New()
	for _, id := range []string{"payments", "checkout", "web", "mobile", "ledger"} {
		require.NoError(t, g.AddService(models.ServiceNode{ID: id, Type: models.NodeTypeService}))
	}
	// checkout and web directly depend on payments (consumers -> upstream of payments).
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "checkout", Target: "payments", Criticality: models.CriticalityCritical, Confidence: 1.0,
	}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "web", Target: "checkout", Criticality: models.CriticalityCritical, Confidence: 0.95,
	}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "mobile", Target: "checkout", Criticality: models.CriticalityOptional, Confidence: 0.6,
	}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "payments", Target: "ledger", Criticality: models.CriticalityCritical, Confidence: 1.0,
	}))
	return g
}

func TestPredictClassifiesDirectAndDownstream(t *testing.T) {
	g := buildGraph(t)
	a := New(g)

	pred := a.Predict([]string{"payments"}, "", 3)

	assert.Contains(t, pred.DirectServices, "checkout")
	assert.Contains(t, pred.DownstreamServices, "web")
	assert.NotContains(t, pred.DirectServices, "web")
	assert.True(t, pred.CriticalPathAffected)
}

func TestPredictExcludesTargetsFromDependentBuckets(t *testing.T) {
	g := buildGraph(t)
	a := New(g)

	pred := a.Predict([]string{"payments", "checkout"}, "", 3)
	assert.NotContains(t, pred.DirectServices, "payments")
	assert.NotContains(t, pred.DirectServices, "checkout")
}

func TestPredictRiskEscalatesOnManyDirectDependents(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "core"}))
	for i := 0; i < 5; i++ {
		id := "svc" + string(rune('a'+i))
		require.NoError(t, g.AddService(models.ServiceNode{ID: id}))
		require.NoError(t, g.AddDependency(models.DependencyEdge{
			Source: id, Target: "core", Criticality: models.CriticalityDegraded, Confidence: 0.9,
		}))
	}
	a := New(g)
	pred := a.Predict([]string{"core"}, "", 3)
	assert.Equal(t, models.RiskHigh, pred.RiskLevel)
}

func TestPredictDBMigrationEscalatesMediumWithOneDirect(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "db"}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "api"}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "api", Target: "db", Criticality: models.CriticalityDegraded, Confidence: 0.9,
	}))
	a := New(g)
	pred := a.Predict([]string{"db"}, models.ChangeTypeDBMigration, 3)
	assert.Equal(t, models.RiskMedium, pred.RiskLevel)
}

func TestPredictIsolatedTargetYieldsLowRiskAndRationale(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "lonely"}))
	a := New(g)
	pred := a.Predict([]string{"lonely"}, "", 3)
	assert.Equal(t, models.RiskLow, pred.RiskLevel)
	assert.Contains(t, pred.Rationale, "No known dependents: the target(s) appear isolated in the graph")
}

func TestPredictPossibleDependentOnLowConfidencePath(t *testing.T) {
	g := buildGraph(t)
	a := New(g)
	pred := a.Predict([]string{"checkout"}, "", 3)
	assert.Contains(t, pred.PossibleDependents, "mobile")
	assert.Contains(t, pred.HighConfidenceDependents, "web")
}
