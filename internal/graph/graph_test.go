package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen-fork/changeintel/internal/models"
)

func buildChain(t *testing.T) *ServiceGraph {
	t.Helper()
	g := New()
	for _, id := range []string{"checkout", "payments", "ledger", "bank-api"} {
		require.NoError(t, g.AddService(models.ServiceNode{ID: id, Type: models.NodeTypeService}))
	}
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "checkout", Target: "payments", Criticality: models.CriticalityCritical, Confidence: 1.0,
	}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "payments", Target: "ledger", Criticality: models.CriticalityCritical, Confidence: 0.9,
	}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "ledger", Target: "bank-api", Criticality: models.CriticalityOptional, Confidence: 0.8,
	}))
	return g
}

func TestAddServiceIdempotentByID(t *testing.T) {
	g := New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "svc", Team: "a"}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "svc", Team: "b"}))
	n, err := g.GetService("svc")
	require.NoError(t, err)
	assert.Equal(t, "b", n.Team)
}

func TestAddDependencyRequiresExistingEndpoints(t *testing.T) {
	g := New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "checkout"}))
	err := g.AddDependency(models.DependencyEdge{Source: "checkout", Target: "missing"})
	assert.Error(t, err)
}

func TestGetDependenciesAndDependents(t *testing.T) {
	g := buildChain(t)
	assert.Equal(t, []string{"payments"}, g.GetDependencies("checkout"))
	assert.Equal(t, []string{"checkout"}, g.GetDependents("payments"))
}

func TestRemoveServiceClearsIncidentEdges(t *testing.T) {
	g := buildChain(t)
	require.NoError(t, g.RemoveService("payments"))
	assert.Empty(t, g.GetDependencies("checkout"))
	assert.Empty(t, g.GetDependents("ledger"))
}

func TestFindPathShortestByHops(t *testing.T) {
	g := buildChain(t)
	path := g.FindPath("checkout", "bank-api")
	assert.Equal(t, []string{"checkout", "payments", "ledger", "bank-api"}, path)
}

func TestFindPathReturnsNilWhenUnreachable(t *testing.T) {
	g := buildChain(t)
	require.NoError(t, g.AddService(models.ServiceNode{ID: "isolated"}))
	assert.Nil(t, g.FindPath("checkout", "isolated"))
}

func TestGetDownstreamImpactWeakestLinkCriticality(t *testing.T) {
	g := buildChain(t)
	paths := g.GetDownstreamImpact("checkout", 3)
	require.NotEmpty(t, paths)

	var toBankAPI *models.ImpactPath
	for i := range paths {
		if paths[i].Affected == "bank-api" {
			toBankAPI = &paths[i]
		}
	}
	require.NotNil(t, toBankAPI)
	assert.Equal(t, models.CriticalityOptional, toBankAPI.Criticality)
	assert.Equal(t, 4, toBankAPI.Hops)
	assert.InDelta(t, 0.8, toBankAPI.Confidence, 0.0001)
}

func TestGetDownstreamImpactDirectHopsEqualsTwo(t *testing.T) {
	g := buildChain(t)
	paths := g.GetDownstreamImpact("checkout", 3)
	for _, p := range paths {
		if p.Affected == "payments" {
			assert.Equal(t, 2, p.Hops)
			return
		}
	}
	t.Fatal("expected a direct path to payments")
}

func TestGetUpstreamImpactFromLeaf(t *testing.T) {
	g := buildChain(t)
	paths := g.GetUpstreamImpact("bank-api", 3)
	affected := map[string]bool{}
	for _, p := range paths {
		affected[p.Affected] = true
	}
	assert.True(t, affected["ledger"])
	assert.True(t, affected["payments"])
	assert.True(t, affected["checkout"])
}

func TestMergeDoesNotOverwriteExistingNodes(t *testing.T) {
	base := New()
	require.NoError(t, base.AddService(models.ServiceNode{ID: "checkout", Team: "base-team"}))

	incoming := New()
	require.NoError(t, incoming.AddService(models.ServiceNode{ID: "checkout", Team: "incoming-team"}))
	require.NoError(t, incoming.AddService(models.ServiceNode{ID: "payments", Team: "incoming-team"}))

	base.Merge(incoming, "import")

	n, err := base.GetService("checkout")
	require.NoError(t, err)
	assert.Equal(t, "base-team", n.Team)

	added, err := base.GetService("payments")
	require.NoError(t, err)
	assert.Equal(t, "import", added.Metadata["source"])
}

func TestToJSONFromJSONRoundTrip(t *testing.T) {
	g := buildChain(t)
	data, err := g.ToJSON()
	require.NoError(t, err)

	g2, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, g.GetStats().NodeCount, g2.GetStats().NodeCount)
	assert.Equal(t, g.GetStats().EdgeCount, g2.GetStats().EdgeCount)
	assert.Equal(t, []string{"payments"}, g2.GetDependencies("checkout"))
}

func TestGetStatsCountsCriticalTier(t *testing.T) {
	g := New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "a", Tier: models.TierCritical, Type: models.NodeTypeService}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "b", Tier: models.TierLow, Type: models.NodeTypeService}))
	stats := g.GetStats()
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.CriticalTierCount)
}
