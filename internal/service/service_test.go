package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/models"
	"github.com/moolen-fork/changeintel/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store, *graph.ServiceGraph) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	g := graph.New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "checkout"}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "payments"}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{
		Source: "checkout", Target: "payments", Type: models.EdgeTypeSync,
		Criticality: models.CriticalityCritical, Confidence: 1.0,
	}))

	return New(Config{Store: st, Graph: g, BucketMinutes: 15}), st, g
}

func ptr[T any](v T) *T { return &v }

func TestCreateEventFillsDefaultsAndRoundTrips(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, deduped, err := svc.CreateEvent(ctx, &models.PartialChangeEvent{
		Service:    ptr("checkout"),
		ChangeType: ptr(models.ChangeTypeDeployment),
		Summary:    ptr("deploy checkout v2"),
	}, "")
	require.NoError(t, err)
	assert.False(t, deduped)
	assert.NotEmpty(t, created.ID)

	fetched, err := svc.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "checkout", fetched.Service)
}

func TestCreateEventIdempotencyKeyDedupes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	partial := func() *models.PartialChangeEvent {
		return &models.PartialChangeEvent{
			Service:    ptr("checkout"),
			ChangeType: ptr(models.ChangeTypeDeployment),
			Summary:    ptr("deploy"),
		}
	}

	first, deduped1, err := svc.CreateEvent(ctx, partial(), "rollout-42")
	require.NoError(t, err)
	assert.False(t, deduped1)

	second, deduped2, err := svc.CreateEvent(ctx, partial(), "rollout-42")
	require.NoError(t, err)
	assert.True(t, deduped2)
	assert.Equal(t, first.ID, second.ID)
}

func TestDeleteEventRemovesIt(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, _, err := svc.CreateEvent(ctx, &models.PartialChangeEvent{
		Service:    ptr("checkout"),
		ChangeType: ptr(models.ChangeTypeDeployment),
		Summary:    ptr("deploy"),
	}, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(ctx, created.ID))
	_, err = svc.GetEvent(ctx, created.ID)
	assert.Error(t, err)
}

func TestBlastRadiusReflectsGraph(t *testing.T) {
	svc, _, _ := newTestService(t)
	pred, err := svc.BlastRadius([]string{"payments"}, models.ChangeTypeDeployment, 0)
	require.NoError(t, err)
	assert.Contains(t, pred.DirectServices, "checkout")
	assert.Equal(t, models.RiskCritical, pred.RiskLevel)
}

func TestCorrelateIncludesChangeSetsWhenRequested(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, _, err := svc.CreateEvent(ctx, &models.PartialChangeEvent{
		Service:    ptr("checkout"),
		ChangeType: ptr(models.ChangeTypeDeployment),
		Summary:    ptr("deploy checkout"),
		Timestamp:  ptr(now.Add(-5 * time.Minute)),
	}, "")
	require.NoError(t, err)

	result, err := svc.Correlate(ctx, CorrelateRequest{
		AffectedServices:  []string{"checkout"},
		IncidentTime:      now,
		WindowMinutes:     60,
		IncludeChangeSets: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Correlations, 1)
	require.Len(t, result.ChangeSets, 1)
}

func TestTriageDerivesSuspectedServicesFromEventCount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_, _, err := svc.CreateEvent(ctx, &models.PartialChangeEvent{
			Service:    ptr("checkout"),
			ChangeType: ptr(models.ChangeTypeDeployment),
			Summary:    ptr("deploy"),
			Timestamp:  ptr(now.Add(-time.Duration(i) * time.Minute)),
		}, "")
		require.NoError(t, err)
	}
	_, _, err := svc.CreateEvent(ctx, &models.PartialChangeEvent{
		Service:    ptr("payments"),
		ChangeType: ptr(models.ChangeTypeConfigChange),
		Summary:    ptr("tweak"),
		Timestamp:  ptr(now.Add(-time.Minute)),
	}, "")
	require.NoError(t, err)

	result, err := svc.Triage(ctx, TriageRequest{IncidentTime: now, WindowMinutes: 60})
	require.NoError(t, err)
	require.NotEmpty(t, result.SuspectedServices)
	assert.Equal(t, "checkout", result.SuspectedServices[0])
}

func TestVelocitySinglePeriodMatchesTrendLength(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	metrics, err := svc.Velocity(ctx, "checkout", 60, 0)
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	trend, err := svc.Velocity(ctx, "checkout", 60, 3)
	require.NoError(t, err)
	require.Len(t, trend, 3)
}

func TestGraphImportLoadsServicesAndDependencies(t *testing.T) {
	svc, _, g := newTestService(t)
	raw := []byte(`{"services":[{"id":"ledger","name":"ledger"}],"dependencies":[{"source":"payments","target":"ledger"}]}`)

	require.NoError(t, svc.GraphImport(raw, "test-import"))
	_, err := g.GetService("ledger")
	assert.NoError(t, err)
}

func TestDependenciesReturnsOutgoingEdges(t *testing.T) {
	svc, _, _ := newTestService(t)
	deps, err := svc.Dependencies("checkout")
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "payments", deps[0].Target)
}

func TestHealthCheckReportsStoreAndGraphStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	health := svc.HealthCheck(context.Background())
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.GraphStats.NodeCount)
}
