package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/models"
)

type fakeStore struct {
	events []*models.ChangeEvent
}

func (f *fakeStore) GetRecentForServices(ctx context.Context, services []string, windowMinutes int) ([]*models.ChangeEvent, error) {
	return f.events, nil
}

func (f *fakeStore) Query(ctx context.Context, opts models.QueryOptions) ([]*models.ChangeEvent, error) {
	return f.events, nil
}

func TestCorrelateRanksDirectServiceHigherThanUnrelated(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{events: []*models.ChangeEvent{
		{ID: "1", Service: "checkout", Timestamp: now.Add(-5 * time.Minute), ChangeType: models.ChangeTypeDeployment, Environment: "production"},
		{ID: "2", Service: "unrelated", Timestamp: now.Add(-5 * time.Minute), ChangeType: models.ChangeTypeDeployment, Environment: "production"},
	}}

	c := New(store, nil)
	incident := models.Incident{AffectedServices: []string{"checkout"}, IncidentTime: now, WindowMinutes: 60, IncidentEnvironment: "production"}

	results, err := c.Correlate(context.Background(), incident, models.CorrelateOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "1", results[0].ChangeEvent.ID)
}

func TestCorrelateExpandsThroughGraphNeighbors(t *testing.T) {
	now := time.Now().UTC()
	g := graph.New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "checkout"}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "payments"}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{Source: "checkout", Target: "payments", Confidence: 1.0}))

	store := &fakeStore{events: []*models.ChangeEvent{
		{ID: "1", Service: "payments", Timestamp: now.Add(-2 * time.Minute), ChangeType: models.ChangeTypeConfigChange, Environment: "production"},
	}}

	c := New(store, g)
	incident := models.Incident{AffectedServices: []string{"checkout"}, IncidentTime: now, WindowMinutes: 60}

	results, err := c.Correlate(context.Background(), incident, models.CorrelateOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ServiceOverlap, "payments")
	assert.Contains(t, results[0].CorrelationReasons, "1-hop neighbor: payments")
}

func TestCorrelateFiltersBelowMinScore(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{events: []*models.ChangeEvent{
		{ID: "1", Service: "other", Timestamp: now.Add(-10 * 24 * time.Hour), ChangeType: models.ChangeTypeSecurityPatch, Environment: "staging"},
	}}
	c := New(store, nil)
	incident := models.Incident{AffectedServices: []string{"checkout"}, IncidentTime: now, WindowMinutes: 60, IncidentEnvironment: "production"}

	results, err := c.Correlate(context.Background(), incident, models.CorrelateOptions{MinScore: 0.9})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCorrelateTruncatesToMaxResults(t *testing.T) {
	now := time.Now().UTC()
	var events []*models.ChangeEvent
	for i := 0; i < 5; i++ {
		events = append(events, &models.ChangeEvent{
			ID: string(rune('a' + i)), Service: "checkout", Timestamp: now, ChangeType: models.ChangeTypeDeployment, Environment: "production",
		})
	}
	store := &fakeStore{events: events}
	c := New(store, nil)
	incident := models.Incident{AffectedServices: []string{"checkout"}, IncidentTime: now, WindowMinutes: 60}

	results, err := c.Correlate(context.Background(), incident, models.CorrelateOptions{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCorrelateExpandsThroughTwoGraphHops(t *testing.T) {
	now := time.Now().UTC()
	g := graph.New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "A"}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "B"}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "C"}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{Source: "A", Target: "B", Confidence: 1.0}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{Source: "B", Target: "C", Confidence: 1.0}))

	store := &fakeStore{events: []*models.ChangeEvent{
		{ID: "1", Service: "C", Timestamp: now, ChangeType: models.ChangeTypeDeployment, Environment: "production"},
	}}

	c := New(store, g)
	incident := models.Incident{AffectedServices: []string{"A"}, IncidentTime: now, WindowMinutes: 60}

	results, err := c.Correlate(context.Background(), incident, models.CorrelateOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"C"}, results[0].ServiceOverlap)
	assert.Contains(t, results[0].CorrelationReasons, "2-hop neighbor: C")
}

func TestCorrelationLawTimeProximityMonotonicity(t *testing.T) {
	now := time.Now().UTC()
	closer := &models.ChangeEvent{ID: "close", Service: "checkout", Timestamp: now.Add(-5 * time.Minute), ChangeType: models.ChangeTypeDeployment, Environment: "production"}
	farther := &models.ChangeEvent{ID: "far", Service: "checkout", Timestamp: now.Add(-50 * time.Minute), ChangeType: models.ChangeTypeDeployment, Environment: "production"}

	store := &fakeStore{events: []*models.ChangeEvent{closer, farther}}
	c := New(store, nil)
	incident := models.Incident{AffectedServices: []string{"checkout"}, IncidentTime: now, WindowMinutes: 60, IncidentEnvironment: "production"}

	results, err := c.Correlate(context.Background(), incident, models.CorrelateOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var closeScore, farScore float64
	for _, r := range results {
		if r.ChangeEvent.ID == "close" {
			closeScore = r.CorrelationScore
		} else {
			farScore = r.CorrelationScore
		}
	}
	assert.GreaterOrEqual(t, closeScore, farScore)
}

func TestCorrelationLawDirectBeatsOneHopBeatsTwoHop(t *testing.T) {
	now := time.Now().UTC()
	g := graph.New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "A"}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "B"}))
	require.NoError(t, g.AddService(models.ServiceNode{ID: "C"}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{Source: "A", Target: "B", Confidence: 1.0}))
	require.NoError(t, g.AddDependency(models.DependencyEdge{Source: "B", Target: "C", Confidence: 1.0}))

	direct := &models.ChangeEvent{ID: "direct", Service: "A", Timestamp: now, ChangeType: models.ChangeTypeDeployment, Environment: "production"}
	oneHop := &models.ChangeEvent{ID: "onehop", Service: "B", Timestamp: now, ChangeType: models.ChangeTypeDeployment, Environment: "production"}
	twoHop := &models.ChangeEvent{ID: "twohop", Service: "C", Timestamp: now, ChangeType: models.ChangeTypeDeployment, Environment: "production"}

	store := &fakeStore{events: []*models.ChangeEvent{direct, oneHop, twoHop}}
	c := New(store, g)
	incident := models.Incident{AffectedServices: []string{"A"}, IncidentTime: now, WindowMinutes: 60, IncidentEnvironment: "production"}

	results, err := c.Correlate(context.Background(), incident, models.CorrelateOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	scores := map[string]float64{}
	for _, r := range results {
		scores[r.ChangeEvent.ID] = r.CorrelationScore
	}
	assert.GreaterOrEqual(t, scores["direct"], scores["onehop"])
	assert.GreaterOrEqual(t, scores["onehop"], scores["twohop"])
}

func TestCorrelationLawCriticalBlastRadiusBeatsLow(t *testing.T) {
	now := time.Now().UTC()
	critical := &models.ChangeEvent{
		ID: "critical", Service: "checkout", Timestamp: now, ChangeType: models.ChangeTypeDeployment, Environment: "production",
		BlastRadius: &models.BlastRadiusPrediction{RiskLevel: models.RiskCritical},
	}
	low := &models.ChangeEvent{
		ID: "low", Service: "checkout", Timestamp: now, ChangeType: models.ChangeTypeDeployment, Environment: "production",
		BlastRadius: &models.BlastRadiusPrediction{RiskLevel: models.RiskLow},
	}

	store := &fakeStore{events: []*models.ChangeEvent{critical, low}}
	c := New(store, nil)
	incident := models.Incident{AffectedServices: []string{"checkout"}, IncidentTime: now, WindowMinutes: 60, IncidentEnvironment: "production"}

	results, err := c.Correlate(context.Background(), incident, models.CorrelateOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	scores := map[string]float64{}
	for _, r := range results {
		scores[r.ChangeEvent.ID] = r.CorrelationScore
	}
	assert.Greater(t, scores["critical"], scores["low"])
}
