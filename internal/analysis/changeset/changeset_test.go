package changeset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen-fork/changeintel/internal/analysis/blastradius"
	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/models"
)

func TestGroupByExplicitChangeSetID(t *testing.T) {
	now := time.Now().UTC()
	events := []models.ChangeEvent{
		{ID: "a", Service: "checkout", ChangeSetID: "rollout-1", Timestamp: now, ChangeType: models.ChangeTypeDeployment, Environment: "production"},
		{ID: "b", Service: "payments", ChangeSetID: "rollout-1", Timestamp: now.Add(time.Minute), ChangeType: models.ChangeTypeDeployment, Environment: "production"},
	}
	g := New(nil, 15)
	sets := g.Group(events)
	require.Len(t, sets, 1)
	assert.Equal(t, "explicit:rollout-1", sets[0].Key)
	assert.Equal(t, 1.0, sets[0].Confidence)
	assert.ElementsMatch(t, []string{"checkout", "payments"}, sets[0].Services)
}

func TestGroupByPullRequestTier(t *testing.T) {
	now := time.Now().UTC()
	events := []models.ChangeEvent{
		{ID: "a", Service: "checkout", Repository: "acme/checkout", PRNumber: 42, Timestamp: now, ChangeType: models.ChangeTypeCodeChange, Environment: "production"},
		{ID: "b", Service: "checkout", Repository: "acme/checkout", PRNumber: 42, Timestamp: now.Add(time.Minute), ChangeType: models.ChangeTypeCodeChange, Environment: "production"},
	}
	g := New(nil, 15)
	sets := g.Group(events)
	require.Len(t, sets, 1)
	assert.Equal(t, "pr:acme/checkout:42", sets[0].Key)
	assert.Equal(t, 0.90, sets[0].Confidence)
}

func TestGroupFallsBackToTimeBucket(t *testing.T) {
	now := time.Now().UTC()
	events := []models.ChangeEvent{
		{ID: "a", Service: "checkout", Timestamp: now, ChangeType: models.ChangeTypeConfigChange, Environment: "production"},
	}
	g := New(nil, 15)
	sets := g.Group(events)
	require.Len(t, sets, 1)
	assert.Equal(t, 0.62, sets[0].Confidence)
}

func TestGroupEnvironmentMixedWhenNotUniform(t *testing.T) {
	now := time.Now().UTC()
	events := []models.ChangeEvent{
		{ID: "a", Service: "checkout", ChangeSetID: "x", Timestamp: now, Environment: "staging"},
		{ID: "b", Service: "checkout", ChangeSetID: "x", Timestamp: now.Add(time.Minute), Environment: "production"},
	}
	g := New(nil, 15)
	sets := g.Group(events)
	require.Len(t, sets, 1)
	assert.Equal(t, "mixed", sets[0].Environment)
}

func TestReadinessDeltaDetectsRunbookUpdate(t *testing.T) {
	now := time.Now().UTC()
	events := []models.ChangeEvent{
		{ID: "a", Service: "checkout", ChangeSetID: "x", Timestamp: now, Environment: "production", FilesChanged: []string{"docs/runbooks/checkout.md"}},
	}
	g := New(nil, 15)
	sets := g.Group(events)
	require.Len(t, sets, 1)
	assert.Equal(t, models.ReadinessUpdated, sets[0].ReadinessDelta.RunbookUpdated)
	assert.Equal(t, models.ReadinessMissing, sets[0].ReadinessDelta.MonitoringUpdated)
}

func TestRankForIncidentScoresAndSorts(t *testing.T) {
	now := time.Now().UTC()
	g := graph.New()
	require.NoError(t, g.AddService(models.ServiceNode{ID: "checkout"}))

	correlations := []models.ChangeCorrelation{
		{
			ChangeEvent:      models.ChangeEvent{ID: "a", Service: "checkout", ChangeSetID: "x", Timestamp: now, ChangeType: models.ChangeTypeDeployment},
			CorrelationScore: 0.9,
			WhyRelevant:      []string{"Very recent (<15m)"},
			Confidence:       models.Confidence{Overall: 0.9, Factors: models.ConfidenceFactors{TimeProximity: 0.9}},
		},
		{
			ChangeEvent:      models.ChangeEvent{ID: "b", Service: "checkout", ChangeSetID: "x", Timestamp: now.Add(time.Minute), ChangeType: models.ChangeTypeDeployment},
			CorrelationScore: 0.5,
			WhyRelevant:      []string{"Recent (<60m)"},
			Confidence:       models.Confidence{Overall: 0.5, Factors: models.ConfidenceFactors{TimeProximity: 0.5}},
		},
	}

	grouper := New(g, 15)
	analyzer := blastradius.New(g)
	ranked := grouper.RankForIncident(correlations, analyzer, 3)

	require.Len(t, ranked, 1)
	assert.InDelta(t, 0.65*0.9+0.35*0.7, ranked[0].Score, 0.01)
	assert.NotNil(t, ranked[0].SuggestedBlastRadius)
}
