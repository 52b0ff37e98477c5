package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func sampleEvent(service string) *models.PartialChangeEvent {
	return &models.PartialChangeEvent{
		Service:     ptr(service),
		ChangeType:  ptr(models.ChangeTypeDeployment),
		Source:      ptr(models.SourceGitHub),
		Initiator:   ptr(models.InitiatorHuman),
		Status:      ptr(models.StatusCompleted),
		Environment: ptr("production"),
		Summary:     ptr("deploy " + service),
		Tags:        []string{"release"},
		Metadata:    map[string]interface{}{"k": "v"},
	}
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, dup, err := s.Insert(ctx, sampleEvent("checkout"))
	require.NoError(t, err)
	assert.False(t, dup)
	assert.NotEmpty(t, inserted.ID)

	fetched, err := s.Get(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, "checkout", fetched.Service)
	assert.Equal(t, models.ChangeTypeDeployment, fetched.ChangeType)
}

func TestInsertIdempotencyKeyDedupes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1 := sampleEvent("checkout")
	e1.IdempotencyKey = ptr("deploy-42")
	first, dup1, err := s.Insert(ctx, e1)
	require.NoError(t, err)
	assert.False(t, dup1)

	e2 := sampleEvent("checkout")
	e2.IdempotencyKey = ptr("deploy-42")
	second, dup2, err := s.Insert(ctx, e2)
	require.NoError(t, err)
	assert.True(t, dup2)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.KindNotFound))
}

func TestUpdatePatchesOnlySetFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, _, err := s.Insert(ctx, sampleEvent("checkout"))
	require.NoError(t, err)

	newSummary := "rolled back deploy"
	updated, err := s.Update(ctx, inserted.ID, &models.PartialChangeEvent{Summary: &newSummary})
	require.NoError(t, err)
	assert.Equal(t, newSummary, updated.Summary)
	assert.Equal(t, "checkout", updated.Service)
}

func TestDeleteRemovesEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, _, err := s.Insert(ctx, sampleEvent("checkout"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, inserted.ID))
	_, err = s.Get(ctx, inserted.ID)
	require.Error(t, err)
}

func TestQueryFiltersByServiceAndType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleEvent("checkout")
	b := sampleEvent("billing")
	b.ChangeType = ptr(models.ChangeTypeConfigChange)
	_, _, err := s.Insert(ctx, a)
	require.NoError(t, err)
	_, _, err = s.Insert(ctx, b)
	require.NoError(t, err)

	results, err := s.Query(ctx, models.QueryOptions{Services: []string{"checkout"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "checkout", results[0].Service)

	results, err = s.Query(ctx, models.QueryOptions{ChangeTypes: []models.ChangeType{models.ChangeTypeConfigChange}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "billing", results[0].Service)
}

func TestSearchMatchesSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := sampleEvent("checkout")
	e.Summary = ptr("fix checkout timeout regression")
	_, _, err := s.Insert(ctx, e)
	require.NoError(t, err)

	results, err := s.Search(ctx, "timeout", models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Summary, "timeout")
}

func TestGetVelocityCountsWithinWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Insert(ctx, sampleEvent("checkout"))
	require.NoError(t, err)

	metric, err := s.GetVelocity(ctx, "checkout", 60)
	require.NoError(t, err)
	assert.Equal(t, 1, metric.ChangeCount)
	assert.Equal(t, 1, metric.ChangeTypes[models.ChangeTypeDeployment])
}

func TestGetVelocityTrendReturnsOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := sampleEvent("api")
	_, _, err := s.Insert(ctx, e)
	require.NoError(t, err)

	trend, err := s.GetVelocityTrend(ctx, "api", 60, 3)
	require.NoError(t, err)
	require.Len(t, trend, 3)
	assert.Equal(t, 0, trend[0].ChangeCount)
	assert.Equal(t, 0, trend[1].ChangeCount)
	assert.Equal(t, 1, trend[2].ChangeCount)
	assert.True(t, trend[0].WindowStart.Before(trend[1].WindowStart))
	assert.True(t, trend[1].WindowStart.Before(trend[2].WindowStart))
}

func TestGetVelocityTrendCountsBoundaryEventInLaterWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// An event exactly on the shared boundary between period 0 and period 1
	// (now-120min, with windowMinutes=60) must be counted once, in the
	// later window (period 1), never in the earlier one (period 0).
	e := sampleEvent("api")
	e.Timestamp = ptr(time.Now().UTC().Add(-120 * time.Minute))
	_, _, err := s.Insert(ctx, e)
	require.NoError(t, err)

	trend, err := s.GetVelocityTrend(ctx, "api", 60, 3)
	require.NoError(t, err)
	require.Len(t, trend, 3)
	assert.Equal(t, 0, trend[0].ChangeCount, "boundary event must not land in the earlier window")
	assert.Equal(t, 1, trend[1].ChangeCount, "boundary event must land in the later window")
	assert.Equal(t, 0, trend[2].ChangeCount)
}

func TestGetStatsAggregatesAcrossDimensions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Insert(ctx, sampleEvent("checkout"))
	require.NoError(t, err)
	b := sampleEvent("billing")
	b.Source = ptr(models.SourceGitLab)
	_, _, err = s.Insert(ctx, b)
	require.NoError(t, err)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.BySource[models.SourceGitHub])
	assert.Equal(t, 1, stats.BySource[models.SourceGitLab])
}

func TestPruneOlderThanRemovesStaleEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := sampleEvent("checkout")
	old.Timestamp = ptr(time.Now().Add(-48 * time.Hour))
	_, _, err := s.Insert(ctx, old)
	require.NoError(t, err)

	recent := sampleEvent("checkout")
	_, _, err = s.Insert(ctx, recent)
	require.NoError(t, err)

	n, err := s.PruneOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx *Tx) error {
		_, _, err := tx.Insert(ctx, sampleEvent("checkout"))
		require.NoError(t, err)
		return assert.AnError
	})
	require.Error(t, err)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}
