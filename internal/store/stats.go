package store

import (
	"context"
	"time"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// GetStats summarizes the entire store's contents by change type,
// source, and environment.
func (s *Store) GetStats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{
		ByType:        make(map[models.ChangeType]int),
		BySource:      make(map[models.ChangeSource]int),
		ByEnvironment: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM change_events").Scan(&stats.Total); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "count change events")
	}

	if err := scanGroupCounts(ctx, s, "change_type", func(k string, n int) { stats.ByType[models.ChangeType(k)] = n }); err != nil {
		return nil, err
	}
	if err := scanGroupCounts(ctx, s, "source", func(k string, n int) { stats.BySource[models.ChangeSource(k)] = n }); err != nil {
		return nil, err
	}
	if err := scanGroupCounts(ctx, s, "environment", func(k string, n int) { stats.ByEnvironment[k] = n }); err != nil {
		return nil, err
	}
	return stats, nil
}

func scanGroupCounts(ctx context.Context, s *Store, column string, assign func(key string, count int)) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM change_events GROUP BY "+column)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindUnavailable, err, "group change events by %s", column)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return coreerrors.Wrap(coreerrors.KindUnavailable, err, "scan group count")
		}
		assign(key, count)
	}
	return rows.Err()
}

// PruneOlderThan deletes every event with timestamp before cutoff and
// returns the number of rows removed.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM change_events WHERE timestamp < ?", cutoff.UnixNano())
	if err != nil {
		return 0, coreerrors.Wrap(coreerrors.KindUnavailable, err, "prune change events")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, coreerrors.Wrap(coreerrors.KindUnavailable, err, "prune rows affected")
	}
	return int(n), nil
}
