package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// queryBuilder accumulates AND-combined WHERE clauses and their args for
// the filters recognized by QueryOptions.
type queryBuilder struct {
	clauses []string
	args    []interface{}
}

func (b *queryBuilder) add(clause string, args ...interface{}) {
	b.clauses = append(b.clauses, clause)
	b.args = append(b.args, args...)
}

func (b *queryBuilder) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		b.args = append(b.args, v)
	}
	b.clauses = append(b.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
}

func (b *queryBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// services matches a row whose service column equals any of values, OR
// whose additional_services JSON array contains any of values.
func (b *queryBuilder) services(values []string) {
	if len(values) == 0 {
		return
	}
	clauses := make([]string, 0, len(values)*2)
	for _, v := range values {
		clauses = append(clauses, "service = ?", "additional_services LIKE ?")
		b.args = append(b.args, v, "%\""+v+"\"%")
	}
	b.clauses = append(b.clauses, "("+strings.Join(clauses, " OR ")+")")
}

func buildQueryOptionsWhere(opts models.QueryOptions) *queryBuilder {
	b := &queryBuilder{}
	b.services(opts.Services)
	if len(opts.ChangeTypes) > 0 {
		types := make([]string, len(opts.ChangeTypes))
		for i, t := range opts.ChangeTypes {
			types[i] = string(t)
		}
		b.in("change_type", types)
	}
	if len(opts.Sources) > 0 {
		sources := make([]string, len(opts.Sources))
		for i, t := range opts.Sources {
			sources[i] = string(t)
		}
		b.in("source", sources)
	}
	if opts.Environment != "" {
		b.add("environment = ?", opts.Environment)
	}
	if opts.Since != nil {
		b.add("timestamp >= ?", opts.Since.UnixNano())
	}
	if opts.Until != nil {
		b.add("timestamp <= ?", opts.Until.UnixNano())
	}
	if opts.Initiator != nil {
		b.add("initiator = ?", string(*opts.Initiator))
	}
	if opts.Status != nil {
		b.add("status = ?", string(*opts.Status))
	}
	return b
}

// Query returns events matching all of opts' set filters, ordered by
// timestamp descending (most recent first), capped at opts.Limit (defaults
// to 50 when unset).
func (s *Store) Query(ctx context.Context, opts models.QueryOptions) ([]*models.ChangeEvent, error) {
	b := buildQueryOptionsWhere(opts)
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + selectColumns + " FROM change_events" + b.where() +
		fmt.Sprintf(" ORDER BY timestamp DESC LIMIT %d", limit)
	return s.queryEvents(ctx, query, b.args...)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*models.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "query change events")
	}
	defer rows.Close()

	var out []*models.ChangeEvent
	for rows.Next() {
		r, err := scanRow(rows.Scan)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "scan change event")
		}
		e, err := toEvent(r)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindInvariantViolation, err, "decode change event")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "iterate change events")
	}
	return out, nil
}

// GetRecentForServices is convenience sugar over Query: the most recent
// events touching any of services (matching Service or AdditionalServices)
// within the last windowMinutes, capped at 100.
func (s *Store) GetRecentForServices(ctx context.Context, services []string, windowMinutes int) ([]*models.ChangeEvent, error) {
	if len(services) == 0 {
		return nil, nil
	}
	since := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)
	return s.Query(ctx, models.QueryOptions{
		Services: services,
		Since:    &since,
		Limit:    100,
	})
}
