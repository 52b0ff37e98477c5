package store

import (
	"context"
	"strings"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// Search runs a full-text query over summary and service, ranked by FTS5's
// bm25 relevance, optionally narrowed by the same AND-combined filters as
// Query. q is whitespace-split into tokens; tokens shorter than two
// characters are discarded, and each surviving token becomes a prefix term
// ORed against the others.
func (s *Store) Search(ctx context.Context, q string, opts models.QueryOptions) ([]*models.ChangeEvent, error) {
	matchExpr := buildMatchExpr(q)
	if matchExpr == "" {
		return s.Query(ctx, opts)
	}
	b := buildQueryOptionsWhere(opts)
	query := `SELECT ` + prefixedColumns("ce") + `
		FROM change_events_fts
		JOIN change_events ce ON ce.rowid = change_events_fts.rowid
		WHERE change_events_fts MATCH ?`
	args := append([]interface{}{matchExpr}, b.args...)
	if len(b.clauses) > 0 {
		query += " AND " + joinClauses(b.clauses)
	}
	query += " ORDER BY bm25(change_events_fts)"
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "search change events")
	}
	defer rows.Close()

	var out []*models.ChangeEvent
	for rows.Next() {
		r, err := scanRow(rows.Scan)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "scan search result")
		}
		e, err := toEvent(r)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindInvariantViolation, err, "decode search result")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// buildMatchExpr tokenizes q on whitespace, drops tokens shorter than two
// characters, and ORs the survivors together as FTS5 prefix terms. Returns
// "" if no token survives, signaling the caller to fall back to Query.
func buildMatchExpr(q string) string {
	fields := strings.Fields(q)
	var terms []string
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"*`)
	}
	if len(terms) == 0 {
		return ""
	}
	return strings.Join(terms, " OR ")
}

func prefixedColumns(alias string) string {
	cols := []string{
		"id", "timestamp", "service", "additional_services", "change_type", "source",
		"initiator", "initiator_identity", "author_type", "status", "environment", "summary",
		"commit_sha", "pr_number", "pr_url", "repository", "branch", "diff", "files_changed",
		"config_keys", "previous_version", "new_version", "blast_radius", "idempotency_key",
		"change_set_id", "canonical_url", "tags", "metadata", "created_at", "updated_at",
	}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}

func joinClauses(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out
}
