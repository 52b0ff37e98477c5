package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// Insert fills defaults from partial and persists the resulting event
// within the transaction, applying the same idempotency-key short-circuit
// as Store.Insert.
func (tx *Tx) Insert(ctx context.Context, partial *models.PartialChangeEvent) (*models.ChangeEvent, bool, error) {
	if partial.IdempotencyKey != nil && *partial.IdempotencyKey != "" {
		existing, err := tx.GetByIdempotencyKey(ctx, *partial.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	e, err := buildEventFromPartial(partial)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := insertRow(ctx, tx.q, e); err != nil {
		return nil, false, err
	}
	return e, false, nil
}

// Get retrieves a single event by id within the transaction.
func (tx *Tx) Get(ctx context.Context, id string) (*models.ChangeEvent, error) {
	r, err := scanRow(tx.q.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM change_events WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coreerrors.NewNotFound("change event %q not found", id)
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "get change event")
	}
	return toEvent(r)
}

// GetByIdempotencyKey mirrors Store.GetByIdempotencyKey within the transaction.
func (tx *Tx) GetByIdempotencyKey(ctx context.Context, key string) (*models.ChangeEvent, error) {
	r, err := scanRow(tx.q.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM change_events WHERE idempotency_key = ?", key).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "get change event by idempotency key")
	}
	return toEvent(r)
}

// Update applies patch to the event identified by id within the transaction.
func (tx *Tx) Update(ctx context.Context, id string, patch *models.PartialChangeEvent) (*models.ChangeEvent, error) {
	existing, err := tx.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if isEmptyPatch(patch) {
		return existing, nil
	}
	applyPatch(existing, patch)
	existing.UpdatedAt = time.Now().UTC()

	if err := updateRow(ctx, tx.q, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete removes the event identified by id within the transaction.
func (tx *Tx) Delete(ctx context.Context, id string) error {
	res, err := tx.q.ExecContext(ctx, "DELETE FROM change_events WHERE id = ?", id)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindUnavailable, err, "delete change event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindUnavailable, err, "delete change event rows affected")
	}
	if n == 0 {
		return coreerrors.NewNotFound("change event %q not found", id)
	}
	return nil
}
