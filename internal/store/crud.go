package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// row is the flat, scannable shape of a change_events row.
type row struct {
	ID                 string
	Timestamp          int64
	Service            string
	AdditionalServices string
	ChangeType         string
	Source             string
	Initiator          string
	InitiatorIdentity  sql.NullString
	AuthorType         sql.NullString
	Status             string
	Environment        string
	Summary            string
	CommitSha          sql.NullString
	PRNumber           sql.NullInt64
	PRUrl              sql.NullString
	Repository         sql.NullString
	Branch             sql.NullString
	Diff               sql.NullString
	FilesChanged       string
	ConfigKeys         string
	PreviousVersion    sql.NullString
	NewVersion         sql.NullString
	BlastRadius        sql.NullString
	IdempotencyKey     sql.NullString
	ChangeSetID        sql.NullString
	CanonicalURL       sql.NullString
	Tags               string
	Metadata           string
	CreatedAt          int64
	UpdatedAt          int64
}

const selectColumns = `id, timestamp, service, additional_services, change_type, source,
	initiator, initiator_identity, author_type, status, environment, summary,
	commit_sha, pr_number, pr_url, repository, branch, diff, files_changed,
	config_keys, previous_version, new_version, blast_radius, idempotency_key,
	change_set_id, canonical_url, tags, metadata, created_at, updated_at`

func scanRow(scan func(dest ...interface{}) error) (*row, error) {
	r := &row{}
	err := scan(
		&r.ID, &r.Timestamp, &r.Service, &r.AdditionalServices, &r.ChangeType, &r.Source,
		&r.Initiator, &r.InitiatorIdentity, &r.AuthorType, &r.Status, &r.Environment, &r.Summary,
		&r.CommitSha, &r.PRNumber, &r.PRUrl, &r.Repository, &r.Branch, &r.Diff, &r.FilesChanged,
		&r.ConfigKeys, &r.PreviousVersion, &r.NewVersion, &r.BlastRadius, &r.IdempotencyKey,
		&r.ChangeSetID, &r.CanonicalURL, &r.Tags, &r.Metadata, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func toEvent(r *row) (*models.ChangeEvent, error) {
	e := &models.ChangeEvent{
		ID:          r.ID,
		Timestamp:   time.Unix(0, r.Timestamp),
		Service:     r.Service,
		ChangeType:  models.ChangeType(r.ChangeType),
		Source:      models.ChangeSource(r.Source),
		Initiator:   models.Initiator(r.Initiator),
		Status:      models.ChangeStatus(r.Status),
		Environment: r.Environment,
		Summary:     r.Summary,
		CreatedAt:   time.Unix(0, r.CreatedAt),
		UpdatedAt:   time.Unix(0, r.UpdatedAt),
	}
	if r.InitiatorIdentity.Valid {
		e.InitiatorIdentity = r.InitiatorIdentity.String
	}
	if r.AuthorType.Valid {
		e.AuthorType = models.AuthorType(r.AuthorType.String)
	}
	if r.CommitSha.Valid {
		e.CommitSha = r.CommitSha.String
	}
	if r.PRNumber.Valid {
		e.PRNumber = int(r.PRNumber.Int64)
	}
	if r.PRUrl.Valid {
		e.PRUrl = r.PRUrl.String
	}
	if r.Repository.Valid {
		e.Repository = r.Repository.String
	}
	if r.Branch.Valid {
		e.Branch = r.Branch.String
	}
	if r.Diff.Valid {
		e.Diff = r.Diff.String
	}
	if r.PreviousVersion.Valid {
		e.PreviousVersion = r.PreviousVersion.String
	}
	if r.NewVersion.Valid {
		e.NewVersion = r.NewVersion.String
	}
	if r.IdempotencyKey.Valid {
		e.IdempotencyKey = r.IdempotencyKey.String
	}
	if r.ChangeSetID.Valid {
		e.ChangeSetID = r.ChangeSetID.String
	}
	if r.CanonicalURL.Valid {
		e.CanonicalURL = r.CanonicalURL.String
	}
	if err := json.Unmarshal([]byte(r.AdditionalServices), &e.AdditionalServices); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.FilesChanged), &e.FilesChanged); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.ConfigKeys), &e.ConfigKeys); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.Tags), &e.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.Metadata), &e.Metadata); err != nil {
		return nil, err
	}
	if r.BlastRadius.Valid && r.BlastRadius.String != "" {
		var br models.BlastRadiusPrediction
		if err := json.Unmarshal([]byte(r.BlastRadius.String), &br); err != nil {
			return nil, err
		}
		e.BlastRadius = &br
	}
	return e, nil
}

func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// buildEventFromPartial fills in insert(partial)'s defaults (id, timestamp,
// source, initiator, status, environment, empty collections) and validates
// the fields that must not be empty. It raises InvariantViolation, not
// Validation: a missing service/summary/changeType on a caller-constructed
// partial is a programmer error, not a rejectable client input.
func buildEventFromPartial(p *models.PartialChangeEvent) (*models.ChangeEvent, error) {
	e := &models.ChangeEvent{
		ID:                 models.NewID(),
		Timestamp:          time.Now().UTC(),
		Source:             models.SourceManual,
		Initiator:          models.InitiatorUnknown,
		Status:             models.StatusCompleted,
		Environment:        "production",
		AdditionalServices: []string{},
		FilesChanged:       []string{},
		ConfigKeys:         []string{},
		Tags:               []string{},
		Metadata:           map[string]interface{}{},
	}
	applyPatch(e, p)

	if e.Service == "" {
		return nil, coreerrors.NewInvariantViolation("insert: service is required")
	}
	if e.Summary == "" {
		return nil, coreerrors.NewInvariantViolation("insert: summary is required")
	}
	if e.ChangeType == "" {
		return nil, coreerrors.NewInvariantViolation("insert: changeType is required")
	}
	return e, nil
}

// Insert fills defaults from partial, validates required fields, and
// persists the resulting event. If partial.IdempotencyKey is set and a
// row with that key already exists, Insert returns the existing event
// instead of inserting a duplicate.
func (s *Store) Insert(ctx context.Context, partial *models.PartialChangeEvent) (*models.ChangeEvent, bool, error) {
	if partial.IdempotencyKey != nil && *partial.IdempotencyKey != "" {
		existing, err := s.GetByIdempotencyKey(ctx, *partial.IdempotencyKey)
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

	if err := insertRow(ctx, s.db, e); err != nil {
		return nil, false, err
	}
	return e, false, nil
}

func insertRow(ctx context.Context, q querier, e *models.ChangeEvent) error {
	additionalServices, err := marshalJSON(e.AdditionalServices)
	if err != nil {
		return err
	}
	filesChanged, err := marshalJSON(e.FilesChanged)
	if err != nil {
		return err
	}
	configKeys, err := marshalJSON(e.ConfigKeys)
	if err != nil {
		return err
	}
	tags, err := marshalJSON(e.Tags)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	var blastRadius sql.NullString
	if e.BlastRadius != nil {
		b, err := marshalJSON(e.BlastRadius)
		if err != nil {
			return err
		}
		blastRadius = sql.NullString{String: b, Valid: true}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO change_events (
			id, timestamp, service, additional_services, change_type, source,
			initiator, initiator_identity, author_type, status, environment, summary,
			commit_sha, pr_number, pr_url, repository, branch, diff, files_changed,
			config_keys, previous_version, new_version, blast_radius, idempotency_key,
			change_set_id, canonical_url, tags, metadata, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Timestamp.UnixNano(), e.Service, additionalServices, string(e.ChangeType), string(e.Source),
		string(e.Initiator), nullableString(e.InitiatorIdentity), nullableString(string(e.AuthorType)),
		string(e.Status), e.Environment, e.Summary,
		nullableString(e.CommitSha), nullableInt(e.PRNumber), nullableString(e.PRUrl),
		nullableString(e.Repository), nullableString(e.Branch), nullableString(e.Diff), filesChanged,
		configKeys, nullableString(e.PreviousVersion), nullableString(e.NewVersion), blastRadius,
		nullableString(e.IdempotencyKey), nullableString(e.ChangeSetID), nullableString(e.CanonicalURL),
		tags, metadata, e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return coreerrors.NewConflict("change event with idempotency key %q already exists", e.IdempotencyKey)
		}
		return coreerrors.Wrap(coreerrors.KindUnavailable, err, "insert change event")
	}
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && contains(err.Error(), "UNIQUE constraint failed")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Get retrieves a single ChangeEvent by id.
func (s *Store) Get(ctx context.Context, id string) (*models.ChangeEvent, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM change_events WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coreerrors.NewNotFound("change event %q not found", id)
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "get change event")
	}
	return toEvent(r)
}

// GetByIdempotencyKey returns the event with that key, or nil if none exists.
func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*models.ChangeEvent, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM change_events WHERE idempotency_key = ?", key).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnavailable, err, "get change event by idempotency key")
	}
	return toEvent(r)
}

// Update applies a PartialChangeEvent to the stored event identified by id,
// touching only the fields that are non-nil. If patch carries no recognized
// field, Update is a no-op that returns the current event unchanged.
func (s *Store) Update(ctx context.Context, id string, patch *models.PartialChangeEvent) (*models.ChangeEvent, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if isEmptyPatch(patch) {
		return existing, nil
	}
	applyPatch(existing, patch)
	existing.UpdatedAt = time.Now().UTC()

	if err := updateRow(ctx, s.db, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func isEmptyPatch(p *models.PartialChangeEvent) bool {
	return p.Timestamp == nil && p.Service == nil && p.AdditionalServices == nil &&
		p.ChangeType == nil && p.Source == nil && p.Initiator == nil &&
		p.InitiatorIdentity == nil && p.AuthorType == nil && p.Status == nil &&
		p.Environment == nil && p.Summary == nil && p.CommitSha == nil &&
		p.PRNumber == nil && p.PRUrl == nil && p.Repository == nil && p.Branch == nil &&
		p.Diff == nil && p.FilesChanged == nil && p.ConfigKeys == nil &&
		p.PreviousVersion == nil && p.NewVersion == nil && p.BlastRadius == nil &&
		p.IdempotencyKey == nil && p.ChangeSetID == nil && p.CanonicalURL == nil &&
		p.Tags == nil && p.Metadata == nil
}

func applyPatch(e *models.ChangeEvent, p *models.PartialChangeEvent) {
	if p.Timestamp != nil {
		e.Timestamp = *p.Timestamp
	}
	if p.Service != nil {
		e.Service = *p.Service
	}
	if p.AdditionalServices != nil {
		e.AdditionalServices = p.AdditionalServices
	}
	if p.ChangeType != nil {
		e.ChangeType = *p.ChangeType
	}
	if p.Source != nil {
		e.Source = *p.Source
	}
	if p.Initiator != nil {
		e.Initiator = *p.Initiator
	}
	if p.InitiatorIdentity != nil {
		e.InitiatorIdentity = *p.InitiatorIdentity
	}
	if p.AuthorType != nil {
		e.AuthorType = *p.AuthorType
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Environment != nil {
		e.Environment = *p.Environment
	}
	if p.Summary != nil {
		e.Summary = *p.Summary
	}
	if p.CommitSha != nil {
		e.CommitSha = *p.CommitSha
	}
	if p.PRNumber != nil {
		e.PRNumber = *p.PRNumber
	}
	if p.PRUrl != nil {
		e.PRUrl = *p.PRUrl
	}
	if p.Repository != nil {
		e.Repository = *p.Repository
	}
	if p.Branch != nil {
		e.Branch = *p.Branch
	}
	if p.Diff != nil {
		e.Diff = *p.Diff
	}
	if p.FilesChanged != nil {
		e.FilesChanged = p.FilesChanged
	}
	if p.ConfigKeys != nil {
		e.ConfigKeys = p.ConfigKeys
	}
	if p.PreviousVersion != nil {
		e.PreviousVersion = *p.PreviousVersion
	}
	if p.NewVersion != nil {
		e.NewVersion = *p.NewVersion
	}
	if p.BlastRadius != nil {
		e.BlastRadius = p.BlastRadius
	}
	if p.IdempotencyKey != nil {
		e.IdempotencyKey = *p.IdempotencyKey
	}
	if p.ChangeSetID != nil {
		e.ChangeSetID = *p.ChangeSetID
	}
	if p.CanonicalURL != nil {
		e.CanonicalURL = *p.CanonicalURL
	}
	if p.Tags != nil {
		e.Tags = p.Tags
	}
	if p.Metadata != nil {
		e.Metadata = p.Metadata
	}
}

func updateRow(ctx context.Context, q querier, e *models.ChangeEvent) error {
	additionalServices, err := marshalJSON(e.AdditionalServices)
	if err != nil {
		return err
	}
	filesChanged, err := marshalJSON(e.FilesChanged)
	if err != nil {
		return err
	}
	configKeys, err := marshalJSON(e.ConfigKeys)
	if err != nil {
		return err
	}
	tags, err := marshalJSON(e.Tags)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	var blastRadius sql.NullString
	if e.BlastRadius != nil {
		b, err := marshalJSON(e.BlastRadius)
		if err != nil {
			return err
		}
		blastRadius = sql.NullString{String: b, Valid: true}
	}

	res, err := q.ExecContext(ctx, `
		UPDATE change_events SET
			timestamp = ?, service = ?, additional_services = ?, change_type = ?, source = ?,
			initiator = ?, initiator_identity = ?, author_type = ?, status = ?, environment = ?, summary = ?,
			commit_sha = ?, pr_number = ?, pr_url = ?, repository = ?, branch = ?, diff = ?, files_changed = ?,
			config_keys = ?, previous_version = ?, new_version = ?, blast_radius = ?, idempotency_key = ?,
			change_set_id = ?, canonical_url = ?, tags = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		e.Timestamp.UnixNano(), e.Service, additionalServices, string(e.ChangeType), string(e.Source),
		string(e.Initiator), nullableString(e.InitiatorIdentity), nullableString(string(e.AuthorType)),
		string(e.Status), e.Environment, e.Summary,
		nullableString(e.CommitSha), nullableInt(e.PRNumber), nullableString(e.PRUrl),
		nullableString(e.Repository), nullableString(e.Branch), nullableString(e.Diff), filesChanged,
		configKeys, nullableString(e.PreviousVersion), nullableString(e.NewVersion), blastRadius,
		nullableString(e.IdempotencyKey), nullableString(e.ChangeSetID), nullableString(e.CanonicalURL),
		tags, metadata, e.UpdatedAt.UnixNano(), e.ID,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return coreerrors.NewConflict("change event with idempotency key %q already exists", e.IdempotencyKey)
		}
		return coreerrors.Wrap(coreerrors.KindUnavailable, err, "update change event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindUnavailable, err, "update change event rows affected")
	}
	if n == 0 {
		return coreerrors.NewNotFound("change event %q not found", e.ID)
	}
	return nil
}

// Delete removes the event identified by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM change_events WHERE id = ?", id)
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
