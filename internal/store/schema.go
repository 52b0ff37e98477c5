package store

const schema = `
CREATE TABLE IF NOT EXISTS change_events (
	id                  TEXT PRIMARY KEY,
	timestamp           INTEGER NOT NULL,
	service             TEXT NOT NULL,
	additional_services TEXT NOT NULL DEFAULT '[]',
	change_type         TEXT NOT NULL,
	source              TEXT NOT NULL,
	initiator           TEXT NOT NULL,
	initiator_identity  TEXT,
	author_type         TEXT,
	status              TEXT NOT NULL,
	environment         TEXT NOT NULL,
	summary             TEXT NOT NULL DEFAULT '',
	commit_sha          TEXT,
	pr_number           INTEGER,
	pr_url              TEXT,
	repository          TEXT,
	branch              TEXT,
	diff                TEXT,
	files_changed       TEXT NOT NULL DEFAULT '[]',
	config_keys         TEXT NOT NULL DEFAULT '[]',
	previous_version    TEXT,
	new_version         TEXT,
	blast_radius        TEXT,
	idempotency_key     TEXT,
	change_set_id       TEXT,
	canonical_url       TEXT,
	tags                TEXT NOT NULL DEFAULT '[]',
	metadata            TEXT NOT NULL DEFAULT '{}',
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_change_events_idempotency_key
	ON change_events(idempotency_key) WHERE idempotency_key IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_change_events_service ON change_events(service);
CREATE INDEX IF NOT EXISTS idx_change_events_timestamp ON change_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_change_events_change_type ON change_events(change_type);
CREATE INDEX IF NOT EXISTS idx_change_events_source ON change_events(source);
CREATE INDEX IF NOT EXISTS idx_change_events_environment ON change_events(environment);
CREATE INDEX IF NOT EXISTS idx_change_events_status ON change_events(status);
CREATE INDEX IF NOT EXISTS idx_change_events_commit_sha ON change_events(commit_sha);
CREATE INDEX IF NOT EXISTS idx_change_events_change_set_id ON change_events(change_set_id);
CREATE INDEX IF NOT EXISTS idx_change_events_service_timestamp ON change_events(service, timestamp);

CREATE VIRTUAL TABLE IF NOT EXISTS change_events_fts USING fts5(
	id UNINDEXED,
	summary,
	service,
	content=''
);

CREATE TRIGGER IF NOT EXISTS change_events_ai AFTER INSERT ON change_events BEGIN
	INSERT INTO change_events_fts (rowid, id, summary, service)
	VALUES (new.rowid, new.id, new.summary, new.service);
END;

CREATE TRIGGER IF NOT EXISTS change_events_ad AFTER DELETE ON change_events BEGIN
	INSERT INTO change_events_fts (change_events_fts, rowid, id, summary, service)
	VALUES ('delete', old.rowid, old.id, old.summary, old.service);
END;

CREATE TRIGGER IF NOT EXISTS change_events_au AFTER UPDATE ON change_events BEGIN
	INSERT INTO change_events_fts (change_events_fts, rowid, id, summary, service)
	VALUES ('delete', old.rowid, old.id, old.summary, old.service);
	INSERT INTO change_events_fts (rowid, id, summary, service)
	VALUES (new.rowid, new.id, new.summary, new.service);
END;
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}
