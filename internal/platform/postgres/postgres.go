package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Schema is the full registry schema. EnsureSchema is idempotent and keeps
// local and test environments bootstrappable without a migration tool.
const Schema = `
CREATE TABLE IF NOT EXISTS resources (
	repo_id            TEXT PRIMARY KEY,
	kind               TEXT NOT NULL,
	name               TEXT NOT NULL,
	sponsor            TEXT NOT NULL,
	created_by         TEXT NOT NULL,
	creation_time      TIMESTAMPTZ NOT NULL,
	update_time        TIMESTAMPTZ NOT NULL,
	deletion_time      TIMESTAMPTZ NOT NULL,
	statuses           TEXT[] NOT NULL DEFAULT '{}',
	auth_info          TEXT NOT NULL DEFAULT '',
	last_transfer_time TIMESTAMPTZ,
	expiration_time    TIMESTAMPTZ,
	signed_marks       TEXT[],
	transfer           JSONB
);

CREATE TABLE IF NOT EXISTS poll_messages (
	id               UUID PRIMARY KEY,
	client_id        TEXT NOT NULL,
	resource_repo_id TEXT NOT NULL,
	event_time       TIMESTAMPTZ NOT NULL,
	message          TEXT NOT NULL DEFAULT '',
	transfer_outcome TEXT,
	pending_ack      JSONB
);
CREATE INDEX IF NOT EXISTS poll_messages_client_event
	ON poll_messages (client_id, event_time);

CREATE TABLE IF NOT EXISTS billing_events (
	id               UUID PRIMARY KEY,
	resource_repo_id TEXT NOT NULL,
	client_id        TEXT NOT NULL,
	reason           TEXT NOT NULL,
	cost_cents       BIGINT NOT NULL,
	event_time       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS billing_events_resource
	ON billing_events (resource_repo_id);

CREATE TABLE IF NOT EXISTS history_entries (
	id               UUID PRIMARY KEY,
	resource_repo_id TEXT NOT NULL,
	type             TEXT NOT NULL,
	client_id        TEXT NOT NULL,
	time             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS history_entries_resource
	ON history_entries (resource_repo_id, time);

CREATE TABLE IF NOT EXISTS name_index (
	name     TEXT PRIMARY KEY,
	repo_ids TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS commit_log_manifests (
	id          UUID PRIMARY KEY,
	bucket_id   INT NOT NULL,
	commit_time TIMESTAMPTZ NOT NULL,
	mutated     JSONB NOT NULL,
	deleted     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS commit_log_manifests_bucket_time
	ON commit_log_manifests (bucket_id, commit_time);

CREATE TABLE IF NOT EXISTS commit_log_checkpoints (
	bucket_id          INT PRIMARY KEY,
	last_manifest_time TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS commit_log_checkpoint_root (
	id              INT PRIMARY KEY,
	checkpoint_time TIMESTAMPTZ NOT NULL,
	bucket_times    JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS label_lists (
	name          TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	creation_time TIMESTAMPTZ NOT NULL,
	entries       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS zones (
	name           TEXT PRIMARY KEY,
	premium_list   TEXT,
	reserved_lists TEXT[] NOT NULL DEFAULT '{}'
);
`

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
