package index

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// PostgresStore persists index entries. Index writes live in their own atomic
// scope, separate from resource commits, so no transaction plumbing here.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, name string) (*Entry, error) {
	entry := Entry{Name: name}
	var repoIDs pq.StringArray
	err := s.db.QueryRowContext(ctx,
		`SELECT repo_ids FROM name_index WHERE name = $1`, name).Scan(&repoIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	entry.RepoIDs = []string(repoIDs)
	return &entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO name_index (name, repo_ids)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET repo_ids = EXCLUDED.repo_ids`,
		entry.Name, pq.Array(entry.RepoIDs))
	return err
}
