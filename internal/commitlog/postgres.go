package commitlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kedh/regcore/pkg/platform/sentinel"
	txcontext "github.com/kedh/regcore/pkg/platform/tx"
)

// PostgresStore persists commit log entities in PostgreSQL. Manifest appends
// pick the transaction out of the context so they commit with the entity
// mutations of the same atomic scope.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) AppendManifest(ctx context.Context, m *Manifest) error {
	mutated, err := json.Marshal(m.Mutated)
	if err != nil {
		return fmt.Errorf("encode mutated keys: %w", err)
	}
	deleted, err := json.Marshal(m.Deleted)
	if err != nil {
		return fmt.Errorf("encode deleted keys: %w", err)
	}
	_, err = s.runner(ctx).ExecContext(ctx, `
		INSERT INTO commit_log_manifests (id, bucket_id, commit_time, mutated, deleted)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.BucketID, m.CommitTime, mutated, deleted)
	return err
}

func (s *PostgresStore) ListManifests(ctx context.Context, bucketID int, after, upTo time.Time, limit int) ([]*Manifest, error) {
	query := `
		SELECT id, bucket_id, commit_time, mutated, deleted
		FROM commit_log_manifests
		WHERE bucket_id = $1 AND commit_time > $2 AND commit_time <= $3
		ORDER BY commit_time`
	args := []any{bucketID, after, upTo}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	rows, err := s.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Manifest
	for rows.Next() {
		var (
			m                  Manifest
			mutatedB, deletedB []byte
		)
		if err := rows.Scan(&m.ID, &m.BucketID, &m.CommitTime, &mutatedB, &deletedB); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(mutatedB, &m.Mutated); err != nil {
			return nil, fmt.Errorf("decode mutated keys for %s: %w", m.ID, err)
		}
		if err := json.Unmarshal(deletedB, &m.Deleted); err != nil {
			return nil, fmt.Errorf("decode deleted keys for %s: %w", m.ID, err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LatestManifestTime(ctx context.Context, bucketID int) (time.Time, error) {
	var latest sql.NullTime
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT MAX(commit_time) FROM commit_log_manifests WHERE bucket_id = $1`,
		bucketID).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

func (s *PostgresStore) PutCheckpoint(ctx context.Context, c *Checkpoint) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO commit_log_checkpoints (bucket_id, last_manifest_time)
		VALUES ($1, $2)
		ON CONFLICT (bucket_id) DO UPDATE SET last_manifest_time = EXCLUDED.last_manifest_time`,
		c.BucketID, c.LastManifestTime)
	return err
}

func (s *PostgresStore) GetCheckpoint(ctx context.Context, bucketID int) (*Checkpoint, error) {
	c := Checkpoint{BucketID: bucketID}
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT last_manifest_time FROM commit_log_checkpoints WHERE bucket_id = $1`,
		bucketID).Scan(&c.LastManifestTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) PutCheckpointRoot(ctx context.Context, root *CheckpointRoot) error {
	buckets, err := json.Marshal(root.BucketTimes)
	if err != nil {
		return fmt.Errorf("encode bucket times: %w", err)
	}
	// Single-row table; the root is always the most recent aggregation.
	_, err = s.runner(ctx).ExecContext(ctx, `
		INSERT INTO commit_log_checkpoint_root (id, checkpoint_time, bucket_times)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
			SET checkpoint_time = EXCLUDED.checkpoint_time,
			    bucket_times = EXCLUDED.bucket_times`,
		root.CheckpointTime, buckets)
	return err
}

func (s *PostgresStore) GetCheckpointRoot(ctx context.Context) (*CheckpointRoot, error) {
	var (
		root    CheckpointRoot
		buckets []byte
	)
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT checkpoint_time, bucket_times FROM commit_log_checkpoint_root WHERE id = 1`).
		Scan(&root.CheckpointTime, &buckets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(buckets, &root.BucketTimes); err != nil {
		return nil, fmt.Errorf("decode bucket times: %w", err)
	}
	return &root, nil
}

func (s *PostgresStore) DeleteBucketContents(ctx context.Context, bucketID int) (int64, error) {
	var total int64
	result, err := s.runner(ctx).ExecContext(ctx,
		`DELETE FROM commit_log_manifests WHERE bucket_id = $1`, bucketID)
	if err != nil {
		return total, err
	}
	n, _ := result.RowsAffected()
	total += n

	result, err = s.runner(ctx).ExecContext(ctx,
		`DELETE FROM commit_log_checkpoints WHERE bucket_id = $1`, bucketID)
	if err != nil {
		return total, err
	}
	n, _ = result.RowsAffected()
	return total + n, nil
}

func (s *PostgresStore) DeleteCheckpointRoot(ctx context.Context) (int64, error) {
	result, err := s.runner(ctx).ExecContext(ctx,
		`DELETE FROM commit_log_checkpoint_root WHERE id = 1`)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return n, nil
}
