package label

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kedh/regcore/pkg/platform/sentinel"
)

// PostgresStore persists lists and zones in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetList(ctx context.Context, name string) (*List, error) {
	list := List{Name: name}
	var (
		kind    string
		entries []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, creation_time, entries FROM label_lists WHERE name = $1`, name).
		Scan(&kind, &list.CreationTime, &entries)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	list.Kind = Kind(kind)
	if err := json.Unmarshal(entries, &list.Entries); err != nil {
		return nil, fmt.Errorf("decode entries for list %s: %w", name, err)
	}
	return &list, nil
}

func (s *PostgresStore) PutList(ctx context.Context, list *List) error {
	entries, err := json.Marshal(list.Entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO label_lists (name, kind, creation_time, entries)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
			SET kind = EXCLUDED.kind, entries = EXCLUDED.entries`,
		list.Name, string(list.Kind), list.CreationTime, entries)
	return err
}

func (s *PostgresStore) DeleteList(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM label_lists WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListZones(ctx context.Context) ([]*Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, premium_list, reserved_lists FROM zones`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Zone
	for rows.Next() {
		var (
			zone     Zone
			premium  sql.NullString
			reserved pq.StringArray
		)
		if err := rows.Scan(&zone.Name, &premium, &reserved); err != nil {
			return nil, err
		}
		zone.PremiumList = premium.String
		zone.ReservedLists = []string(reserved)
		out = append(out, &zone)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutZone(ctx context.Context, zone *Zone) error {
	var premium sql.NullString
	if zone.PremiumList != "" {
		premium = sql.NullString{String: zone.PremiumList, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zones (name, premium_list, reserved_lists)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
			SET premium_list = EXCLUDED.premium_list,
			    reserved_lists = EXCLUDED.reserved_lists`,
		zone.Name, premium, pq.Array(zone.ReservedLists))
	return err
}
