package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kedh/regcore/internal/registry/model"
	"github.com/kedh/regcore/pkg/platform/sentinel"
	txcontext "github.com/kedh/regcore/pkg/platform/tx"
)

// Postgres implements the registry stores over PostgreSQL. All methods
// consult the context for a transaction so a side-effect bundle written
// inside a TxRunner scope commits atomically.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Stores returns the store bundle backed by this database.
func (p *Postgres) Stores() Stores {
	return Stores{
		Resources: &pgResources{p},
		Polls:     &pgPolls{p},
		Billing:   &pgBilling{p},
		History:   &pgHistory{p},
	}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return p.db
}

// mapError translates driver errors into sentinel errors so callers never
// see pq internals.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
		}
	}
	return err
}

// dbTransfer is the JSON shape of an embedded transfer record.
type dbTransfer struct {
	Status                 string    `json:"status"`
	GainingID              string    `json:"gainingId"`
	LosingID               string    `json:"losingId"`
	RequestTime            time.Time `json:"requestTime"`
	ClientTrid             string    `json:"clientTrid"`
	ServerTrid             string    `json:"serverTrid"`
	ExpirationTime         time.Time `json:"expirationTime"`
	ServerApprovePollIDs   []string  `json:"serverApprovePollIds,omitempty"`
	ServerApproveBillingID string    `json:"serverApproveBillingId,omitempty"`
	ApprovedExpiration     time.Time `json:"approvedExpiration,omitempty"`
}

func encodeTransfer(t *model.TransferRecord) ([]byte, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(dbTransfer{
		Status:                 string(t.Status),
		GainingID:              t.GainingID,
		LosingID:               t.LosingID,
		RequestTime:            t.RequestTime,
		ClientTrid:             t.RequestTrid.ClientTransactionID,
		ServerTrid:             t.RequestTrid.ServerTransactionID,
		ExpirationTime:         t.ExpirationTime,
		ServerApprovePollIDs:   t.ServerApprovePollIDs,
		ServerApproveBillingID: t.ServerApproveBillingID,
		ApprovedExpiration:     t.ApprovedExpiration,
	})
}

func decodeTransfer(raw []byte) (*model.TransferRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var d dbTransfer
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &model.TransferRecord{
		Status:      model.TransferStatus(d.Status),
		GainingID:   d.GainingID,
		LosingID:    d.LosingID,
		RequestTime: d.RequestTime,
		RequestTrid: model.Trid{
			ClientTransactionID: d.ClientTrid,
			ServerTransactionID: d.ServerTrid,
		},
		ExpirationTime:         d.ExpirationTime,
		ServerApprovePollIDs:   d.ServerApprovePollIDs,
		ServerApproveBillingID: d.ServerApproveBillingID,
		ApprovedExpiration:     d.ApprovedExpiration,
	}, nil
}

type pgResources struct{ p *Postgres }

const resourceColumns = `repo_id, kind, name, sponsor, created_by, creation_time,
	update_time, deletion_time, statuses, auth_info, last_transfer_time,
	expiration_time, signed_marks, transfer`

func (s *pgResources) Get(ctx context.Context, repoID string) (*model.Resource, error) {
	row := s.p.runner(ctx).QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE repo_id = $1`, repoID)
	res, err := scanResource(row)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

func (s *pgResources) Create(ctx context.Context, res *model.Resource) error {
	transfer, err := encodeTransfer(res.Transfer)
	if err != nil {
		return fmt.Errorf("encode transfer: %w", err)
	}
	_, err = s.p.runner(ctx).ExecContext(ctx, `
		INSERT INTO resources (`+resourceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		res.RepoID, string(res.Kind), res.Name, res.CurrentSponsor, res.CreatedBy,
		res.CreationTime, res.UpdateTime, res.DeletionTime,
		pq.Array(statusStrings(res.Statuses)), res.AuthInfo,
		nullTime(res.LastTransferTime), nullTime(res.ExpirationTime),
		pq.Array(res.EncodedSignedMarks), transfer)
	return mapError(err)
}

func (s *pgResources) Update(ctx context.Context, res *model.Resource, prevUpdateTime time.Time) error {
	transfer, err := encodeTransfer(res.Transfer)
	if err != nil {
		return fmt.Errorf("encode transfer: %w", err)
	}
	result, err := s.p.runner(ctx).ExecContext(ctx, `
		UPDATE resources SET
			kind = $2, name = $3, sponsor = $4, created_by = $5, creation_time = $6,
			update_time = $7, deletion_time = $8, statuses = $9, auth_info = $10,
			last_transfer_time = $11, expiration_time = $12, signed_marks = $13,
			transfer = $14
		WHERE repo_id = $1 AND update_time = $15`,
		res.RepoID, string(res.Kind), res.Name, res.CurrentSponsor, res.CreatedBy,
		res.CreationTime, res.UpdateTime, res.DeletionTime,
		pq.Array(statusStrings(res.Statuses)), res.AuthInfo,
		nullTime(res.LastTransferTime), nullTime(res.ExpirationTime),
		pq.Array(res.EncodedSignedMarks), transfer, prevUpdateTime)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is gone or a concurrent writer advanced update_time.
		if _, getErr := s.Get(ctx, res.RepoID); errors.Is(getErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*model.Resource, error) {
	var (
		res          model.Resource
		kind         string
		statuses     pq.StringArray
		signedMarks  pq.StringArray
		lastTransfer sql.NullTime
		expiration   sql.NullTime
		transfer     []byte
	)
	err := row.Scan(&res.RepoID, &kind, &res.Name, &res.CurrentSponsor,
		&res.CreatedBy, &res.CreationTime, &res.UpdateTime, &res.DeletionTime,
		&statuses, &res.AuthInfo, &lastTransfer, &expiration, &signedMarks, &transfer)
	if err != nil {
		return nil, err
	}
	res.Kind = model.Kind(kind)
	res.Statuses = make(model.StatusSet, len(statuses))
	for _, st := range statuses {
		res.Statuses[model.Status(st)] = struct{}{}
	}
	res.EncodedSignedMarks = []string(signedMarks)
	if lastTransfer.Valid {
		res.LastTransferTime = lastTransfer.Time
	}
	if expiration.Valid {
		res.ExpirationTime = expiration.Time
	}
	res.Transfer, err = decodeTransfer(transfer)
	if err != nil {
		return nil, fmt.Errorf("decode transfer for %s: %w", res.RepoID, err)
	}
	return &res, nil
}

func statusStrings(set model.StatusSet) []string {
	out := make([]string, 0, len(set))
	for st := range set {
		out = append(out, string(st))
	}
	return out
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

type pgPolls struct{ p *Postgres }

func (s *pgPolls) Put(ctx context.Context, msg *model.PollMessage) error {
	var ack []byte
	if msg.PendingAck != nil {
		var err error
		ack, err = json.Marshal(map[string]any{
			"clientTrid": msg.PendingAck.Trid.ClientTransactionID,
			"serverTrid": msg.PendingAck.Trid.ServerTransactionID,
			"success":    msg.PendingAck.Success,
		})
		if err != nil {
			return fmt.Errorf("encode pending ack: %w", err)
		}
	}
	_, err := s.p.runner(ctx).ExecContext(ctx, `
		INSERT INTO poll_messages (id, client_id, resource_repo_id, event_time, message, transfer_outcome, pending_ack)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ClientID, msg.ResourceRepoID, msg.EventTime, msg.Message,
		nullString(string(msg.TransferOutcome)), ack)
	return mapError(err)
}

func (s *pgPolls) Delete(ctx context.Context, id string) error {
	result, err := s.p.runner(ctx).ExecContext(ctx,
		`DELETE FROM poll_messages WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *pgPolls) ListByClient(ctx context.Context, clientID string, upTo time.Time) ([]*model.PollMessage, error) {
	rows, err := s.p.runner(ctx).QueryContext(ctx, `
		SELECT id, client_id, resource_repo_id, event_time, message, transfer_outcome, pending_ack
		FROM poll_messages
		WHERE client_id = $1 AND event_time <= $2
		ORDER BY event_time`, clientID, upTo)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.PollMessage
	for rows.Next() {
		var (
			msg     model.PollMessage
			outcome sql.NullString
			ack     []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ClientID, &msg.ResourceRepoID,
			&msg.EventTime, &msg.Message, &outcome, &ack); err != nil {
			return nil, err
		}
		if outcome.Valid {
			msg.TransferOutcome = model.TransferStatus(outcome.String)
		}
		if len(ack) > 0 {
			var d struct {
				ClientTrid string `json:"clientTrid"`
				ServerTrid string `json:"serverTrid"`
				Success    bool   `json:"success"`
			}
			if err := json.Unmarshal(ack, &d); err != nil {
				return nil, fmt.Errorf("decode pending ack for %s: %w", msg.ID, err)
			}
			msg.PendingAck = &model.PendingAck{
				Trid: model.Trid{
					ClientTransactionID: d.ClientTrid,
					ServerTransactionID: d.ServerTrid,
				},
				Success: d.Success,
			}
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

type pgBilling struct{ p *Postgres }

func (s *pgBilling) Put(ctx context.Context, ev *model.BillingEvent) error {
	_, err := s.p.runner(ctx).ExecContext(ctx, `
		INSERT INTO billing_events (id, resource_repo_id, client_id, reason, cost_cents, event_time)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.ResourceRepoID, ev.ClientID, string(ev.Reason), ev.CostCents, ev.EventTime)
	return mapError(err)
}

func (s *pgBilling) Delete(ctx context.Context, id string) error {
	result, err := s.p.runner(ctx).ExecContext(ctx,
		`DELETE FROM billing_events WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *pgBilling) ListByResource(ctx context.Context, repoID string) ([]*model.BillingEvent, error) {
	rows, err := s.p.runner(ctx).QueryContext(ctx, `
		SELECT id, resource_repo_id, client_id, reason, cost_cents, event_time
		FROM billing_events WHERE resource_repo_id = $1 ORDER BY event_time`, repoID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.BillingEvent
	for rows.Next() {
		var (
			ev     model.BillingEvent
			reason string
		)
		if err := rows.Scan(&ev.ID, &ev.ResourceRepoID, &ev.ClientID, &reason,
			&ev.CostCents, &ev.EventTime); err != nil {
			return nil, err
		}
		ev.Reason = model.BillingReason(reason)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

type pgHistory struct{ p *Postgres }

func (s *pgHistory) Append(ctx context.Context, entry *model.HistoryEntry) error {
	_, err := s.p.runner(ctx).ExecContext(ctx, `
		INSERT INTO history_entries (id, resource_repo_id, type, client_id, time)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.ResourceRepoID, string(entry.Type), entry.ClientID, entry.Time)
	return mapError(err)
}

func (s *pgHistory) ListByResource(ctx context.Context, repoID string) ([]*model.HistoryEntry, error) {
	rows, err := s.p.runner(ctx).QueryContext(ctx, `
		SELECT id, resource_repo_id, type, client_id, time
		FROM history_entries WHERE resource_repo_id = $1 ORDER BY time`, repoID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.HistoryEntry
	for rows.Next() {
		var (
			entry model.HistoryEntry
			typ   string
		)
		if err := rows.Scan(&entry.ID, &entry.ResourceRepoID, &typ,
			&entry.ClientID, &entry.Time); err != nil {
			return nil, err
		}
		entry.Type = model.HistoryType(typ)
		out = append(out, &entry)
	}
	return out, rows.Err()
}
