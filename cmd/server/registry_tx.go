package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/kedh/regcore/pkg/platform/sentinel"
	"github.com/kedh/regcore/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// postgresTx runs registry commits inside one database transaction. The
// transaction rides the context, so every store call made by fn lands in the
// same commit scope, commit log manifest included.
type postgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresTx(db *sql.DB) *postgresTx {
	return &postgresTx{db: db}
}

func (t *postgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return sentinel.ErrUnavailable
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dbTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, dbTx)); err != nil {
		return err
	}
	return dbTx.Commit()
}
