package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxStarter is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxStarter interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx runs fn inside a RepeatableRead transaction. Any error from fn, or a
// panic, rolls the transaction back; fn's error is returned unchanged so
// callers can still match error kinds.
func WithTx(ctx context.Context, starter TxStarter, fn func(pgx.Tx) error) error {
	tx, err := starter.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Classify("platform/db: begin tx", err)
	}
	// Rollback after Commit returns pgx.ErrTxClosed and is ignored.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return Classify("platform/db: commit tx", err)
	}
	return nil
}
