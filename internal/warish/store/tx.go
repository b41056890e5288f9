package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "warish/pkg/domain-errors"
	txcontext "warish/pkg/platform/tx"
)

// DefaultTxTimeout bounds a transaction when the caller's context has no deadline.
const DefaultTxTimeout = 5 * time.Second

// numTxShards spreads in-memory transactions over independent locks keyed by
// the aggregate id bound with tx.WithLockKey.
const numTxShards = 128

// MemoryTx serializes in-memory transactions per aggregate and undoes the
// writes of a failed transaction through the tx journal.
type MemoryTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func NewMemoryTx(timeout time.Duration) *MemoryTx {
	return &MemoryTx{timeout: timeout}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel, err := prepareTx(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	shard := &t.shards[hashKey(txcontext.LockKey(ctx))%numTxShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, journal := txcontext.WithJournal(ctx)
	if err := fn(ctx); err != nil {
		journal.Rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		journal.Rollback()
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
	}
	return nil
}

// PostgresTx runs fn inside a database transaction bound to ctx.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB, timeout time.Duration) *PostgresTx {
	return &PostgresTx{db: db, timeout: timeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel, err := prepareTx(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
		}
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
		}
		return err
	}
	return nil
}

func prepareTx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
