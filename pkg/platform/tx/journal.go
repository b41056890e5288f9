package tx

import (
	"context"
	"sync"
)

type journalKey struct{}

// Journal collects compensations registered by in-memory stores during a
// transaction so they can be undone when the transaction fails.
type Journal struct {
	mu    sync.Mutex
	undos []func()
}

// WithJournal binds a fresh journal to ctx.
func WithJournal(ctx context.Context) (context.Context, *Journal) {
	j := &Journal{}
	return context.WithValue(ctx, journalKey{}, j), j
}

// OnRollback registers fn on the journal bound to ctx. Without a journal the
// call is a no-op and the write stands on its own.
func OnRollback(ctx context.Context, fn func()) {
	j, ok := ctx.Value(journalKey{}).(*Journal)
	if !ok || j == nil {
		return
	}
	j.mu.Lock()
	j.undos = append(j.undos, fn)
	j.mu.Unlock()
}

// Rollback runs the registered compensations newest first.
func (j *Journal) Rollback() {
	j.mu.Lock()
	undos := j.undos
	j.undos = nil
	j.mu.Unlock()
	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
}
