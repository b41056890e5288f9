package worker

import (
	"context"
	"log/slog"

	audit "warish/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. Failed
// appends are logged and counted; the worker keeps running.
type Worker struct {
	store     audit.Store
	inbox     <-chan audit.Event
	logger    *slog.Logger
	onFailure func()
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithFailureHook runs fn after every failed append.
func WithFailureHook(fn func()) Option {
	return func(w *Worker) {
		w.onFailure = fn
	}
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{store: store, inbox: inbox}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run persists events until ctx is cancelled, then drains whatever is
// already queued before returning.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case event := <-w.inbox:
			w.persist(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.persist(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) persist(ctx context.Context, event audit.Event) {
	if err := w.store.Append(ctx, event); err != nil {
		if w.onFailure != nil {
			w.onFailure()
		}
		if w.logger != nil {
			w.logger.Error("failed to persist audit event",
				"action", event.Action,
				"application_id", event.ApplicationID,
				"error", err,
			)
		}
	}
}
