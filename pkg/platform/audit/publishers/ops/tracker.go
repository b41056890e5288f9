// Package ops provides a non-blocking tracker for operational audit events.
//
// Track never blocks the caller: events go onto a bounded queue drained by a
// worker.Worker, and are dropped (and counted) when the queue is full.
package ops

import (
	"context"
	"log/slog"
	"time"

	audit "warish/pkg/platform/audit"
	"warish/pkg/platform/audit/worker"
)

const defaultQueueSize = 1024

type Tracker struct {
	queue   chan audit.Event
	worker  *worker.Worker
	logger  *slog.Logger
	metrics *Metrics
	done    chan struct{}
	cancel  context.CancelFunc
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithQueueSize bounds the number of pending events.
func WithQueueSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.queue = make(chan audit.Event, n)
		}
	}
}

// New creates a tracker and starts its worker. Call Close to drain and stop it.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		queue: make(chan audit.Event, defaultQueueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	var workerOpts []worker.Option
	if t.logger != nil {
		workerOpts = append(workerOpts, worker.WithLogger(t.logger))
	}
	if t.metrics != nil {
		workerOpts = append(workerOpts, worker.WithFailureHook(t.metrics.IncPersistFailures))
	}
	t.worker = worker.NewWorker(store, t.queue, workerOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go func() {
		defer close(t.done)
		t.worker.Run(ctx)
	}()
	return t
}

// Track enqueues an event without blocking.
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case t.queue <- event.ToEvent():
		if t.metrics != nil {
			t.metrics.IncTracked()
		}
	default:
		if t.metrics != nil {
			t.metrics.IncDropped()
		}
		if t.logger != nil {
			t.logger.WarnContext(ctx, "ops audit queue full, dropping event",
				"action", event.Action,
				"application_id", event.ApplicationID,
			)
		}
	}
}

// Close stops accepting work, drains the queue and waits for the worker.
func (t *Tracker) Close() error {
	t.cancel()
	<-t.done
	return nil
}
