package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"warish/internal/warish/ports"
)

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 5 * time.Second
)

// Dispatcher sends notifications off the request path. Dispatch never blocks
// and delivery failures are logged, never returned.
type Dispatcher struct {
	notifier ports.Notifier
	logger   *slog.Logger
	metrics  *Metrics
	timeout  time.Duration
	queue    chan ports.Notification
	wg       sync.WaitGroup
	once     sync.Once
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithDispatchQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan ports.Notification, n)
		}
	}
}

// NewDispatcher starts one delivery worker. Close drains the queue.
func NewDispatcher(notifier ports.Notifier, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger,
		timeout:  defaultSendTimeout,
		queue:    make(chan ports.Notification, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify enqueues n. It satisfies ports.Notifier so the service can use the
// dispatcher directly.
func (d *Dispatcher) Notify(ctx context.Context, n ports.Notification) error {
	select {
	case d.queue <- n:
	default:
		if d.metrics != nil {
			d.metrics.Dropped.Inc()
		}
		d.logger.WarnContext(ctx, "notification queue full, dropping notification",
			"event", string(n.Event),
			"recipient", n.Recipient,
		)
	}
	return nil
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		d.send(n)
	}
}

func (d *Dispatcher) send(n ports.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	outcome := "sent"
	if err := d.notifier.Notify(ctx, n); err != nil {
		outcome = "failed"
		d.logger.ErrorContext(ctx, "notification delivery failed",
			"event", string(n.Event),
			"recipient", n.Recipient,
			"error", err,
		)
	}
	if d.metrics != nil {
		d.metrics.observe(string(n.Event), outcome)
	}
}

// Close stops accepting notifications and waits for queued ones to be sent.
// Notify must not be called after Close.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}
