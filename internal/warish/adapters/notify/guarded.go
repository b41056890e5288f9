package notify

import (
	"context"
	"log/slog"

	"warish/internal/warish/ports"
	"warish/pkg/platform/circuit"
)

// Guarded sends through primary until it keeps failing, then switches to
// fallback until the breaker lets a probe through again.
type Guarded struct {
	primary  ports.Notifier
	fallback ports.Notifier
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewGuarded(primary, fallback ports.Notifier, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	return &Guarded{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (g *Guarded) Notify(ctx context.Context, n ports.Notification) error {
	if !g.breaker.Allow() {
		return g.fallback.Notify(ctx, n)
	}
	err := g.primary.Notify(ctx, n)
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "notification channel recovered", "breaker", g.breaker.Name())
		}
		return nil
	}

	useFallback, change := g.breaker.RecordFailure()
	if change.Opened {
		g.logger.WarnContext(ctx, "notification channel failing, switching to fallback",
			"breaker", g.breaker.Name(),
			"error", err,
		)
	}
	if useFallback {
		return g.fallback.Notify(ctx, n)
	}
	return err
}
