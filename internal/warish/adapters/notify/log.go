// Package notify delivers application notifications over Kafka, with a
// structured-log fallback and an asynchronous dispatcher in front.
package notify

import (
	"context"
	"log/slog"

	"warish/internal/warish/ports"
)

// LogNotifier writes notifications to the log. It is the delivery channel
// when no broker is configured and the fallback while Kafka is unhealthy.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n ports.Notification) error {
	attrs := []any{
		"recipient", n.Recipient,
		"event", string(n.Event),
	}
	for k, v := range n.Payload {
		attrs = append(attrs, k, v)
	}
	l.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}
