package audit

import (
	"context"

	id "warish/pkg/domain"
)

// Store persists audit events. Implementations join the transaction bound to
// ctx when there is one.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]Event, error)
}
