// Package ports defines the collaborators the warish service depends on but
// does not own: object storage, notification delivery, the cross-instance
// issuance lease and certificate rendering.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Storage,Notifier,Lease,Renderer

import (
	"context"
	"time"

	"warish/internal/warish/models"
)

// Storage holds document payloads. Implementations must honour ctx
// cancellation; the service bounds every call with its storage timeout.
type Storage interface {
	// Upload stores data under folderHint and returns its public URL and key.
	Upload(ctx context.Context, data []byte, mimeType, folderHint string) (models.StoredObject, error)
	// Delete removes a stored object. Deleting a missing object is not an error.
	Delete(ctx context.Context, storageID string) error
}

// NotificationEvent names what happened to an application.
type NotificationEvent string

const (
	EventSubmitted         NotificationEvent = "application.submitted"
	EventAssigned          NotificationEvent = "application.assigned"
	EventDecided           NotificationEvent = "application.decided"
	EventCertificateIssued NotificationEvent = "certificate.issued"
	EventCorrectionOpened  NotificationEvent = "correction.opened"
)

// Notification is one outbound message.
type Notification struct {
	Recipient string
	Event     NotificationEvent
	Payload   map[string]string
}

// Notifier delivers notifications. Callers dispatch asynchronously and only
// log failures.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Lease is a best-effort cross-instance mutual exclusion on a key.
type Lease interface {
	// Acquire returns a release func when the key was free. ok=false means
	// another holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// CertificateData is what a rendered certificate shows.
type CertificateData struct {
	Application *models.Application
	Family      []*models.FamilyMember
	IssuedAt    time.Time
}

// Renderer produces the certificate document.
type Renderer interface {
	Render(ctx context.Context, data CertificateData) ([]byte, error)
}
