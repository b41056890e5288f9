package compliance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "warish/pkg/domain"
	audit "warish/pkg/platform/audit"
	"warish/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func (failingStore) ListByApplication(context.Context, id.ApplicationID) ([]audit.Event, error) {
	return nil, nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	appID := id.NewApplicationID()

	err := pub.Emit(context.Background(), audit.ComplianceEvent{
		ApplicationID: appID,
		Action:        audit.EventStatusChanged,
		FromStatus:    "under_review",
		ToStatus:      "approved",
		ActorID:       "staff-1",
	})
	require.NoError(t, err)

	events, err := store.ListByApplication(context.Background(), appID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, "approved", events[0].ToStatus)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEmitFailsClosed(t *testing.T) {
	pub := New(failingStore{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	err := pub.Emit(context.Background(), audit.ComplianceEvent{
		ApplicationID: id.NewApplicationID(),
		Action:        audit.EventCertificateIssued,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestEmitRequiresApplicationAndAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())
	assert.Error(t, pub.Emit(context.Background(), audit.ComplianceEvent{Action: audit.EventStatusChanged}))
	assert.Error(t, pub.Emit(context.Background(), audit.ComplianceEvent{ApplicationID: id.NewApplicationID()}))
}
