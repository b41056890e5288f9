package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	id "warish/pkg/domain"
	audit "warish/pkg/platform/audit"
	txcontext "warish/pkg/platform/tx"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.ApplicationID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.ApplicationID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.ApplicationID][]audit.Event)
}

// Append records the event. Inside an in-memory transaction the append is
// undone if the transaction rolls back.
func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.mu.Lock()
	s.events[event.ApplicationID] = append(s.events[event.ApplicationID], event)
	s.mu.Unlock()

	txcontext.OnRollback(ctx, func() { s.remove(event.ApplicationID, event.ID) })
	return nil
}

func (s *InMemoryStore) remove(appID id.ApplicationID, eventID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[appID]
	for i := range events {
		if events[i].ID == eventID {
			s.events[appID] = append(events[:i:i], events[i+1:]...)
			return
		}
	}
}

func (s *InMemoryStore) ListByApplication(_ context.Context, applicationID id.ApplicationID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[applicationID]...), nil
}

// ListAll returns all audit events across all applications.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allEvents []audit.Event
	for _, appEvents := range s.events {
		allEvents = append(allEvents, appEvents...)
	}
	return allEvents, nil
}
