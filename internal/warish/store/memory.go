package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
	"warish/pkg/platform/sentinel"
	txcontext "warish/pkg/platform/tx"
)

// InMemory is a process-local store. Values are copied on the way in and out
// so callers never share mutable state with the store. Writes made inside a
// MemoryTx are undone if the transaction fails.
type InMemory struct {
	mu           sync.RWMutex
	applications map[id.ApplicationID]*models.Application
	ackIndex     map[string]id.ApplicationID
	documents    map[id.DocumentID]*models.Document
	docsByApp    map[id.ApplicationID][]id.DocumentID
	family       map[id.ApplicationID][]*models.FamilyMember
	corrections  map[id.CorrectionID]*models.CorrectionRequest
	corrByApp    map[id.ApplicationID][]id.CorrectionID
}

func NewInMemory() *InMemory {
	return &InMemory{
		applications: make(map[id.ApplicationID]*models.Application),
		ackIndex:     make(map[string]id.ApplicationID),
		documents:    make(map[id.DocumentID]*models.Document),
		docsByApp:    make(map[id.ApplicationID][]id.DocumentID),
		family:       make(map[id.ApplicationID][]*models.FamilyMember),
		corrections:  make(map[id.CorrectionID]*models.CorrectionRequest),
		corrByApp:    make(map[id.ApplicationID][]id.CorrectionID),
	}
}

// Applications

func (s *InMemory) CreateApplication(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.ackIndex[app.AckCode]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.applications[app.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.applications[app.ID] = copyApplication(app)
	s.ackIndex[app.AckCode] = app.ID

	appID, ack := app.ID, app.AckCode
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.applications, appID)
		delete(s.ackIndex, ack)
	})
	return nil
}

func (s *InMemory) FindApplication(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyApplication(app), nil
}

// FindApplicationForUpdate is FindApplication; isolation comes from the
// transaction runner's lock.
func (s *InMemory) FindApplicationForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	return s.FindApplication(ctx, appID)
}

func (s *InMemory) FindApplicationByAck(_ context.Context, ackCode string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appID, ok := s.ackIndex[ackCode]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyApplication(s.applications[appID]), nil
}

// UpdateApplication replaces the stored application if its version still
// equals expectedVersion.
func (s *InMemory) UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.applications[app.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	previous := current
	s.applications[app.ID] = copyApplication(app)
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.applications[previous.ID] = previous
	})
	return nil
}

// Documents

func (s *InMemory) InsertDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[doc.ApplicationID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if doc.Kind == models.KindCertificateOutput {
		for _, docID := range s.docsByApp[doc.ApplicationID] {
			if s.documents[docID].Kind == models.KindCertificateOutput {
				return sentinel.ErrAlreadyUsed
			}
		}
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	s.docsByApp[doc.ApplicationID] = append(s.docsByApp[doc.ApplicationID], doc.ID)

	docID, appID := doc.ID, doc.ApplicationID
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.documents, docID)
		s.docsByApp[appID] = slices.DeleteFunc(s.docsByApp[appID], func(d id.DocumentID) bool { return d == docID })
	})
	return nil
}

func (s *InMemory) FindDocument(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// ListDocuments returns an application's documents in upload order.
func (s *InMemory) ListDocuments(_ context.Context, appID id.ApplicationID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.docsByApp[appID]
	out := make([]*models.Document, 0, len(ids))
	for _, docID := range ids {
		cp := *s.documents[docID]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) FindCertificate(_ context.Context, appID id.ApplicationID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, docID := range s.docsByApp[appID] {
		if doc := s.documents[docID]; doc.Kind == models.KindCertificateOutput {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// SetVerification writes flag and remark together. It reports changed=false
// when the document already holds exactly that state.
func (s *InMemory) SetVerification(ctx context.Context, docID id.DocumentID, v models.Verification, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[docID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	previous := *doc
	if !doc.ApplyVerification(v, now) {
		return false, nil
	}
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		restored := previous
		s.documents[previous.ID] = &restored
	})
	return true, nil
}

// Family members

// ReplaceFamily swaps an application's whole family capture.
func (s *InMemory) ReplaceFamily(ctx context.Context, appID id.ApplicationID, members []*models.FamilyMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[appID]; !ok {
		return sentinel.ErrNotFound
	}
	previous, hadPrevious := s.family[appID]
	s.family[appID] = copyMembers(members)
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if hadPrevious {
			s.family[appID] = previous
		} else {
			delete(s.family, appID)
		}
	})
	return nil
}

// ListFamily returns members in capture order.
func (s *InMemory) ListFamily(_ context.Context, appID id.ApplicationID) ([]*models.FamilyMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMembers(s.family[appID]), nil
}

// Corrections

func (s *InMemory) CreateCorrection(ctx context.Context, c *models.CorrectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[c.ApplicationID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, exists := s.corrections[c.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	cp := *c
	s.corrections[c.ID] = &cp
	s.corrByApp[c.ApplicationID] = append(s.corrByApp[c.ApplicationID], c.ID)

	corrID, appID := c.ID, c.ApplicationID
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.corrections, corrID)
		s.corrByApp[appID] = slices.DeleteFunc(s.corrByApp[appID], func(c id.CorrectionID) bool { return c == corrID })
	})
	return nil
}

func (s *InMemory) FindCorrection(_ context.Context, corrID id.CorrectionID) (*models.CorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.corrections[corrID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) FindCorrectionForUpdate(ctx context.Context, corrID id.CorrectionID) (*models.CorrectionRequest, error) {
	return s.FindCorrection(ctx, corrID)
}

// ResolveCorrection persists a resolution. Only pending requests can be
// resolved; a request resolved concurrently yields ErrConflict.
func (s *InMemory) ResolveCorrection(ctx context.Context, c *models.CorrectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.corrections[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != models.CorrectionPending {
		return sentinel.ErrConflict
	}
	previous := current
	cp := *c
	s.corrections[c.ID] = &cp
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.corrections[previous.ID] = previous
	})
	return nil
}

func (s *InMemory) ListCorrections(_ context.Context, appID id.ApplicationID) ([]*models.CorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.corrByApp[appID]
	out := make([]*models.CorrectionRequest, 0, len(ids))
	for _, corrID := range ids {
		cp := *s.corrections[corrID]
		out = append(out, &cp)
	}
	return out, nil
}

func copyApplication(app *models.Application) *models.Application {
	cp := *app
	if app.AssignedStaff != nil {
		staff := *app.AssignedStaff
		cp.AssignedStaff = &staff
	}
	if app.MemoDate != nil {
		d := *app.MemoDate
		cp.MemoDate = &d
	}
	if app.ApprovedAt != nil {
		t := *app.ApprovedAt
		cp.ApprovedAt = &t
	}
	return &cp
}

func copyMembers(members []*models.FamilyMember) []*models.FamilyMember {
	out := make([]*models.FamilyMember, 0, len(members))
	for _, m := range members {
		cp := *m
		if m.ParentID != nil {
			parent := *m.ParentID
			cp.ParentID = &parent
		}
		out = append(out, &cp)
	}
	return out
}
