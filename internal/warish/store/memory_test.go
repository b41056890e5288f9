package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	"warish/pkg/platform/sentinel"
	txcontext "warish/pkg/platform/tx"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	tx    *MemoryTx
	ctx   context.Context
	now   time.Time
	app   *models.Application
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.tx = NewMemoryTx(time.Second)
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	app, err := models.NewApplication(id.NewApplicationID(), "WAR-2026-ABCDEFGH",
		"Rahim Uddin", "Karim Uddin", s.now.AddDate(0, -1, 0), time.Time{}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateApplication(s.ctx, app))
	s.app = app
}

func (s *InMemorySuite) newDocument(kind models.DocumentKind) *models.Document {
	obj := models.StoredObject{URL: "mem://doc", StorageID: "doc-key"}
	var (
		doc *models.Document
		err error
	)
	if kind == models.KindCertificateOutput {
		doc, err = models.NewCertificateDocument(id.NewDocumentID(), s.app.ID, "certificate.pdf", obj, s.now)
	} else {
		doc, err = models.NewSupportingDocument(id.NewDocumentID(), s.app.ID, "proof.pdf", "application/pdf", obj, s.now)
	}
	s.Require().NoError(err)
	return doc
}

func (s *InMemorySuite) TestApplicationsAreCopied() {
	found, err := s.store.FindApplication(s.ctx, s.app.ID)
	s.Require().NoError(err)
	found.Remarks = "tampered"

	again, err := s.store.FindApplication(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.NotEqual("tampered", again.Remarks)
}

func (s *InMemorySuite) TestAckCodeIsUnique() {
	dup, err := models.NewApplication(id.NewApplicationID(), s.app.AckCode,
		"Someone", "Else", s.now.AddDate(0, 0, -3), time.Time{}, s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateApplication(s.ctx, dup), sentinel.ErrAlreadyUsed)

	byAck, err := s.store.FindApplicationByAck(s.ctx, s.app.AckCode)
	s.Require().NoError(err)
	s.Equal(s.app.ID, byAck.ID)

	_, err = s.store.FindApplicationByAck(s.ctx, "WAR-2026-MISSING0")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestUpdateApplicationComparesVersion() {
	app, err := s.store.FindApplication(s.ctx, s.app.ID)
	s.Require().NoError(err)
	expected := app.Version
	_, err = app.Apply(models.Assign{StaffID: "staff-1"}, models.Facts{}, models.DefaultPolicy, "staff-1", s.now)
	s.Require().NoError(err)

	s.Require().NoError(s.store.UpdateApplication(s.ctx, app, expected))
	s.ErrorIs(s.store.UpdateApplication(s.ctx, app, expected), sentinel.ErrConflict)

	missing := *app
	missing.ID = id.NewApplicationID()
	s.ErrorIs(s.store.UpdateApplication(s.ctx, &missing, 1), sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestSecondCertificateIsRejected() {
	s.Require().NoError(s.store.InsertDocument(s.ctx, s.newDocument(models.KindSupportingProof)))
	s.Require().NoError(s.store.InsertDocument(s.ctx, s.newDocument(models.KindCertificateOutput)))
	s.ErrorIs(s.store.InsertDocument(s.ctx, s.newDocument(models.KindCertificateOutput)), sentinel.ErrAlreadyUsed)

	docs, err := s.store.ListDocuments(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Equal(1, models.CountCertificates(docs))
	s.Len(docs, 2)
}

func (s *InMemorySuite) TestSetVerificationIsIdempotent() {
	doc := s.newDocument(models.KindSupportingProof)
	s.Require().NoError(s.store.InsertDocument(s.ctx, doc))

	later := s.now.Add(time.Hour)
	changed, err := s.store.SetVerification(s.ctx, doc.ID, models.VerificationVerified, later)
	s.Require().NoError(err)
	s.True(changed)

	changed, err = s.store.SetVerification(s.ctx, doc.ID, models.VerificationVerified, later.Add(time.Hour))
	s.Require().NoError(err)
	s.False(changed)

	stored, err := s.store.FindDocument(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.True(stored.Verified)
	s.Equal(models.RemarkManuallyVerified, stored.Remarks)
	s.Equal(later, stored.UpdatedAt)

	_, err = s.store.SetVerification(s.ctx, id.NewDocumentID(), models.VerificationVerified, later)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestReplaceFamilyKeepsCaptureOrder() {
	members, err := models.ResolveMembers(s.app.ID, []models.MemberInput{
		{Ref: "child", ParentRef: "root", Name: "Child"},
		{Ref: "root", Name: "Root"},
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.ReplaceFamily(s.ctx, s.app.ID, members))

	listed, err := s.store.ListFamily(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal("Child", listed[0].Name)
	s.Equal(listed[1].ID, *listed[0].ParentID)

	s.ErrorIs(s.store.ReplaceFamily(s.ctx, id.NewApplicationID(), members), sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestResolveCorrectionOnlyOnce() {
	c, err := models.NewCorrectionRequest(id.NewCorrectionID(), s.app.ID, "Spelling of the deceased's name", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateCorrection(s.ctx, c))

	s.Require().NoError(c.Resolve(models.Resolution{Note: "fixed"}, "staff-1", s.now))
	s.Require().NoError(s.store.ResolveCorrection(s.ctx, c))
	s.ErrorIs(s.store.ResolveCorrection(s.ctx, c), sentinel.ErrConflict)

	listed, err := s.store.ListCorrections(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(models.CorrectionResolved, listed[0].Status)
}

func (s *InMemorySuite) TestFailedTransactionIsUndone() {
	boom := errors.New("boom")
	doc := s.newDocument(models.KindCertificateOutput)

	err := s.tx.RunInTx(s.ctx, func(ctx context.Context) error {
		app, err := s.store.FindApplicationForUpdate(ctx, s.app.ID)
		if err != nil {
			return err
		}
		expected := app.Version
		if _, err := app.Apply(models.Assign{StaffID: "staff-1"}, models.Facts{}, models.DefaultPolicy, "staff-1", s.now); err != nil {
			return err
		}
		if err := s.store.UpdateApplication(ctx, app, expected); err != nil {
			return err
		}
		if err := s.store.InsertDocument(ctx, doc); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	app, err := s.store.FindApplication(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, app.Status)
	s.Equal(s.app.Version, app.Version)

	_, err = s.store.FindDocument(s.ctx, doc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestCancelledContextAbortsTransaction() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	called := false
	err := s.tx.RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	s.False(called)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *InMemorySuite) TestTransactionsOnOneKeyAreSerialized() {
	const goroutines = 20
	var wg sync.WaitGroup
	conflicts := 0
	var mu sync.Mutex

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := txcontext.WithLockKey(s.ctx, s.app.ID.String())
			err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
				app, err := s.store.FindApplicationForUpdate(ctx, s.app.ID)
				if err != nil {
					return err
				}
				expected := app.Version
				app.Remarks += "x"
				app.Version++
				return s.store.UpdateApplication(ctx, app, expected)
			})
			if errors.Is(err, sentinel.ErrConflict) {
				mu.Lock()
				conflicts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Zero(conflicts)
	app, err := s.store.FindApplication(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Equal(s.app.Version+goroutines, app.Version)
}
