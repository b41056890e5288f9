//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warish/internal/warish/models"
	"warish/internal/warish/store"
	id "warish/pkg/domain"
	"warish/pkg/platform/sentinel"
	"warish/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	tx       *store.PostgresTx
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.tx = store.NewPostgresTx(s.postgres.DB, 5*time.Second)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"warish_corrections", "warish_family_members", "warish_documents", "warish_applications")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createApplication(ack string) *models.Application {
	app, err := models.NewApplication(id.NewApplicationID(), ack,
		"Rahim Uddin", "Karim Uddin", s.now.AddDate(0, -1, 0), time.Time{}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateApplication(context.Background(), app))
	return app
}

func (s *PostgresStoreSuite) TestRoundTripAndAckUniqueness() {
	ctx := context.Background()
	app := s.createApplication("WAR-2026-AAAA2222")

	byAck, err := s.store.FindApplicationByAck(ctx, app.AckCode)
	s.Require().NoError(err)
	s.Equal(app.ID, byAck.ID)
	s.Equal(models.StatusSubmitted, byAck.Status)
	s.Nil(byAck.MemoDate)

	dup, err := models.NewApplication(id.NewApplicationID(), app.AckCode,
		"Other", "Person", s.now.AddDate(0, 0, -2), time.Time{}, s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateApplication(ctx, dup), sentinel.ErrAlreadyUsed)
}

// TestConcurrentCertificateInserts checks that the partial unique index lets
// exactly one certificate-output row in under contention.
func (s *PostgresStoreSuite) TestConcurrentCertificateInserts() {
	ctx := context.Background()
	app := s.createApplication("WAR-2026-BBBB3333")
	const goroutines = 50

	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
		rejected atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := models.NewCertificateDocument(id.NewDocumentID(), app.ID, "certificate.pdf",
				models.StoredObject{URL: "file:///c.pdf", StorageID: "c.pdf"}, s.now)
			s.Require().NoError(err)
			err = s.store.InsertDocument(ctx, doc)
			switch {
			case err == nil:
				inserted.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				rejected.Add(1)
			default:
				s.Failf("unexpected error", "%v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), inserted.Load())
	s.Equal(int32(goroutines-1), rejected.Load())
}

func (s *PostgresStoreSuite) TestTransactionRollsBackStatusWrite() {
	ctx := context.Background()
	app := s.createApplication("WAR-2026-CCCC4444")
	boom := errors.New("boom")

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.store.FindApplicationForUpdate(ctx, app.ID)
		if err != nil {
			return err
		}
		expected := locked.Version
		if _, err := locked.Apply(models.Assign{StaffID: "staff-1"}, models.Facts{}, models.DefaultPolicy, "staff-1", s.now); err != nil {
			return err
		}
		if err := s.store.UpdateApplication(ctx, locked, expected); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	stored, err := s.store.FindApplication(ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, stored.Status)
	s.Nil(stored.AssignedStaff)
}

func (s *PostgresStoreSuite) TestFamilyChildBeforeParent() {
	ctx := context.Background()
	app := s.createApplication("WAR-2026-DDDD5555")
	members, err := models.ResolveMembers(app.ID, []models.MemberInput{
		{Ref: "grandchild", ParentRef: "child", Name: "Grandchild"},
		{Ref: "child", ParentRef: "root", Name: "Child"},
		{Ref: "root", Name: "Root", LivingStatus: models.LivingStatusDeceased},
	}, s.now)
	s.Require().NoError(err)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.ReplaceFamily(ctx, app.ID, members)
	})
	s.Require().NoError(err)

	listed, err := s.store.ListFamily(ctx, app.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal("Grandchild", listed[0].Name)
	s.Nil(listed[2].ParentID)
	s.Equal(models.LivingStatusDeceased, listed[2].LivingStatus)
}
