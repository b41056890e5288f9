package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
	"warish/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock, db
}

func TestPostgresUpdateApplication(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	app, err := models.NewApplication(id.NewApplicationID(), "WAR-2026-ABCDEFGH",
		"Rahim Uddin", "Karim Uddin", now.AddDate(0, -1, 0), time.Time{}, now)
	require.NoError(t, err)

	t.Run("writes when the version matches", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectExec("UPDATE warish_applications").
			WithArgs(app.ID.String(), 1, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.UpdateApplication(context.Background(), app, 1))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectExec("UPDATE warish_applications").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		assert.ErrorIs(t, s.UpdateApplication(context.Background(), app, 1), sentinel.ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectExec("UPDATE warish_applications").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		assert.ErrorIs(t, s.UpdateApplication(context.Background(), app, 1), sentinel.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresFindApplication(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	appID := id.NewApplicationID()
	columns := []string{
		"id", "ack_code", "applicant_name", "deceased_name", "date_of_death", "reporting_date",
		"status", "assigned_staff", "memo_number", "memo_date", "approved_at", "remarks", "version",
		"created_at", "updated_at",
	}

	t.Run("maps nullable columns", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		memoDate := now.AddDate(0, 0, -1)
		mock.ExpectQuery("SELECT (.+) FROM warish_applications WHERE id = \\$1 FOR UPDATE").
			WithArgs(appID.String()).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				appID.String(), "WAR-2026-ABCDEFGH", "Rahim", "Karim", now.AddDate(0, -1, 0), now,
				"approved", "staff-1", "MEMO-7", memoDate, now, "log\n", 5, now, now,
			))

		app, err := s.FindApplicationForUpdate(context.Background(), appID)
		require.NoError(t, err)
		assert.Equal(t, appID, app.ID)
		assert.Equal(t, models.StatusApproved, app.Status)
		require.NotNil(t, app.AssignedStaff)
		assert.Equal(t, id.StaffID("staff-1"), *app.AssignedStaff)
		require.NotNil(t, app.MemoDate)
		assert.Equal(t, memoDate, *app.MemoDate)
		assert.Equal(t, 5, app.Version)
	})

	t.Run("no rows is not found", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM warish_applications").WillReturnError(sql.ErrNoRows)

		_, err := s.FindApplication(context.Background(), appID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("unknown stored status is an error", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM warish_applications").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				appID.String(), "WAR-2026-ABCDEFGH", "Rahim", "Karim", now, now,
				"archived", nil, nil, nil, nil, "", 1, now, now,
			))

		_, err := s.FindApplication(context.Background(), appID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresInsertDocumentMapsUniqueViolation(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	doc, err := models.NewCertificateDocument(id.NewDocumentID(), id.NewApplicationID(), "certificate.pdf",
		models.StoredObject{URL: "file:///c.pdf", StorageID: "c.pdf"}, now)
	require.NoError(t, err)

	s, mock, _ := newMockStore(t)
	mock.ExpectExec("INSERT INTO warish_documents").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "warish_documents_one_certificate"})

	assert.ErrorIs(t, s.InsertDocument(context.Background(), doc), sentinel.ErrAlreadyUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetVerification(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	docID := id.NewDocumentID()

	t.Run("changed", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectExec("UPDATE warish_documents").
			WithArgs(docID.String(), true, models.RemarkManuallyVerified, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := s.SetVerification(context.Background(), docID, models.VerificationVerified, now)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("already in that state", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectExec("UPDATE warish_documents").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		changed, err := s.SetVerification(context.Background(), docID, models.VerificationVerified, now)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("unknown document", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectExec("UPDATE warish_documents").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := s.SetVerification(context.Background(), docID, models.VerificationVerified, now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresTxCommitsAndRollsBack(t *testing.T) {
	t.Run("commit on success", func(t *testing.T) {
		_, mock, db := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		runner := NewPostgresTx(db, time.Second)
		require.NoError(t, runner.RunInTx(context.Background(), func(context.Context) error { return nil }))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		_, mock, db := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		runner := NewPostgresTx(db, time.Second)
		err := runner.RunInTx(context.Background(), func(context.Context) error { return sentinel.ErrConflict })
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
