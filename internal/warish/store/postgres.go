package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
	"warish/pkg/platform/sentinel"
	txcontext "warish/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore persists applications, documents, family members and
// correction requests in PostgreSQL. Every query runs on the transaction bound
// to ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const applicationColumns = `id, ack_code, applicant_name, deceased_name, date_of_death, reporting_date,
	status, assigned_staff, memo_number, memo_date, approved_at, remarks, version, created_at, updated_at`

func (s *PostgresStore) CreateApplication(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO warish_applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := txcontext.Or(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(app.ID), app.AckCode, app.ApplicantName, app.DeceasedName,
		app.DateOfDeath, app.ReportingDate, string(app.Status),
		nullStaff(app.AssignedStaff), nullString(app.MemoNumber), nullTime(app.MemoDate), nullTime(app.ApprovedAt),
		app.Remarks, app.Version, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM warish_applications WHERE id = $1`
	return s.findApplication(ctx, query, uuid.UUID(appID))
}

// FindApplicationForUpdate row-locks the application until the surrounding
// transaction ends.
func (s *PostgresStore) FindApplicationForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM warish_applications WHERE id = $1 FOR UPDATE`
	return s.findApplication(ctx, query, uuid.UUID(appID))
}

func (s *PostgresStore) FindApplicationByAck(ctx context.Context, ackCode string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM warish_applications WHERE ack_code = $1`
	return s.findApplication(ctx, query, ackCode)
}

func (s *PostgresStore) findApplication(ctx context.Context, query string, arg any) (*models.Application, error) {
	app, err := scanApplication(txcontext.Or(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

// UpdateApplication writes app only if the stored version equals
// expectedVersion. A lost race yields ErrConflict.
func (s *PostgresStore) UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int) error {
	query := `
		UPDATE warish_applications
		SET status = $3, assigned_staff = $4, memo_number = $5, memo_date = $6, approved_at = $7,
			remarks = $8, version = $9, updated_at = $10
		WHERE id = $1 AND version = $2
	`
	q := txcontext.Or(ctx, s.db)
	res, err := q.ExecContext(ctx, query,
		uuid.UUID(app.ID), expectedVersion, string(app.Status),
		nullStaff(app.AssignedStaff), nullString(app.MemoNumber), nullTime(app.MemoDate), nullTime(app.ApprovedAt),
		app.Remarks, app.Version, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM warish_applications WHERE id = $1)`, uuid.UUID(app.ID),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check application exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app           models.Application
		appID         uuid.UUID
		status        string
		assignedStaff sql.NullString
		memoNumber    sql.NullString
		memoDate      sql.NullTime
		approvedAt    sql.NullTime
	)
	if err := row.Scan(
		&appID, &app.AckCode, &app.ApplicantName, &app.DeceasedName, &app.DateOfDeath, &app.ReportingDate,
		&status, &assignedStaff, &memoNumber, &memoDate, &approvedAt, &app.Remarks, &app.Version,
		&app.CreatedAt, &app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("stored application status: %w", err)
	}
	app.ID = id.ApplicationID(appID)
	app.Status = parsed
	if assignedStaff.Valid {
		staff := id.StaffID(assignedStaff.String)
		app.AssignedStaff = &staff
	}
	app.MemoNumber = memoNumber.String
	app.MemoDate = timePtr(memoDate)
	app.ApprovedAt = timePtr(approvedAt)
	return &app, nil
}

const documentColumns = `id, application_id, kind, file_name, mime_type, url, storage_id, verified, remarks, created_at, updated_at`

// InsertDocument stores a document. A second certificate-output document for
// the same application violates the partial unique index and yields
// ErrAlreadyUsed.
func (s *PostgresStore) InsertDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO warish_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := txcontext.Or(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID), uuid.UUID(doc.ApplicationID), string(doc.Kind), doc.FileName, doc.MimeType,
		doc.URL, doc.StorageID, doc.Verified, doc.Remarks, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM warish_documents WHERE id = $1`
	doc, err := scanDocument(txcontext.Or(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(docID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, appID id.ApplicationID) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM warish_documents WHERE application_id = $1 ORDER BY created_at, id`
	rows, err := txcontext.Or(ctx, s.db).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) FindCertificate(ctx context.Context, appID id.ApplicationID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM warish_documents WHERE application_id = $1 AND kind = $2`
	doc, err := scanDocument(txcontext.Or(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(appID), string(models.KindCertificateOutput)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return doc, nil
}

// SetVerification writes the flag and remark in one statement. The WHERE
// clause skips the write when the row already holds that pair, so a repeated
// call leaves updated_at alone and reports changed=false.
func (s *PostgresStore) SetVerification(ctx context.Context, docID id.DocumentID, v models.Verification, now time.Time) (bool, error) {
	query := `
		UPDATE warish_documents
		SET verified = $2, remarks = $3, updated_at = $4
		WHERE id = $1 AND (verified IS DISTINCT FROM $2 OR remarks IS DISTINCT FROM $3)
	`
	q := txcontext.Or(ctx, s.db)
	res, err := q.ExecContext(ctx, query, uuid.UUID(docID), v.Verified, v.Remark, now)
	if err != nil {
		return false, fmt.Errorf("set document verification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set document verification rows affected: %w", err)
	}
	if rows > 0 {
		return true, nil
	}
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM warish_documents WHERE id = $1)`, uuid.UUID(docID),
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check document exists: %w", err)
	}
	if !exists {
		return false, sentinel.ErrNotFound
	}
	return false, nil
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc   models.Document
		docID uuid.UUID
		appID uuid.UUID
		kind  string
	)
	if err := row.Scan(
		&docID, &appID, &kind, &doc.FileName, &doc.MimeType, &doc.URL, &doc.StorageID,
		&doc.Verified, &doc.Remarks, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := models.ParseDocumentKind(kind)
	if err != nil {
		return nil, fmt.Errorf("stored document kind: %w", err)
	}
	doc.ID = id.DocumentID(docID)
	doc.ApplicationID = id.ApplicationID(appID)
	doc.Kind = parsed
	return &doc, nil
}

// ReplaceFamily deletes the application's previous capture and inserts members.
// The parent foreign key is deferred, so members may arrive in any order.
// Callers run this inside a transaction.
func (s *PostgresStore) ReplaceFamily(ctx context.Context, appID id.ApplicationID, members []*models.FamilyMember) error {
	q := txcontext.Or(ctx, s.db)
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM warish_applications WHERE id = $1)`, uuid.UUID(appID),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check application exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM warish_family_members WHERE application_id = $1`, uuid.UUID(appID),
	); err != nil {
		return fmt.Errorf("clear family members: %w", err)
	}

	query := `
		INSERT INTO warish_family_members (id, application_id, parent_id, name, relation, living_status, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, m := range members {
		var parent any
		if m.ParentID != nil {
			parent = uuid.UUID(*m.ParentID)
		}
		if _, err := q.ExecContext(ctx, query,
			uuid.UUID(m.ID), uuid.UUID(appID), parent, m.Name, m.Relation,
			string(m.LivingStatus), m.Position, m.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert family member: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListFamily(ctx context.Context, appID id.ApplicationID) ([]*models.FamilyMember, error) {
	query := `
		SELECT id, application_id, parent_id, name, relation, living_status, position, created_at
		FROM warish_family_members
		WHERE application_id = $1
		ORDER BY position
	`
	rows, err := txcontext.Or(ctx, s.db).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var members []*models.FamilyMember
	for rows.Next() {
		var (
			m        models.FamilyMember
			memberID uuid.UUID
			ownerID  uuid.UUID
			parentID uuid.NullUUID
			status   string
		)
		if err := rows.Scan(&memberID, &ownerID, &parentID, &m.Name, &m.Relation, &status, &m.Position, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		m.ID = id.MemberID(memberID)
		m.ApplicationID = id.ApplicationID(ownerID)
		if parentID.Valid {
			parent := id.MemberID(parentID.UUID)
			m.ParentID = &parent
		}
		m.LivingStatus = models.LivingStatus(status)
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate family members: %w", err)
	}
	return members, nil
}

const correctionColumns = `id, application_id, description, status, resolution, resolved_by, reopened, created_at, resolved_at`

func (s *PostgresStore) CreateCorrection(ctx context.Context, c *models.CorrectionRequest) error {
	query := `
		INSERT INTO warish_corrections (` + correctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := txcontext.Or(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.ApplicationID), c.Description, string(c.Status),
		c.Resolution, string(c.ResolvedBy), c.Reopened, c.CreatedAt, nullTime(c.ResolvedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert correction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindCorrection(ctx context.Context, corrID id.CorrectionID) (*models.CorrectionRequest, error) {
	query := `SELECT ` + correctionColumns + ` FROM warish_corrections WHERE id = $1`
	return s.findCorrection(ctx, query, corrID)
}

func (s *PostgresStore) FindCorrectionForUpdate(ctx context.Context, corrID id.CorrectionID) (*models.CorrectionRequest, error) {
	query := `SELECT ` + correctionColumns + ` FROM warish_corrections WHERE id = $1 FOR UPDATE`
	return s.findCorrection(ctx, query, corrID)
}

func (s *PostgresStore) findCorrection(ctx context.Context, query string, corrID id.CorrectionID) (*models.CorrectionRequest, error) {
	c, err := scanCorrection(txcontext.Or(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(corrID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find correction: %w", err)
	}
	return c, nil
}

// ResolveCorrection persists a resolution for a request that is still pending.
func (s *PostgresStore) ResolveCorrection(ctx context.Context, c *models.CorrectionRequest) error {
	query := `
		UPDATE warish_corrections
		SET status = $2, resolution = $3, resolved_by = $4, reopened = $5, resolved_at = $6
		WHERE id = $1 AND status = 'pending'
	`
	q := txcontext.Or(ctx, s.db)
	res, err := q.ExecContext(ctx, query,
		uuid.UUID(c.ID), string(c.Status), c.Resolution, string(c.ResolvedBy), c.Reopened, nullTime(c.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("resolve correction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve correction rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM warish_corrections WHERE id = $1)`, uuid.UUID(c.ID),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check correction exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *PostgresStore) ListCorrections(ctx context.Context, appID id.ApplicationID) ([]*models.CorrectionRequest, error) {
	query := `SELECT ` + correctionColumns + ` FROM warish_corrections WHERE application_id = $1 ORDER BY created_at, id`
	rows, err := txcontext.Or(ctx, s.db).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	var out []*models.CorrectionRequest
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corrections: %w", err)
	}
	return out, nil
}

func scanCorrection(row rowScanner) (*models.CorrectionRequest, error) {
	var (
		c          models.CorrectionRequest
		corrID     uuid.UUID
		appID      uuid.UUID
		status     string
		resolvedBy string
		resolvedAt sql.NullTime
	)
	if err := row.Scan(
		&corrID, &appID, &c.Description, &status, &c.Resolution, &resolvedBy, &c.Reopened,
		&c.CreatedAt, &resolvedAt,
	); err != nil {
		return nil, err
	}
	c.ID = id.CorrectionID(corrID)
	c.ApplicationID = id.ApplicationID(appID)
	c.Status = models.CorrectionStatus(status)
	c.ResolvedBy = id.StaffID(resolvedBy)
	c.ResolvedAt = timePtr(resolvedAt)
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStaff(staff *id.StaffID) sql.NullString {
	if staff == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*staff), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
