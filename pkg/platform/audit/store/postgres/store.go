package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "warish/pkg/domain"
	audit "warish/pkg/platform/audit"
	txcontext "warish/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table. Appends join the
// transaction bound to ctx so an audit row commits or rolls back with the
// change it describes.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes an audit event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := event.ID
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, application_id, subject, action,
			from_status, to_status, reason, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := txcontext.Or(ctx, s.db).ExecContext(ctx, query,
		eventID,
		string(category),
		event.Timestamp,
		uuid.UUID(event.ApplicationID),
		event.Subject,
		event.Action,
		event.FromStatus,
		event.ToStatus,
		event.Reason,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByApplication returns an application's events oldest first.
func (s *Store) ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, application_id, subject, action,
			   from_status, to_status, reason, request_id, actor_id
		FROM audit_events
		WHERE application_id = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := txcontext.Or(ctx, s.db).QueryContext(ctx, query, uuid.UUID(applicationID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			appID    uuid.UUID
		)
		if err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&appID,
			&event.Subject,
			&event.Action,
			&event.FromStatus,
			&event.ToStatus,
			&event.Reason,
			&event.RequestID,
			&event.ActorID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.ApplicationID = id.ApplicationID(appID)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
