package audit

import (
	"time"

	"github.com/google/uuid"

	id "warish/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: every recorded
	// decision, verification and issuance. Written fail-closed in the same
	// transaction as the change they describe.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers administrative overrides that bypass the normal flow.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	// Written asynchronously and may be dropped under pressure.
	CategoryOperations EventCategory = "operations"
)

// Event is the stored form of every audit record.
type Event struct {
	ID            uuid.UUID
	Category      EventCategory
	Timestamp     time.Time
	ApplicationID id.ApplicationID
	// Subject is the secondary entity involved (document, correction), if any.
	Subject    string
	Action     string
	FromStatus string
	ToStatus   string
	Reason     string
	RequestID  string
	ActorID    string
}

type AuditEvent string

const (
	// Application events
	EventApplicationSubmitted AuditEvent = "application_submitted"
	EventStaffAssigned        AuditEvent = "staff_assigned"
	EventStaffReassigned      AuditEvent = "staff_reassigned"
	EventStatusChanged        AuditEvent = "status_changed"
	EventReopenOverride       AuditEvent = "reopen_override"

	// Document events
	EventDocumentUploaded  AuditEvent = "document_uploaded"
	EventDocumentVerified  AuditEvent = "document_verified"
	EventDocumentRejected  AuditEvent = "document_rejected"
	EventCertificateIssued AuditEvent = "certificate_issued"

	// Family and correction events
	EventFamilyCaptured      AuditEvent = "family_captured"
	EventCorrectionRequested AuditEvent = "correction_requested"
	EventCorrectionResolved  AuditEvent = "correction_resolved"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventStaffAssigned:      CategoryCompliance,
	EventStaffReassigned:    CategoryCompliance,
	EventStatusChanged:      CategoryCompliance,
	EventDocumentVerified:   CategoryCompliance,
	EventDocumentRejected:   CategoryCompliance,
	EventCertificateIssued:  CategoryCompliance,
	EventCorrectionResolved: CategoryCompliance,

	EventReopenOverride: CategorySecurity,

	EventApplicationSubmitted: CategoryOperations,
	EventDocumentUploaded:     CategoryOperations,
	EventFamilyCaptured:       CategoryOperations,
	EventCorrectionRequested:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ComplianceEvent captures a legally significant change requiring guaranteed persistence.
type ComplianceEvent struct {
	Timestamp     time.Time
	ApplicationID id.ApplicationID
	Subject       string
	Action        AuditEvent
	FromStatus    string
	ToStatus      string
	Reason        string
	RequestID     string
	ActorID       string
}

// ToEvent converts to the stored Event form.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:      e.Action.Category(),
		Timestamp:     e.Timestamp,
		ApplicationID: e.ApplicationID,
		Subject:       e.Subject,
		Action:        string(e.Action),
		FromStatus:    e.FromStatus,
		ToStatus:      e.ToStatus,
		Reason:        e.Reason,
		RequestID:     e.RequestID,
		ActorID:       e.ActorID,
	}
}

// OpsEvent captures routine activity with minimal overhead.
type OpsEvent struct {
	Timestamp     time.Time
	ApplicationID id.ApplicationID
	Subject       string
	Action        AuditEvent
	RequestID     string
	ActorID       string
}

func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:      CategoryOperations,
		Timestamp:     e.Timestamp,
		ApplicationID: e.ApplicationID,
		Subject:       e.Subject,
		Action:        string(e.Action),
		RequestID:     e.RequestID,
		ActorID:       e.ActorID,
	}
}
