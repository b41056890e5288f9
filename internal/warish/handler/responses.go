package handler

import (
	"time"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
)

// SubmitResponse is what a citizen keeps after submitting.
type SubmitResponse struct {
	ID          id.ApplicationID `json:"id"`
	AckCode     string           `json:"ack_code"`
	Status      models.Status    `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

func toSubmitResponse(app *models.Application) SubmitResponse {
	return SubmitResponse{
		ID:          app.ID,
		AckCode:     app.AckCode,
		Status:      app.Status,
		SubmittedAt: app.CreatedAt,
	}
}

// StatusResponse is the public status lookup. It omits staff remarks and memo details.
type StatusResponse struct {
	AckCode      string        `json:"ack_code"`
	DeceasedName string        `json:"deceased_name"`
	Status       models.Status `json:"status"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func toStatusResponse(app *models.Application) StatusResponse {
	return StatusResponse{
		AckCode:      app.AckCode,
		DeceasedName: app.DeceasedName,
		Status:       app.Status,
		UpdatedAt:    app.UpdatedAt,
	}
}

type AssignResponse struct {
	Application *models.Application `json:"application"`
	Changed     bool                `json:"changed"`
}

type VerificationResponse struct {
	Document *models.Document `json:"document"`
	Changed  bool             `json:"changed"`
}

type EligibilityResponse struct {
	ApplicationID id.ApplicationID `json:"application_id"`
	Eligible      bool             `json:"eligible"`
}

// AuditEventResponse is one row of the audit trail.
type AuditEventResponse struct {
	Category   string    `json:"category"`
	Action     string    `json:"action"`
	Subject    string    `json:"subject,omitempty"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
