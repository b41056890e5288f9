package models

import (
	"strings"
	"time"

	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

type CorrectionStatus string

const (
	CorrectionPending  CorrectionStatus = "pending"
	CorrectionResolved CorrectionStatus = "resolved"
)

const maxCorrectionLength = 2000

// CorrectionRequest asks staff to amend a decided application.
type CorrectionRequest struct {
	ID            id.CorrectionID  `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	Description   string           `json:"description"`
	Status        CorrectionStatus `json:"status"`
	Resolution    string           `json:"resolution,omitempty"`
	ResolvedBy    id.StaffID       `json:"resolved_by,omitempty"`
	Reopened      bool             `json:"reopened"`
	CreatedAt     time.Time        `json:"created_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`
}

// Resolution is the staff decision on a correction request.
type Resolution struct {
	Note   string
	Reopen bool
}

func NewCorrectionRequest(reqID id.CorrectionID, appID id.ApplicationID, description string, now time.Time) (*CorrectionRequest, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "correction description is required")
	}
	if len(description) > maxCorrectionLength {
		return nil, dErrors.New(dErrors.CodeValidation, "correction description is too long")
	}
	return &CorrectionRequest{
		ID:            reqID,
		ApplicationID: appID,
		Description:   description,
		Status:        CorrectionPending,
		CreatedAt:     now,
	}, nil
}

// Resolve closes a pending request.
func (c *CorrectionRequest) Resolve(r Resolution, by id.StaffID, now time.Time) error {
	if c.Status == CorrectionResolved {
		return dErrors.New(dErrors.CodeConflict, "correction request is already resolved")
	}
	if strings.TrimSpace(r.Note) == "" {
		return dErrors.New(dErrors.CodeValidation, "resolution note is required")
	}
	c.Status = CorrectionResolved
	c.Resolution = strings.TrimSpace(r.Note)
	c.ResolvedBy = by
	c.Reopened = r.Reopen
	resolvedAt := now
	c.ResolvedAt = &resolvedAt
	return nil
}
