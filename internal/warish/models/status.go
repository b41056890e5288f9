package models

import (
	dErrors "warish/pkg/domain-errors"
)

// Status is the lifecycle state of a warish application.
type Status string

const (
	StatusSubmitted            Status = "submitted"
	StatusAssigned             Status = "assigned"
	StatusUnderReview          Status = "under_review"
	StatusApproved             Status = "approved"
	StatusRejected             Status = "rejected"
	StatusRenewed              Status = "renewed"
	StatusCertificateGenerated Status = "certificate_generated"
)

var knownStatuses = map[Status]bool{
	StatusSubmitted:            true,
	StatusAssigned:             true,
	StatusUnderReview:          true,
	StatusApproved:             true,
	StatusRejected:             true,
	StatusRenewed:              true,
	StatusCertificateGenerated: true,
}

// ParseStatus validates a persisted or user-supplied status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !knownStatuses[st] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown application status: "+s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

// IsDecided reports whether a review outcome has been recorded.
func (s Status) IsDecided() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusRenewed
}

// IsCertifiable reports whether the status admits certificate issuance.
func (s Status) IsCertifiable() bool {
	return s == StatusApproved || s == StatusRenewed
}

// AllowsReassignment reports whether a different staff member may take over.
// Once review has started the handling staff is locked.
func (s Status) AllowsReassignment() bool {
	return s == StatusSubmitted || s == StatusAssigned
}
