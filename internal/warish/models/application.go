package models

import (
	"fmt"
	"strings"
	"time"

	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

const maxNameLength = 200

// Application is the aggregate root for a warish (inheritance certificate) request.
//
// Invariants:
//   - AckCode is set at construction and never changes
//   - Status moves only along the edges in machine.go
//   - MemoNumber and MemoDate are either both set or both empty
//   - Remarks only grow; each transition appends one line
//   - Version increases by one on every persisted mutation
type Application struct {
	ID            id.ApplicationID `json:"id"`
	AckCode       string           `json:"ack_code"`
	ApplicantName string           `json:"applicant_name"`
	DeceasedName  string           `json:"deceased_name"`
	DateOfDeath   time.Time        `json:"date_of_death"`
	ReportingDate time.Time        `json:"reporting_date"`
	Status        Status           `json:"status"`
	AssignedStaff *id.StaffID      `json:"assigned_staff,omitempty"`
	MemoNumber    string           `json:"memo_number,omitempty"`
	MemoDate      *time.Time       `json:"memo_date,omitempty"`
	ApprovedAt    *time.Time       `json:"approved_at,omitempty"`
	Remarks       string           `json:"remarks"`
	Version       int              `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Transition records one applied edge for audit and notification.
type Transition struct {
	ApplicationID id.ApplicationID
	From          Status
	To            Status
	Action        Action
	Actor         id.StaffID
	Note          string
	At            time.Time
}

func NewApplication(
	appID id.ApplicationID,
	ackCode string,
	applicantName string,
	deceasedName string,
	dateOfDeath time.Time,
	reportingDate time.Time,
	now time.Time,
) (*Application, error) {
	applicantName = strings.TrimSpace(applicantName)
	deceasedName = strings.TrimSpace(deceasedName)
	if ackCode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "acknowledgment code is required")
	}
	if applicantName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "applicant name is required")
	}
	if deceasedName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "deceased name is required")
	}
	if len(applicantName) > maxNameLength || len(deceasedName) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("names must be %d characters or less", maxNameLength))
	}
	if dateOfDeath.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "date of death is required")
	}
	if dateOfDeath.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "date of death cannot be in the future")
	}
	if reportingDate.IsZero() {
		reportingDate = now
	}
	if reportingDate.Before(dateOfDeath) {
		return nil, dErrors.New(dErrors.CodeValidation, "reporting date cannot precede date of death")
	}
	return &Application{
		ID:            appID,
		AckCode:       ackCode,
		ApplicantName: applicantName,
		DeceasedName:  deceasedName,
		DateOfDeath:   dateOfDeath,
		ReportingDate: reportingDate,
		Status:        StatusSubmitted,
		Remarks:       remarkLine(now, "", StatusSubmitted, "", "application submitted"),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Apply validates cmd against the state machine and, on success, mutates the
// application. Only the status, the fields the command carries, the remarks,
// the version and UpdatedAt change.
func (a *Application) Apply(cmd Command, facts Facts, p Policy, actor id.StaffID, now time.Time) (*Transition, error) {
	if facts.Now.IsZero() {
		facts.Now = now
	}
	to, err := Next(a.Status, cmd, facts, a.ApprovedAt, p)
	if err != nil {
		return nil, err
	}
	from := a.Status

	switch c := cmd.(type) {
	case Assign:
		staff := c.StaffID
		a.AssignedStaff = &staff
	case Approve:
		a.MemoNumber = strings.TrimSpace(c.MemoNumber)
		memoDate := *c.MemoDate
		a.MemoDate = &memoDate
		approvedAt := now
		a.ApprovedAt = &approvedAt
	}

	a.Status = to
	a.touch(now, from, to, actor, cmd.note())
	return &Transition{
		ApplicationID: a.ID,
		From:          from,
		To:            to,
		Action:        cmd.Action(),
		Actor:         actor,
		Note:          cmd.note(),
		At:            now,
	}, nil
}

// Reassign hands an application to a different staff member without a status change.
// Returns changed=false when staffID already handles the application.
func (a *Application) Reassign(staffID id.StaffID, actor id.StaffID, now time.Time) (changed bool, err error) {
	if staffID.IsEmpty() {
		return false, dErrors.New(dErrors.CodeValidation, "staff id is required")
	}
	if a.AssignedStaff != nil && *a.AssignedStaff == staffID {
		return false, nil
	}
	if !a.Status.AllowsReassignment() {
		return false, dErrors.New(dErrors.CodeAssignmentLocked,
			"staff assignment is locked once review has started").
			WithDetail("current_state", string(a.Status))
	}
	staff := staffID
	a.AssignedStaff = &staff
	a.touch(now, a.Status, a.Status, actor, "reassigned to "+string(staffID))
	return true, nil
}

// CanRequestCorrection checks that a decision has been recorded.
func (a *Application) CanRequestCorrection() error {
	if !a.Status.IsDecided() {
		return dErrors.New(dErrors.CodeNotReviewable,
			"corrections can only be requested after a decision has been recorded").
			WithDetail("current_state", string(a.Status))
	}
	return nil
}

// IsHandledBy reports whether staffID is the assigned staff member.
func (a *Application) IsHandledBy(staffID id.StaffID) bool {
	return a.AssignedStaff != nil && *a.AssignedStaff == staffID
}

func (a *Application) touch(now time.Time, from, to Status, actor id.StaffID, note string) {
	a.Remarks += remarkLine(now, from, to, actor, note)
	a.Version++
	a.UpdatedAt = now
}

func remarkLine(now time.Time, from, to Status, actor id.StaffID, note string) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(now.UTC().Format(time.RFC3339))
	b.WriteString("] ")
	if from != "" && from != to {
		b.WriteString(string(from))
		b.WriteString(" -> ")
	}
	b.WriteString(string(to))
	if actor != "" {
		b.WriteString(" by ")
		b.WriteString(string(actor))
	}
	if note != "" {
		b.WriteString(": ")
		b.WriteString(note)
	}
	b.WriteString("\n")
	return b.String()
}
