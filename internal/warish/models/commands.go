package models

import (
	"strings"
	"time"

	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

// Action names a state-machine edge.
type Action string

const (
	ActionAssign              Action = "assign"
	ActionStartReview         Action = "start_review"
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionRenew               Action = "renew"
	ActionReopen              Action = "reopen"
	ActionReturnForCorrection Action = "return_for_correction"
	ActionGenerateCertificate Action = "generate_certificate"
)

// Command is a typed request to move an application along one edge.
// Each command carries exactly the fields its transition may write.
type Command interface {
	Action() Action
	// Validate checks the command's own fields against policy.
	Validate(p Policy) error
	// note is the text appended to the audit remarks.
	note() string
	isCommand()
}

// Policy holds the tunable guard parameters.
type Policy struct {
	MinRejectRemarkLength int
	RenewalWindow         time.Duration
}

// DefaultPolicy is used when configuration leaves values unset.
var DefaultPolicy = Policy{
	MinRejectRemarkLength: 10,
	RenewalWindow:         365 * 24 * time.Hour,
}

func (p Policy) minRemark() int {
	if p.MinRejectRemarkLength < 1 {
		return 1
	}
	return p.MinRejectRemarkLength
}

// Assign attaches the handling staff member.
type Assign struct {
	StaffID id.StaffID
}

func (Assign) Action() Action { return ActionAssign }
func (Assign) isCommand()     {}
func (c Assign) note() string { return "assigned to " + string(c.StaffID) }
func (c Assign) Validate(Policy) error {
	if c.StaffID.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "staff id is required")
	}
	return nil
}

// StartReview moves an assigned application under review.
type StartReview struct{}

func (StartReview) Action() Action        { return ActionStartReview }
func (StartReview) isCommand()            {}
func (StartReview) note() string          { return "review started" }
func (StartReview) Validate(Policy) error { return nil }

// Approve records the approval memo. MemoNumber and MemoDate are written together.
type Approve struct {
	MemoNumber string
	MemoDate   *time.Time
}

func (Approve) Action() Action { return ActionApprove }
func (Approve) isCommand()     {}
func (c Approve) note() string {
	return "approved under memo " + strings.TrimSpace(c.MemoNumber) + " dated " + c.MemoDate.Format("2006-01-02")
}
func (c Approve) Validate(Policy) error {
	hasNumber := strings.TrimSpace(c.MemoNumber) != ""
	hasDate := c.MemoDate != nil && !c.MemoDate.IsZero()
	switch {
	case hasNumber && !hasDate:
		return dErrors.New(dErrors.CodeValidation, "memo date is required when memo number is supplied")
	case !hasNumber && hasDate:
		return dErrors.New(dErrors.CodeValidation, "memo number is required when memo date is supplied")
	case !hasNumber && !hasDate:
		return dErrors.New(dErrors.CodeValidation, "memo number and memo date are required to approve")
	}
	return nil
}

// Reject records a rejection with a mandatory remark.
type Reject struct {
	Remark string
}

func (Reject) Action() Action { return ActionReject }
func (Reject) isCommand()     {}
func (c Reject) note() string { return "rejected: " + strings.TrimSpace(c.Remark) }
func (c Reject) Validate(p Policy) error {
	if len([]rune(strings.TrimSpace(c.Remark))) < p.minRemark() {
		return dErrors.New(dErrors.CodeValidation, "rejection remark is too short")
	}
	return nil
}

// Renew extends an approved application within the renewal window.
type Renew struct {
	Note string
}

func (Renew) Action() Action          { return ActionRenew }
func (Renew) isCommand()              {}
func (c Renew) note() string          { return joinNote("renewed", c.Note) }
func (c Renew) Validate(Policy) error { return nil }

// Reopen is the administrative override that returns a rejected application to review.
type Reopen struct {
	Override bool
	Reason   string
}

func (Reopen) Action() Action { return ActionReopen }
func (Reopen) isCommand()     {}
func (c Reopen) note() string { return "reopened by override: " + strings.TrimSpace(c.Reason) }
func (c Reopen) Validate(Policy) error {
	if !c.Override {
		return dErrors.New(dErrors.CodeValidation, "reopening a rejected application requires an explicit override")
	}
	if strings.TrimSpace(c.Reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "override reason is required")
	}
	return nil
}

// ReturnForCorrection sends a decided application back to review after a
// correction request is resolved with reopen.
type ReturnForCorrection struct {
	CorrectionID id.CorrectionID
}

func (ReturnForCorrection) Action() Action { return ActionReturnForCorrection }
func (ReturnForCorrection) isCommand()     {}
func (c ReturnForCorrection) note() string {
	return "returned for correction " + c.CorrectionID.String()
}
func (c ReturnForCorrection) Validate(Policy) error {
	if c.CorrectionID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "correction id is required")
	}
	return nil
}

// GenerateCertificate closes the lifecycle once the certificate document exists.
type GenerateCertificate struct {
	DocumentID id.DocumentID
}

func (GenerateCertificate) Action() Action { return ActionGenerateCertificate }
func (GenerateCertificate) isCommand()     {}
func (c GenerateCertificate) note() string {
	return "certificate issued as document " + c.DocumentID.String()
}
func (c GenerateCertificate) Validate(Policy) error {
	if c.DocumentID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "certificate document id is required")
	}
	return nil
}

func joinNote(prefix, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return prefix
	}
	return prefix + ": " + note
}
