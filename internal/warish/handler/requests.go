package handler

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"warish/internal/warish/models"
	"warish/internal/warish/service"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a Validation error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request")
	}
	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), strings.Split(fe.Namespace(), ".")[0]+".")
	var msg string
	switch fe.Tag() {
	case "required", "required_if":
		msg = field + " is required"
	case "max":
		msg = field + " must be at most " + fe.Param() + " characters"
	case "min":
		msg = field + " must contain at least " + fe.Param() + " entries"
	case "oneof":
		msg = field + " must be one of: " + fe.Param()
	case "datetime":
		msg = field + " must be a date (YYYY-MM-DD)"
	default:
		msg = field + " is invalid"
	}
	return dErrors.New(dErrors.CodeValidation, msg).WithDetail("field", field)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, s)
	return t
}

// SubmitRequest is the citizen's application form.
type SubmitRequest struct {
	ApplicantName string `json:"applicant_name" validate:"required,max=200"`
	DeceasedName  string `json:"deceased_name" validate:"required,max=200"`
	DateOfDeath   string `json:"date_of_death" validate:"required,datetime=2006-01-02"`
	ReportingDate string `json:"reporting_date" validate:"omitempty,datetime=2006-01-02"`
}

func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ApplicantName = strings.TrimSpace(r.ApplicantName)
	r.DeceasedName = strings.TrimSpace(r.DeceasedName)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *SubmitRequest) Input() service.SubmitInput {
	return service.SubmitInput{
		ApplicantName: r.ApplicantName,
		DeceasedName:  r.DeceasedName,
		DateOfDeath:   parseDate(r.DateOfDeath),
		ReportingDate: parseDate(r.ReportingDate),
	}
}

type AssignRequest struct {
	StaffID string `json:"staff_id" validate:"required,max=128"`
}

func (r *AssignRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.StaffID = strings.TrimSpace(r.StaffID)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// TransitionRequest names an action and carries the fields that action needs.
type TransitionRequest struct {
	Action     string `json:"action" validate:"required,oneof=assign start_review approve reject renew reopen"`
	StaffID    string `json:"staff_id" validate:"required_if=Action assign,max=128"`
	MemoNumber string `json:"memo_number" validate:"max=64"`
	MemoDate   string `json:"memo_date" validate:"omitempty,datetime=2006-01-02"`
	Remark     string `json:"remark" validate:"max=2000"`
	Note       string `json:"note" validate:"max=2000"`
	Override   bool   `json:"override"`
	Reason     string `json:"reason" validate:"max=2000"`

	command models.Command
}

func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Action = strings.TrimSpace(r.Action)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}

	switch models.Action(r.Action) {
	case models.ActionAssign:
		r.command = models.Assign{StaffID: id.StaffID(strings.TrimSpace(r.StaffID))}
	case models.ActionStartReview:
		r.command = models.StartReview{}
	case models.ActionApprove:
		var memoDate *time.Time
		if r.MemoDate != "" {
			d := parseDate(r.MemoDate)
			memoDate = &d
		}
		r.command = models.Approve{MemoNumber: r.MemoNumber, MemoDate: memoDate}
	case models.ActionReject:
		r.command = models.Reject{Remark: r.Remark}
	case models.ActionRenew:
		r.command = models.Renew{Note: r.Note}
	case models.ActionReopen:
		r.command = models.Reopen{Override: r.Override, Reason: r.Reason}
	}
	return nil
}

// Command returns the typed command built by Validate.
func (r *TransitionRequest) Command() models.Command {
	return r.command
}

type MemberRequest struct {
	Ref          string `json:"ref" validate:"required,max=64"`
	ParentRef    string `json:"parent_ref" validate:"omitempty,max=64"`
	Name         string `json:"name" validate:"required,max=200"`
	Relation     string `json:"relation" validate:"required,max=64"`
	LivingStatus string `json:"living_status" validate:"omitempty,oneof=alive deceased"`
}

// FamilyRequest is a full capture; it replaces any earlier one.
type FamilyRequest struct {
	Members []MemberRequest `json:"members" validate:"required,min=1,max=500,dive"`
}

func (r *FamilyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *FamilyRequest) Inputs() []models.MemberInput {
	inputs := make([]models.MemberInput, 0, len(r.Members))
	for _, m := range r.Members {
		inputs = append(inputs, models.MemberInput{
			Ref:          m.Ref,
			ParentRef:    m.ParentRef,
			Name:         m.Name,
			Relation:     m.Relation,
			LivingStatus: models.LivingStatus(m.LivingStatus),
		})
	}
	return inputs
}

type CorrectionRequest struct {
	Description string `json:"description" validate:"required,max=2000"`
}

func (r *CorrectionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Description = strings.TrimSpace(r.Description)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

type ResolveRequest struct {
	Note   string `json:"note" validate:"required,max=2000"`
	Reopen bool   `json:"reopen"`
}

func (r *ResolveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Note = strings.TrimSpace(r.Note)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *ResolveRequest) Resolution() models.Resolution {
	return models.Resolution{Note: r.Note, Reopen: r.Reopen}
}
