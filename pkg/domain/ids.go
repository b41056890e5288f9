package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "warish/pkg/domain-errors"
)

// Typed identifiers keep application, document, family member and correction
// ids from being passed where another kind is expected.
type (
	ApplicationID uuid.UUID
	DocumentID    uuid.UUID
	MemberID      uuid.UUID
	CorrectionID  uuid.UUID
)

// StaffID is the opaque identity supplied by the auth collaborator.
type StaffID string

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) String() string    { return uuid.UUID(id).String() }
func (id MemberID) String() string      { return uuid.UUID(id).String() }
func (id CorrectionID) String() string  { return uuid.UUID(id).String() }

func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MemberID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CorrectionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func (id StaffID) String() string { return string(id) }
func (id StaffID) IsEmpty() bool  { return strings.TrimSpace(string(id)) == "" }

func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewDocumentID() DocumentID       { return DocumentID(uuid.New()) }
func NewMemberID() MemberID           { return MemberID(uuid.New()) }
func NewCorrectionID() CorrectionID   { return CorrectionID(uuid.New()) }

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application id")
	return ApplicationID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document id")
	return DocumentID(u), err
}

func ParseMemberID(s string) (MemberID, error) {
	u, err := parseUUID(s, "member id")
	return MemberID(u), err
}

func ParseCorrectionID(s string) (CorrectionID, error) {
	u, err := parseUUID(s, "correction id")
	return CorrectionID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs at trust boundaries.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" is required")
	}
	if len(s) > 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" cannot be nil")
	}
	return u, nil
}

// Ids travel as their canonical string form in JSON.

func (id ApplicationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id MemberID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id CorrectionID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *ApplicationID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = ApplicationID(u)
	return err
}

func (id *DocumentID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = DocumentID(u)
	return err
}

func (id *MemberID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = MemberID(u)
	return err
}

func (id *CorrectionID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = CorrectionID(u)
	return err
}
