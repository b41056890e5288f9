package models

import (
	"strings"
	"time"

	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

// LivingStatus records whether a family member is alive.
type LivingStatus string

const (
	LivingStatusAlive    LivingStatus = "alive"
	LivingStatusDeceased LivingStatus = "deceased"
)

func ParseLivingStatus(s string) (LivingStatus, error) {
	switch LivingStatus(s) {
	case LivingStatusAlive, LivingStatusDeceased:
		return LivingStatus(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown living status: "+s)
}

// FamilyMember is one node of an application's lineage tree.
// ParentID is nil for roots. Position keeps capture (insertion) order.
type FamilyMember struct {
	ID            id.MemberID      `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	ParentID      *id.MemberID     `json:"parent_id,omitempty"`
	Name          string           `json:"name"`
	Relation      string           `json:"relation"`
	LivingStatus  LivingStatus     `json:"living_status"`
	Position      int              `json:"position"`
	CreatedAt     time.Time        `json:"created_at"`
}

// MemberInput is one row of a bulk family capture. Ref and ParentRef are
// caller-chosen keys that only need to be unique within the batch.
type MemberInput struct {
	Ref          string
	ParentRef    string
	Name         string
	Relation     string
	LivingStatus LivingStatus
}

// ResolveMembers turns a capture batch into members with fresh ids, linking
// parents by ref. Structural checks (cycles, depth) are left to the lineage builder.
func ResolveMembers(appID id.ApplicationID, inputs []MemberInput, now time.Time) ([]*FamilyMember, error) {
	if len(inputs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one family member is required")
	}
	ids := make(map[string]id.MemberID, len(inputs))
	for _, in := range inputs {
		ref := strings.TrimSpace(in.Ref)
		if ref == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "every family member needs a ref")
		}
		if _, dup := ids[ref]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, "duplicate family member ref: "+ref)
		}
		ids[ref] = id.NewMemberID()
	}

	members := make([]*FamilyMember, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "family member name is required")
		}
		if len(name) > maxNameLength {
			return nil, dErrors.New(dErrors.CodeValidation, "family member name is too long")
		}
		status := in.LivingStatus
		if status == "" {
			status = LivingStatusAlive
		}
		if _, err := ParseLivingStatus(string(status)); err != nil {
			return nil, err
		}
		m := &FamilyMember{
			ID:            ids[strings.TrimSpace(in.Ref)],
			ApplicationID: appID,
			Name:          name,
			Relation:      strings.TrimSpace(in.Relation),
			LivingStatus:  status,
			Position:      i,
			CreatedAt:     now,
		}
		if parentRef := strings.TrimSpace(in.ParentRef); parentRef != "" {
			parentID, ok := ids[parentRef]
			if !ok {
				return nil, dErrors.New(dErrors.CodeCorruptHierarchy, "unknown parent ref: "+parentRef)
			}
			m.ParentID = &parentID
		}
		members = append(members, m)
	}
	return members, nil
}
