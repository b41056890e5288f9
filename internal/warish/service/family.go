package service

import (
	"context"
	"strconv"

	"warish/internal/warish/lineage"
	"warish/internal/warish/models"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	audit "warish/pkg/platform/audit"
)

// CaptureFamilyTree replaces the application's family with members. The batch
// is checked by the lineage builder before anything is written and is stored
// in one transaction.
func (s *Service) CaptureFamilyTree(ctx context.Context, appID id.ApplicationID, inputs []models.MemberInput) (*lineage.Tree, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now(ctx)
	members, err := models.ResolveMembers(appID, inputs, now)
	if err != nil {
		return nil, err
	}
	tree, err := lineage.Build(members, s.lineageOptions()...)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(appID)
	defer unlock()

	err = s.inTx(ctx, appID, func(ctx context.Context) error {
		app, err := s.lockApplication(ctx, appID)
		if err != nil {
			return err
		}
		if app.Status == models.StatusCertificateGenerated {
			return dErrors.New(dErrors.CodeConflict, "the family tree cannot change after the certificate is issued").
				WithDetail("current_state", string(app.Status))
		}
		return s.store.ReplaceFamily(ctx, appID, members)
	})
	if err != nil {
		err = translate(err, "family")
		s.logInternal(ctx, "family capture failed", err, "application_id", appID)
		return nil, err
	}

	s.track(ctx, audit.OpsEvent{
		Timestamp:     now,
		ApplicationID: appID,
		Subject:       strconv.Itoa(tree.Len()) + " members",
		Action:        audit.EventFamilyCaptured,
		ActorID:       string(actor),
	})
	return tree, nil
}

// LineageSelector picks the application whose family to load, either directly
// or through its certificate document. Exactly one field must be set.
type LineageSelector struct {
	ApplicationID         *id.ApplicationID
	CertificateDocumentID *id.DocumentID
}

// LineageTree loads the family tree an application captured.
func (s *Service) LineageTree(ctx context.Context, sel LineageSelector) (*lineage.Tree, error) {
	var appID id.ApplicationID
	switch {
	case sel.ApplicationID != nil && sel.CertificateDocumentID != nil:
		return nil, dErrors.New(dErrors.CodeValidation, "select by application or by certificate, not both")
	case sel.ApplicationID != nil:
		if _, err := s.loadApplication(ctx, *sel.ApplicationID); err != nil {
			return nil, err
		}
		appID = *sel.ApplicationID
	case sel.CertificateDocumentID != nil:
		doc, err := s.store.FindDocument(ctx, *sel.CertificateDocumentID)
		if err != nil {
			return nil, translate(err, "certificate")
		}
		if doc.Kind != models.KindCertificateOutput {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		appID = doc.ApplicationID
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "an application id or certificate document id is required")
	}

	members, err := s.store.ListFamily(ctx, appID)
	if err != nil {
		return nil, translate(err, "family")
	}
	return lineage.Build(members, s.lineageOptions()...)
}
