package service

import (
	"context"

	"github.com/gabriel-vasile/mimetype"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	audit "warish/pkg/platform/audit"
)

// allowedUploadTypes are the MIME types accepted as supporting proof.
var allowedUploadTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// UploadDocument stores a supporting-proof file and links it to the
// application. The payload is uploaded first; its metadata is written only
// after the upload succeeded and the object is deleted again if that write fails.
func (s *Service) UploadDocument(ctx context.Context, appID id.ApplicationID, fileName string, payload []byte) (*models.Document, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "document payload is empty")
	}
	mimeType, err := detectUploadType(payload)
	if err != nil {
		return nil, err
	}
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := ensureNotIssued(app); err != nil {
		return nil, err
	}

	obj, err := s.upload(ctx, payload, mimeType, "applications/"+appID.String())
	if err != nil {
		s.logger.WarnContext(ctx, "document upload failed",
			"application_id", appID,
			"error", err,
		)
		return nil, err
	}

	unlock := s.locks.RLock(appID)
	defer unlock()

	now := s.now(ctx)
	var doc *models.Document
	err = s.inTx(ctx, appID, func(ctx context.Context) error {
		current, err := s.loadApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := ensureNotIssued(current); err != nil {
			return err
		}
		doc, err = models.NewSupportingDocument(id.NewDocumentID(), appID, fileName, mimeType, obj, now)
		if err != nil {
			return err
		}
		return s.store.InsertDocument(ctx, doc)
	})
	if err != nil {
		s.compensate(ctx, obj)
		err = translate(err, "document")
		s.logInternal(ctx, "failed to record uploaded document", err, "application_id", appID)
		return nil, err
	}

	s.track(ctx, audit.OpsEvent{
		Timestamp:     now,
		ApplicationID: appID,
		Subject:       doc.ID.String(),
		Action:        audit.EventDocumentUploaded,
		ActorID:       string(actor),
	})
	return doc, nil
}

func detectUploadType(payload []byte) (string, error) {
	detected := mimetype.Detect(payload)
	for _, allowed := range allowedUploadTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, "unsupported document type: "+detected.String()).
		WithDetail("allowed", "application/pdf, image/jpeg, image/png")
}

func ensureNotIssued(app *models.Application) error {
	if app.Status == models.StatusCertificateGenerated {
		return dErrors.New(dErrors.CodeConflict, "the certificate has been issued; the application is closed").
			WithDetail("current_state", string(app.Status))
	}
	return nil
}

// VerifyDocument marks a document verified with the fixed manual remark.
func (s *Service) VerifyDocument(ctx context.Context, docID id.DocumentID) (*models.Document, bool, error) {
	return s.setVerification(ctx, docID, models.VerificationVerified)
}

// RejectDocument marks a document rejected with the fixed manual remark.
func (s *Service) RejectDocument(ctx context.Context, docID id.DocumentID) (*models.Document, bool, error) {
	return s.setVerification(ctx, docID, models.VerificationRejected)
}

// setVerification writes flag and remark together. Repeating the same call is
// a no-op that leaves updated_at untouched. It holds the application's shared
// lock: verifications run side by side but never during an issuance.
func (s *Service) setVerification(ctx context.Context, docID id.DocumentID, v models.Verification) (*models.Document, bool, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, false, err
	}
	doc, err := s.store.FindDocument(ctx, docID)
	if err != nil {
		return nil, false, translate(err, "document")
	}

	unlock := s.locks.RLock(doc.ApplicationID)
	defer unlock()

	now := s.now(ctx)
	var changed bool
	err = s.inTx(ctx, doc.ApplicationID, func(ctx context.Context) error {
		changed, err = s.store.SetVerification(ctx, docID, v, now)
		if err != nil {
			return translate(err, "document")
		}
		if !changed {
			return nil
		}
		action := audit.EventDocumentVerified
		if !v.Verified {
			action = audit.EventDocumentRejected
		}
		return s.emit(ctx, audit.ComplianceEvent{
			Timestamp:     now,
			ApplicationID: doc.ApplicationID,
			Subject:       docID.String(),
			Action:        action,
			Reason:        v.Remark,
			ActorID:       string(actor),
		})
	})
	s.metrics.ObserveVerification(v.Verified, changed && err == nil)
	if err != nil {
		err = translate(err, "document")
		s.logInternal(ctx, "document verification failed", err, "document_id", docID)
		return nil, false, err
	}

	updated, err := s.store.FindDocument(ctx, docID)
	if err != nil {
		return nil, false, translate(err, "document")
	}
	return updated, changed, nil
}
