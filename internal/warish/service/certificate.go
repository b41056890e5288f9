package service

import (
	"context"
	"errors"

	"warish/internal/warish/certificate"
	"warish/internal/warish/models"
	"warish/internal/warish/ports"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	audit "warish/pkg/platform/audit"
	"warish/pkg/platform/sentinel"
)

// CanIssueCertificate reports whether the application is decided favourably
// and has no certificate yet.
func (s *Service) CanIssueCertificate(ctx context.Context, appID id.ApplicationID) (bool, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return false, err
	}
	if !app.Status.IsCertifiable() {
		return false, nil
	}
	_, err = s.store.FindCertificate(ctx, appID)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return true, nil
	}
	return false, translate(err, "certificate")
}

// IssueCertificate renders, stores and records the application's certificate.
// Exactly one of any number of concurrent callers succeeds; the others get a
// Conflict and leave no stored object behind.
func (s *Service) IssueCertificate(ctx context.Context, appID id.ApplicationID) (doc *models.Document, err error) {
	ctx, span := s.startSpan(ctx, "warish.IssueCertificate", appID)
	start := s.clock()
	defer func() {
		s.metrics.ObserveTransition(string(models.ActionGenerateCertificate), outcome(err))
		if err == nil {
			s.metrics.ObserveIssuance(s.clock().Sub(start))
		} else if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncIssuanceConflict()
		}
		endSpan(span, err)
	}()

	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(appID)
	defer unlock()

	release, err := s.acquireIssuanceLease(ctx, appID)
	if err != nil {
		return nil, err
	}
	defer release()

	app, err := s.checkIssuable(ctx, appID)
	if err != nil {
		return nil, err
	}
	family, err := s.store.ListFamily(ctx, appID)
	if err != nil {
		return nil, translate(err, "family")
	}

	now := s.now(ctx)
	pdf, err := s.renderer.Render(ctx, ports.CertificateData{Application: app, Family: family, IssuedAt: now})
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to render certificate")
		s.logInternal(ctx, "certificate rendering failed", err, "application_id", appID)
		return nil, err
	}
	obj, err := s.upload(ctx, pdf, "application/pdf", "certificates")
	if err != nil {
		s.logger.WarnContext(ctx, "certificate upload failed",
			"application_id", appID,
			"error", err,
		)
		return nil, err
	}

	docID := id.NewDocumentID()
	var tr *models.Transition
	err = s.inTx(ctx, appID, func(ctx context.Context) error {
		current, err := s.lockApplication(ctx, appID)
		if err != nil {
			return err
		}
		if current.Status == models.StatusCertificateGenerated {
			return dErrors.New(dErrors.CodeConflict, "a certificate has already been issued for this application")
		}
		facts, err := s.gatherFacts(ctx, appID, now)
		if err != nil {
			return err
		}
		expected := current.Version
		tr, err = current.Apply(models.GenerateCertificate{DocumentID: docID}, facts, s.policy, actor, now)
		if err != nil {
			return err
		}
		if err := s.store.UpdateApplication(ctx, current, expected); err != nil {
			return translate(err, "application")
		}
		doc, err = models.NewCertificateDocument(docID, appID, certificate.FileName(current.AckCode, now), obj, now)
		if err != nil {
			return err
		}
		if err := s.store.InsertDocument(ctx, doc); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "a certificate has already been issued for this application")
			}
			return translate(err, "certificate")
		}
		if err := s.emitTransition(ctx, tr, docID.String()); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			Timestamp:     now,
			ApplicationID: appID,
			Subject:       docID.String(),
			Action:        audit.EventCertificateIssued,
			ActorID:       string(actor),
		}); err != nil {
			return err
		}
		app = current
		return nil
	})
	if err != nil {
		s.compensate(ctx, obj)
		err = translate(err, "application")
		s.logInternal(ctx, "certificate issuance failed", err, "application_id", appID)
		return nil, err
	}

	s.logger.InfoContext(ctx, "certificate issued",
		"application_id", appID,
		"document_id", docID,
		"from", tr.From,
		"actor", actor,
	)
	s.notify(ctx, ports.Notification{
		Recipient: applicantRecipient(app),
		Event:     ports.EventCertificateIssued,
		Payload: map[string]string{
			"ack_code":    app.AckCode,
			"document_id": docID.String(),
			"url":         doc.URL,
		},
	})
	return doc, nil
}

// checkIssuable fails fast before rendering and uploading. The transaction
// repeats the same guards against the locked row.
func (s *Service) checkIssuable(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.FindCertificate(ctx, appID)
	switch {
	case err == nil:
		return nil, dErrors.New(dErrors.CodeConflict, "a certificate has already been issued for this application").
			WithDetail("document_id", existing.ID.String())
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, translate(err, "certificate")
	}
	if !app.Status.IsCertifiable() {
		return nil, models.InvalidTransition(app.Status, models.StatusCertificateGenerated, models.ActionGenerateCertificate,
			"only approved or renewed applications can be certified")
	}
	return app, nil
}

// acquireIssuanceLease excludes issuance on other instances. Without a
// configured lease it is a no-op.
func (s *Service) acquireIssuanceLease(ctx context.Context, appID id.ApplicationID) (func(), error) {
	if s.lease == nil {
		return func() {}, nil
	}
	release, ok, err := s.lease.Acquire(ctx, "certificate:"+appID.String(), s.leaseTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire issuance lease")
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeConflict, "certificate issuance is already in progress")
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release issuance lease",
				"application_id", appID,
				"error", err,
			)
		}
	}, nil
}
