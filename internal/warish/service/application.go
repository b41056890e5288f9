package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"warish/internal/warish/lineage"
	"warish/internal/warish/models"
	"warish/internal/warish/ports"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	audit "warish/pkg/platform/audit"
	"warish/pkg/platform/sentinel"
	"warish/pkg/requestcontext"
)

// SubmitInput is a citizen's application.
type SubmitInput struct {
	ApplicantName string
	DeceasedName  string
	DateOfDeath   time.Time
	ReportingDate time.Time
}

// Details is the staff view of one application.
type Details struct {
	Application *models.Application         `json:"application"`
	Documents   []*models.Document          `json:"documents"`
	Corrections []*models.CorrectionRequest `json:"corrections"`
	Family      *lineage.Tree               `json:"family"`
}

// Submit records a new application with a fresh acknowledgment code. A code
// collision is retried with a new code a bounded number of times.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Application, error) {
	now := s.now(ctx)
	var lastErr error
	for range maxAckAttempts {
		ack, err := s.newAckCode(now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate acknowledgment code")
		}
		app, err := models.NewApplication(id.NewApplicationID(), ack,
			in.ApplicantName, in.DeceasedName, in.DateOfDeath, in.ReportingDate, now)
		if err != nil {
			return nil, err
		}

		err = s.inTx(ctx, app.ID, func(ctx context.Context) error {
			return s.store.CreateApplication(ctx, app)
		})
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			lastErr = err
			continue
		}
		if err != nil {
			err = translate(err, "application")
			s.logInternal(ctx, "failed to submit application", err)
			return nil, err
		}

		s.track(ctx, audit.OpsEvent{
			Timestamp:     now,
			ApplicationID: app.ID,
			Action:        audit.EventApplicationSubmitted,
			Subject:       app.AckCode,
			ActorID:       string(requestcontext.StaffID(ctx)),
		})
		s.notify(ctx, ports.Notification{
			Recipient: officeRecipient,
			Event:     ports.EventSubmitted,
			Payload:   map[string]string{"application_id": app.ID.String(), "ack_code": app.AckCode},
		})
		return app, nil
	}
	return nil, dErrors.Wrap(lastErr, dErrors.CodeInternal, "could not allocate a unique acknowledgment code")
}

func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	return s.loadApplication(ctx, appID)
}

// GetByAck is the citizen status lookup.
func (s *Service) GetByAck(ctx context.Context, ackCode string) (*models.Application, error) {
	if ackCode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "acknowledgment code is required")
	}
	app, err := s.store.FindApplicationByAck(ctx, ackCode)
	if err != nil {
		return nil, translate(err, "application")
	}
	return app, nil
}

// Details loads the application with its documents, corrections and family
// tree in parallel.
func (s *Service) Details(ctx context.Context, appID id.ApplicationID) (*Details, error) {
	g, gctx := errgroup.WithContext(ctx)
	var (
		details Details
		family  []*models.FamilyMember
	)
	g.Go(func() error {
		app, err := s.loadApplication(gctx, appID)
		details.Application = app
		return err
	})
	g.Go(func() error {
		docs, err := s.store.ListDocuments(gctx, appID)
		details.Documents = docs
		return translate(err, "documents")
	})
	g.Go(func() error {
		corrections, err := s.store.ListCorrections(gctx, appID)
		details.Corrections = corrections
		return translate(err, "corrections")
	})
	g.Go(func() error {
		members, err := s.store.ListFamily(gctx, appID)
		family = members
		return translate(err, "family")
	})
	if err := g.Wait(); err != nil {
		s.logInternal(ctx, "failed to load application details", err, "application_id", appID)
		return nil, err
	}

	tree, err := lineage.Build(family, s.lineageOptions()...)
	if err != nil {
		return nil, err
	}
	details.Family = tree
	return &details, nil
}

// Transition applies a review command. Certificate generation and returns for
// correction have their own entry points and are refused here.
func (s *Service) Transition(ctx context.Context, appID id.ApplicationID, cmd models.Command) (app *models.Application, err error) {
	if cmd == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "transition command is required")
	}
	ctx, span := s.startSpan(ctx, "warish.Transition", appID)
	defer func() {
		s.metrics.ObserveTransition(string(cmd.Action()), outcome(err))
		endSpan(span, err)
	}()

	switch cmd.(type) {
	case models.GenerateCertificate:
		return nil, dErrors.New(dErrors.CodeValidation, "certificates are issued through certificate issuance")
	case models.ReturnForCorrection:
		return nil, dErrors.New(dErrors.CodeValidation, "applications return for correction only by resolving a correction request")
	}
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(appID)
	defer unlock()

	now := s.now(ctx)
	var tr *models.Transition
	err = s.inTx(ctx, appID, func(ctx context.Context) error {
		current, err := s.lockApplication(ctx, appID)
		if err != nil {
			return err
		}
		facts, err := s.gatherFacts(ctx, appID, now)
		if err != nil {
			return err
		}
		expected := current.Version
		tr, err = current.Apply(cmd, facts, s.policy, actor, now)
		if err != nil {
			return err
		}
		if err := s.store.UpdateApplication(ctx, current, expected); err != nil {
			return translate(err, "application")
		}
		if err := s.emitTransition(ctx, tr, ""); err != nil {
			return err
		}
		app = current
		return nil
	})
	if err != nil {
		err = translate(err, "application")
		s.logInternal(ctx, "transition failed", err, "application_id", appID, "action", cmd.Action())
		return nil, err
	}

	s.logger.InfoContext(ctx, "application transitioned",
		"application_id", appID,
		"from", tr.From,
		"to", tr.To,
		"actor", actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	if tr.To.IsDecided() {
		s.notify(ctx, ports.Notification{
			Recipient: applicantRecipient(app),
			Event:     ports.EventDecided,
			Payload:   map[string]string{"ack_code": app.AckCode, "status": string(app.Status)},
		})
	}
	return app, nil
}

// gatherFacts observes the related records the guards need.
func (s *Service) gatherFacts(ctx context.Context, appID id.ApplicationID, now time.Time) (models.Facts, error) {
	docs, err := s.store.ListDocuments(ctx, appID)
	if err != nil {
		return models.Facts{}, translate(err, "documents")
	}
	return models.Facts{
		DocumentCount:  len(docs),
		HasCertificate: models.CountCertificates(docs) > 0,
		Now:            now,
	}, nil
}

// AuditTrail lists the recorded audit events of an application.
func (s *Service) AuditTrail(ctx context.Context, appID id.ApplicationID) ([]audit.Event, error) {
	if s.auditLog == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "audit trail is not available")
	}
	if _, err := s.loadApplication(ctx, appID); err != nil {
		return nil, err
	}
	events, err := s.auditLog.ListByApplication(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return events, nil
}
