package service

import (
	"context"

	"warish/internal/warish/models"
	"warish/internal/warish/ports"
	id "warish/pkg/domain"
	audit "warish/pkg/platform/audit"
	"warish/pkg/requestcontext"
)

// CreateCorrectionRequest opens a correction request on a decided application.
func (s *Service) CreateCorrectionRequest(ctx context.Context, appID id.ApplicationID, description string) (*models.CorrectionRequest, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := app.CanRequestCorrection(); err != nil {
		return nil, err
	}
	now := s.now(ctx)
	req, err := models.NewCorrectionRequest(id.NewCorrectionID(), appID, description, now)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, appID, func(ctx context.Context) error {
		return s.store.CreateCorrection(ctx, req)
	})
	if err != nil {
		err = translate(err, "correction request")
		s.logInternal(ctx, "failed to create correction request", err, "application_id", appID)
		return nil, err
	}

	s.track(ctx, audit.OpsEvent{
		Timestamp:     now,
		ApplicationID: appID,
		Subject:       req.ID.String(),
		Action:        audit.EventCorrectionRequested,
		ActorID:       string(requestcontext.StaffID(ctx)),
	})
	s.notify(ctx, ports.Notification{
		Recipient: staffRecipient(app),
		Event:     ports.EventCorrectionOpened,
		Payload: map[string]string{
			"application_id": appID.String(),
			"correction_id":  req.ID.String(),
		},
	})
	return req, nil
}

// ResolveCorrectionRequest closes a pending request. With Reopen set the
// application returns to review in the same transaction.
func (s *Service) ResolveCorrectionRequest(ctx context.Context, reqID id.CorrectionID, r models.Resolution) (*models.CorrectionRequest, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.FindCorrection(ctx, reqID)
	if err != nil {
		return nil, translate(err, "correction request")
	}
	appID := existing.ApplicationID

	unlock := s.locks.Lock(appID)
	defer unlock()

	now := s.now(ctx)
	var (
		req *models.CorrectionRequest
		tr  *models.Transition
	)
	err = s.inTx(ctx, appID, func(ctx context.Context) error {
		current, err := s.store.FindCorrectionForUpdate(ctx, reqID)
		if err != nil {
			return translate(err, "correction request")
		}
		if err := current.Resolve(r, actor, now); err != nil {
			return err
		}
		if err := s.store.ResolveCorrection(ctx, current); err != nil {
			return translate(err, "correction request")
		}

		if r.Reopen {
			app, err := s.lockApplication(ctx, appID)
			if err != nil {
				return err
			}
			expected := app.Version
			tr, err = app.Apply(models.ReturnForCorrection{CorrectionID: reqID}, models.Facts{Now: now}, s.policy, actor, now)
			if err != nil {
				return err
			}
			if err := s.store.UpdateApplication(ctx, app, expected); err != nil {
				return translate(err, "application")
			}
			if err := s.emitTransition(ctx, tr, reqID.String()); err != nil {
				return err
			}
		}

		if err := s.emit(ctx, audit.ComplianceEvent{
			Timestamp:     now,
			ApplicationID: appID,
			Subject:       reqID.String(),
			Action:        audit.EventCorrectionResolved,
			Reason:        current.Resolution,
			ActorID:       string(actor),
		}); err != nil {
			return err
		}
		req = current
		return nil
	})
	if err != nil {
		err = translate(err, "correction request")
		s.logInternal(ctx, "correction resolution failed", err, "correction_id", reqID)
		return nil, err
	}

	if tr != nil {
		s.logger.InfoContext(ctx, "application returned for correction",
			"application_id", appID,
			"correction_id", reqID,
			"from", tr.From,
			"actor", actor,
		)
	}
	return req, nil
}
