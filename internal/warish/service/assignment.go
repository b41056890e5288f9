package service

import (
	"context"

	"warish/internal/warish/models"
	"warish/internal/warish/ports"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	audit "warish/pkg/platform/audit"
)

// AssignStaff hands the application to staffID. A submitted application moves
// to assigned; an assigned one is reassigned in place. Once review has started
// only a repeat of the current assignment succeeds (as a no-op).
func (s *Service) AssignStaff(ctx context.Context, appID id.ApplicationID, staffID id.StaffID) (app *models.Application, changed bool, err error) {
	if staffID.IsEmpty() {
		return nil, false, dErrors.New(dErrors.CodeValidation, "staff id is required")
	}
	actor, err := requireStaff(ctx)
	if err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(appID)
	defer unlock()

	now := s.now(ctx)
	err = s.inTx(ctx, appID, func(ctx context.Context) error {
		current, err := s.lockApplication(ctx, appID)
		if err != nil {
			return err
		}
		expected := current.Version

		if current.Status == models.StatusSubmitted {
			tr, err := current.Apply(models.Assign{StaffID: staffID}, models.Facts{Now: now}, s.policy, actor, now)
			if err != nil {
				return err
			}
			if err := s.store.UpdateApplication(ctx, current, expected); err != nil {
				return translate(err, "application")
			}
			if err := s.emitTransition(ctx, tr, string(staffID)); err != nil {
				return err
			}
			if err := s.emitAssignment(ctx, current, audit.EventStaffAssigned, staffID, actor); err != nil {
				return err
			}
			app, changed = current, true
			return nil
		}

		moved, err := current.Reassign(staffID, actor, now)
		if err != nil {
			return err
		}
		if moved {
			if err := s.store.UpdateApplication(ctx, current, expected); err != nil {
				return translate(err, "application")
			}
			if err := s.emitAssignment(ctx, current, audit.EventStaffReassigned, staffID, actor); err != nil {
				return err
			}
		}
		app, changed = current, moved
		return nil
	})
	if err != nil {
		err = translate(err, "application")
		s.logInternal(ctx, "staff assignment failed", err, "application_id", appID)
		return nil, false, err
	}

	if changed {
		s.logger.InfoContext(ctx, "staff assigned",
			"application_id", appID,
			"staff_id", staffID,
			"actor", actor,
		)
		s.notify(ctx, ports.Notification{
			Recipient: "staff:" + string(staffID),
			Event:     ports.EventAssigned,
			Payload:   map[string]string{"application_id": app.ID.String(), "ack_code": app.AckCode},
		})
	}
	return app, changed, nil
}

func (s *Service) emitAssignment(ctx context.Context, app *models.Application, action audit.AuditEvent, staffID, actor id.StaffID) error {
	return s.emit(ctx, audit.ComplianceEvent{
		Timestamp:     app.UpdatedAt,
		ApplicationID: app.ID,
		Subject:       string(staffID),
		Action:        action,
		FromStatus:    string(app.Status),
		ToStatus:      string(app.Status),
		ActorID:       string(actor),
	})
}
