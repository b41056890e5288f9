package models

import (
	"fmt"
	"time"

	dErrors "warish/pkg/domain-errors"
)

type edge struct {
	from []Status
	to   Status
}

// transitions is the complete edge set. Anything not listed is illegal.
var transitions = map[Action]edge{
	ActionAssign:              {from: []Status{StatusSubmitted}, to: StatusAssigned},
	ActionStartReview:         {from: []Status{StatusAssigned}, to: StatusUnderReview},
	ActionApprove:             {from: []Status{StatusUnderReview}, to: StatusApproved},
	ActionReject:              {from: []Status{StatusUnderReview}, to: StatusRejected},
	ActionRenew:               {from: []Status{StatusApproved}, to: StatusRenewed},
	ActionReopen:              {from: []Status{StatusRejected}, to: StatusUnderReview},
	ActionReturnForCorrection: {from: []Status{StatusApproved, StatusRejected, StatusRenewed}, to: StatusUnderReview},
	ActionGenerateCertificate: {from: []Status{StatusApproved, StatusRenewed}, to: StatusCertificateGenerated},
}

// Facts are the observations about related records that some guards need.
// Callers gather them under the same lock that protects the write.
type Facts struct {
	DocumentCount  int
	HasCertificate bool
	Now            time.Time
}

// Target returns the status an action leads to, if the action is known.
func Target(a Action) (Status, bool) {
	e, ok := transitions[a]
	return e.to, ok
}

// CanTransition reports whether the edge exists, ignoring guards.
func CanTransition(from Status, a Action) bool {
	e, ok := transitions[a]
	if !ok {
		return false
	}
	for _, s := range e.from {
		if s == from {
			return true
		}
	}
	return false
}

// Next evaluates cmd against the transition table and its guards and returns
// the resulting status. It never mutates anything.
func Next(from Status, cmd Command, facts Facts, approvedAt *time.Time, p Policy) (Status, error) {
	if cmd == nil {
		return from, dErrors.New(dErrors.CodeValidation, "transition command is required")
	}
	to, known := Target(cmd.Action())
	if !known {
		return from, dErrors.New(dErrors.CodeValidation, "unknown action: "+string(cmd.Action()))
	}
	if !CanTransition(from, cmd.Action()) {
		return from, InvalidTransition(from, to, cmd.Action(), "")
	}
	if err := cmd.Validate(p); err != nil {
		return from, err
	}

	switch cmd.Action() {
	case ActionStartReview:
		if facts.DocumentCount < 1 {
			return from, InvalidTransition(from, to, cmd.Action(), "at least one document must be linked before review")
		}
	case ActionRenew:
		window := p.RenewalWindow
		if window <= 0 {
			window = DefaultPolicy.RenewalWindow
		}
		if approvedAt == nil || facts.Now.After(approvedAt.Add(window)) {
			return from, InvalidTransition(from, to, cmd.Action(), "renewal window has closed")
		}
	case ActionGenerateCertificate:
		if facts.HasCertificate {
			return from, dErrors.New(dErrors.CodeConflict, "a certificate has already been issued for this application")
		}
	}
	return to, nil
}

// InvalidTransition builds the guard-violation error carrying current and target state.
func InvalidTransition(from, to Status, a Action, reason string) *dErrors.Error {
	msg := fmt.Sprintf("cannot %s application in status %s (target %s)", a, from, to)
	if reason != "" {
		msg += ": " + reason
	}
	return dErrors.New(dErrors.CodeInvalidTransition, msg).
		WithDetail("current_state", string(from)).
		WithDetail("attempted_state", string(to)).
		WithDetail("action", string(a))
}
