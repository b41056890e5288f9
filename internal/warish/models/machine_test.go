package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

type MachineSuite struct {
	suite.Suite
	now time.Time
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
}

var allStatuses = []models.Status{
	models.StatusSubmitted,
	models.StatusAssigned,
	models.StatusUnderReview,
	models.StatusApproved,
	models.StatusRejected,
	models.StatusRenewed,
	models.StatusCertificateGenerated,
}

func (s *MachineSuite) TestEdgeSetIsExactlyTheTable() {
	allowed := map[models.Action][]models.Status{
		models.ActionAssign:              {models.StatusSubmitted},
		models.ActionStartReview:         {models.StatusAssigned},
		models.ActionApprove:             {models.StatusUnderReview},
		models.ActionReject:              {models.StatusUnderReview},
		models.ActionRenew:               {models.StatusApproved},
		models.ActionReopen:              {models.StatusRejected},
		models.ActionReturnForCorrection: {models.StatusApproved, models.StatusRejected, models.StatusRenewed},
		models.ActionGenerateCertificate: {models.StatusApproved, models.StatusRenewed},
	}
	for action, froms := range allowed {
		for _, st := range allStatuses {
			want := false
			for _, f := range froms {
				if f == st {
					want = true
				}
			}
			s.Equal(want, models.CanTransition(st, action), "%s from %s", action, st)
		}
	}
}

func (s *MachineSuite) TestCertificateGeneratedIsTerminal() {
	for _, a := range []models.Action{
		models.ActionAssign, models.ActionStartReview, models.ActionApprove, models.ActionReject,
		models.ActionRenew, models.ActionReopen, models.ActionReturnForCorrection, models.ActionGenerateCertificate,
	} {
		s.False(models.CanTransition(models.StatusCertificateGenerated, a), string(a))
	}
}

func (s *MachineSuite) TestNextGuards() {
	memoDate := s.now.Add(-24 * time.Hour)
	approvedAt := s.now.Add(-30 * 24 * time.Hour)

	s.Run("illegal edge reports current and attempted state", func() {
		_, err := models.Next(models.StatusSubmitted, models.Approve{MemoNumber: "M-1", MemoDate: &memoDate},
			models.Facts{Now: s.now}, nil, models.DefaultPolicy)
		s.Require().Error(err)
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeInvalidTransition, de.Code)
		s.Equal("submitted", de.Details["current_state"])
		s.Equal("approved", de.Details["attempted_state"])
	})

	s.Run("start review requires a document", func() {
		_, err := models.Next(models.StatusAssigned, models.StartReview{}, models.Facts{Now: s.now}, nil, models.DefaultPolicy)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		to, err := models.Next(models.StatusAssigned, models.StartReview{}, models.Facts{DocumentCount: 1, Now: s.now}, nil, models.DefaultPolicy)
		s.Require().NoError(err)
		s.Equal(models.StatusUnderReview, to)
	})

	s.Run("reject remark must meet the minimum length", func() {
		_, err := models.Next(models.StatusUnderReview, models.Reject{Remark: "too short"}, models.Facts{Now: s.now}, nil, models.DefaultPolicy)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		to, err := models.Next(models.StatusUnderReview, models.Reject{Remark: "documents do not match records"}, models.Facts{Now: s.now}, nil, models.DefaultPolicy)
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, to)
	})

	s.Run("renewal inside and outside the window", func() {
		to, err := models.Next(models.StatusApproved, models.Renew{}, models.Facts{Now: s.now}, &approvedAt, models.DefaultPolicy)
		s.Require().NoError(err)
		s.Equal(models.StatusRenewed, to)

		late := approvedAt.Add(366 * 24 * time.Hour)
		_, err = models.Next(models.StatusApproved, models.Renew{}, models.Facts{Now: late}, &approvedAt, models.DefaultPolicy)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("reopen requires an explicit override", func() {
		_, err := models.Next(models.StatusRejected, models.Reopen{Reason: "new evidence"}, models.Facts{Now: s.now}, nil, models.DefaultPolicy)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		to, err := models.Next(models.StatusRejected, models.Reopen{Override: true, Reason: "new evidence"}, models.Facts{Now: s.now}, nil, models.DefaultPolicy)
		s.Require().NoError(err)
		s.Equal(models.StatusUnderReview, to)
	})

	s.Run("second certificate conflicts", func() {
		_, err := models.Next(models.StatusApproved, models.GenerateCertificate{DocumentID: id.NewDocumentID()},
			models.Facts{HasCertificate: true, Now: s.now}, &approvedAt, models.DefaultPolicy)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *MachineSuite) TestApproveMemoIsAllOrNothing() {
	memoDate := s.now.Add(-time.Hour)
	cases := []struct {
		name    string
		cmd     models.Approve
		wantErr bool
	}{
		{"number without date", models.Approve{MemoNumber: "M-17"}, true},
		{"date without number", models.Approve{MemoDate: &memoDate}, true},
		{"neither", models.Approve{}, true},
		{"both", models.Approve{MemoNumber: "M-17", MemoDate: &memoDate}, false},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			app := s.appInStatus(models.StatusUnderReview)
			before := *app
			_, err := app.Apply(tc.cmd, models.Facts{}, models.DefaultPolicy, "staff-1", s.now)
			if tc.wantErr {
				s.True(dErrors.HasCode(err, dErrors.CodeValidation))
				s.Equal(before, *app, "rejected approval must not mutate the application")
				return
			}
			s.Require().NoError(err)
			s.Equal(models.StatusApproved, app.Status)
			s.Equal("M-17", app.MemoNumber)
			s.Require().NotNil(app.MemoDate)
			s.Require().NotNil(app.ApprovedAt)
			s.Equal(before.Version+1, app.Version)
		})
	}
}

func (s *MachineSuite) appInStatus(st models.Status) *models.Application {
	app, err := models.NewApplication(id.NewApplicationID(), "WAR-2025-ABCDEFGH", "Rahim Uddin", "Karim Uddin",
		s.now.Add(-90*24*time.Hour), time.Time{}, s.now)
	s.Require().NoError(err)
	app.Status = st
	return app
}
