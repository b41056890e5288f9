package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warish/internal/warish/models"
	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

type ApplicationSuite struct {
	suite.Suite
	now   time.Time
	death time.Time
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}

func (s *ApplicationSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.death = s.now.Add(-60 * 24 * time.Hour)
}

func (s *ApplicationSuite) newApp() *models.Application {
	app, err := models.NewApplication(id.NewApplicationID(), "WAR-2025-ABCDEFGH", "Rahim Uddin", "Karim Uddin", s.death, time.Time{}, s.now)
	s.Require().NoError(err)
	return app
}

func (s *ApplicationSuite) TestConstructionInvariants() {
	s.Run("starts submitted with version 1", func() {
		app := s.newApp()
		s.Equal(models.StatusSubmitted, app.Status)
		s.Equal(1, app.Version)
		s.Equal(s.now, app.ReportingDate)
		s.Contains(app.Remarks, "submitted")
	})

	s.Run("rejects empty applicant", func() {
		_, err := models.NewApplication(id.NewApplicationID(), "WAR-1", " ", "Karim", s.death, time.Time{}, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects future date of death", func() {
		_, err := models.NewApplication(id.NewApplicationID(), "WAR-1", "Rahim", "Karim", s.now.Add(time.Hour), time.Time{}, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects reporting before death", func() {
		_, err := models.NewApplication(id.NewApplicationID(), "WAR-1", "Rahim", "Karim", s.death, s.death.Add(-time.Hour), s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ApplicationSuite) TestApplyRecordsRemarksAndStaff() {
	app := s.newApp()
	tr, err := app.Apply(models.Assign{StaffID: "staff-7"}, models.Facts{}, models.DefaultPolicy, "supervisor", s.now)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, tr.From)
	s.Equal(models.StatusAssigned, tr.To)
	s.True(app.IsHandledBy("staff-7"))
	s.Equal(2, app.Version)

	lines := strings.Split(strings.TrimSpace(app.Remarks), "\n")
	s.Len(lines, 2)
	s.Contains(lines[1], "submitted -> assigned by supervisor")
}

func (s *ApplicationSuite) TestReassign() {
	s.Run("same staff is a no-op", func() {
		app := s.newApp()
		_, err := app.Apply(models.Assign{StaffID: "staff-7"}, models.Facts{}, models.DefaultPolicy, "supervisor", s.now)
		s.Require().NoError(err)
		version := app.Version

		changed, err := app.Reassign("staff-7", "supervisor", s.now)
		s.Require().NoError(err)
		s.False(changed)
		s.Equal(version, app.Version)
	})

	s.Run("different staff is allowed before review", func() {
		app := s.newApp()
		_, err := app.Apply(models.Assign{StaffID: "staff-7"}, models.Facts{}, models.DefaultPolicy, "supervisor", s.now)
		s.Require().NoError(err)

		changed, err := app.Reassign("staff-8", "supervisor", s.now)
		s.Require().NoError(err)
		s.True(changed)
		s.True(app.IsHandledBy("staff-8"))
		s.Equal(models.StatusAssigned, app.Status)
	})

	s.Run("different staff is locked under review", func() {
		app := s.newApp()
		_, err := app.Apply(models.Assign{StaffID: "staff-7"}, models.Facts{}, models.DefaultPolicy, "supervisor", s.now)
		s.Require().NoError(err)
		_, err = app.Apply(models.StartReview{}, models.Facts{DocumentCount: 1}, models.DefaultPolicy, "staff-7", s.now)
		s.Require().NoError(err)

		_, err = app.Reassign("staff-8", "supervisor", s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeAssignmentLocked))
		s.True(app.IsHandledBy("staff-7"))
	})
}

func (s *ApplicationSuite) TestCanRequestCorrection() {
	app := s.newApp()
	s.True(dErrors.HasCode(app.CanRequestCorrection(), dErrors.CodeNotReviewable))

	for _, st := range []models.Status{models.StatusApproved, models.StatusRejected, models.StatusRenewed} {
		app.Status = st
		s.NoError(app.CanRequestCorrection(), string(st))
	}
	app.Status = models.StatusCertificateGenerated
	s.Error(app.CanRequestCorrection())
}

func (s *ApplicationSuite) TestDocumentVerificationIsIdempotent() {
	doc, err := models.NewSupportingDocument(id.NewDocumentID(), id.NewApplicationID(), "deed.pdf", "application/pdf",
		models.StoredObject{URL: "file:///deed.pdf", StorageID: "abc"}, s.now)
	s.Require().NoError(err)
	s.False(doc.Verified)

	s.True(doc.ApplyVerification(models.VerificationVerified, s.now))
	s.False(doc.ApplyVerification(models.VerificationVerified, s.now.Add(time.Minute)))
	s.Equal(models.RemarkManuallyVerified, doc.Remarks)
	s.Equal(s.now, doc.UpdatedAt)

	s.True(doc.ApplyVerification(models.VerificationRejected, s.now))
	s.False(doc.Verified)
	s.Equal(models.RemarkManuallyRejected, doc.Remarks)
}

func (s *ApplicationSuite) TestCorrectionResolveOnce() {
	req, err := models.NewCorrectionRequest(id.NewCorrectionID(), id.NewApplicationID(), "father's name misspelled", s.now)
	s.Require().NoError(err)
	s.Require().NoError(req.Resolve(models.Resolution{Note: "fixed", Reopen: true}, "staff-1", s.now))
	s.Equal(models.CorrectionResolved, req.Status)
	s.True(req.Reopened)

	err = req.Resolve(models.Resolution{Note: "again"}, "staff-1", s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ApplicationSuite) TestResolveMembers() {
	appID := id.NewApplicationID()
	members, err := models.ResolveMembers(appID, []models.MemberInput{
		{Ref: "root", Name: "Karim Uddin", Relation: "deceased", LivingStatus: models.LivingStatusDeceased},
		{Ref: "son", ParentRef: "root", Name: "Rahim Uddin", Relation: "son"},
	}, s.now)
	s.Require().NoError(err)
	s.Require().Len(members, 2)
	s.Nil(members[0].ParentID)
	s.Require().NotNil(members[1].ParentID)
	s.Equal(members[0].ID, *members[1].ParentID)
	s.Equal(models.LivingStatusAlive, members[1].LivingStatus)
	s.Equal(1, members[1].Position)

	_, err = models.ResolveMembers(appID, []models.MemberInput{{Ref: "a", ParentRef: "ghost", Name: "X"}}, s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeCorruptHierarchy))

	_, err = models.ResolveMembers(appID, []models.MemberInput{{Ref: "a", Name: "X"}, {Ref: "a", Name: "Y"}}, s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAckCodeFormat(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	code, err := models.NewAckCode(now)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(code, "WAR-2025-") || len(code) != len("WAR-2025-")+8 {
		t.Fatalf("unexpected ack code %q", code)
	}
}
