package certificate

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warish/internal/warish/models"
	"warish/internal/warish/ports"
	id "warish/pkg/domain"
)

func approvedApplication(t *testing.T, now time.Time) *models.Application {
	t.Helper()
	app, err := models.NewApplication(id.NewApplicationID(), "WAR-2026-ABCDEFGH",
		"Rahim Uddin", "Karim Uddin", now.AddDate(0, -2, 0), time.Time{}, now)
	require.NoError(t, err)
	memoDate := now.AddDate(0, 0, -1)
	app.Status = models.StatusApproved
	app.MemoNumber = "MEMO-42"
	app.MemoDate = &memoDate
	return app
}

func TestRenderProducesPDF(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	app := approvedApplication(t, now)
	family, err := models.ResolveMembers(app.ID, []models.MemberInput{
		{Ref: "wife", Name: "Amena Begum", Relation: "wife"},
		{Ref: "son", ParentRef: "wife", Name: "Jamal Uddin", Relation: "son"},
		{Ref: "gs", ParentRef: "son", Name: "Nabil", Relation: "grandson", LivingStatus: models.LivingStatusDeceased},
	}, now)
	require.NoError(t, err)

	out, err := NewPDFRenderer(WithAuthority("Ward 7 Office"), WithVerifyURL("https://warish.example.test/verify/")).
		Render(context.Background(), ports.CertificateData{Application: app, Family: family, IssuedAt: now})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, mimetype.Detect(out).Is("application/pdf"))
}

func TestRenderWithoutFamily(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out, err := NewPDFRenderer().Render(context.Background(),
		ports.CertificateData{Application: approvedApplication(t, now), IssuedAt: now})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRenderRejectsCorruptFamily(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	app := approvedApplication(t, now)
	self := id.NewMemberID()
	family := []*models.FamilyMember{{ID: self, ApplicationID: app.ID, ParentID: &self, Name: "Loop"}}

	_, err := NewPDFRenderer().Render(context.Background(),
		ports.CertificateData{Application: app, Family: family, IssuedAt: now})
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "warish-certificate-WAR-2026-ABCDEFGH-20260301.pdf",
		FileName("WAR-2026-ABCDEFGH", time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)))
}
