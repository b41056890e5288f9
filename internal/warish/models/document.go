package models

import (
	"strings"
	"time"

	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
)

// DocumentKind distinguishes staff uploads from the system-generated certificate.
type DocumentKind string

const (
	KindSupportingProof   DocumentKind = "supporting-proof"
	KindCertificateOutput DocumentKind = "certificate-output"
)

func ParseDocumentKind(s string) (DocumentKind, error) {
	switch DocumentKind(s) {
	case KindSupportingProof, KindCertificateOutput:
		return DocumentKind(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown document kind: "+s)
}

// Fixed audit texts written by the verification engine.
const (
	RemarkManuallyVerified = "Manually verified"
	RemarkManuallyRejected = "Manually rejected"
	RemarkSystemGenerated  = "System generated certificate"
)

// Verification is the (flag, remark) pair that is always written together.
type Verification struct {
	Verified bool
	Remark   string
}

var (
	VerificationVerified = Verification{Verified: true, Remark: RemarkManuallyVerified}
	VerificationRejected = Verification{Verified: false, Remark: RemarkManuallyRejected}
)

// Document is a file linked to exactly one application.
// Documents are never deleted; rejection is recorded through Verified=false.
type Document struct {
	ID            id.DocumentID    `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	Kind          DocumentKind     `json:"kind"`
	FileName      string           `json:"file_name"`
	MimeType      string           `json:"mime_type"`
	URL           string           `json:"url"`
	StorageID     string           `json:"storage_id"`
	Verified      bool             `json:"verified"`
	Remarks       string           `json:"remarks"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// StoredObject is what the storage collaborator returns for an upload.
type StoredObject struct {
	URL       string
	StorageID string
}

// NewSupportingDocument builds an unverified staff upload.
func NewSupportingDocument(docID id.DocumentID, appID id.ApplicationID, fileName, mimeType string, obj StoredObject, now time.Time) (*Document, error) {
	return newDocument(docID, appID, KindSupportingProof, fileName, mimeType, obj, Verification{}, now)
}

// NewCertificateDocument builds the certificate output. It is verified at
// creation because the system produced it.
func NewCertificateDocument(docID id.DocumentID, appID id.ApplicationID, fileName string, obj StoredObject, now time.Time) (*Document, error) {
	return newDocument(docID, appID, KindCertificateOutput, fileName, "application/pdf", obj,
		Verification{Verified: true, Remark: RemarkSystemGenerated}, now)
}

func newDocument(docID id.DocumentID, appID id.ApplicationID, kind DocumentKind, fileName, mimeType string, obj StoredObject, v Verification, now time.Time) (*Document, error) {
	fileName = strings.TrimSpace(fileName)
	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "application id is required")
	}
	if fileName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "file name is required")
	}
	if obj.URL == "" || obj.StorageID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document must reference a stored object")
	}
	return &Document{
		ID:            docID,
		ApplicationID: appID,
		Kind:          kind,
		FileName:      fileName,
		MimeType:      mimeType,
		URL:           obj.URL,
		StorageID:     obj.StorageID,
		Verified:      v.Verified,
		Remarks:       v.Remark,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// HasVerification reports whether v is already the persisted state.
func (d *Document) HasVerification(v Verification) bool {
	return d.Verified == v.Verified && d.Remarks == v.Remark
}

// ApplyVerification writes flag and remark together. Returns false when nothing changed.
func (d *Document) ApplyVerification(v Verification, now time.Time) bool {
	if d.HasVerification(v) {
		return false
	}
	d.Verified = v.Verified
	d.Remarks = v.Remark
	d.UpdatedAt = now
	return true
}

// CountCertificates returns the number of certificate-output documents in docs.
func CountCertificates(docs []*Document) int {
	n := 0
	for _, d := range docs {
		if d.Kind == KindCertificateOutput {
			n++
		}
	}
	return n
}
