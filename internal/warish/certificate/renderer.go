// Package certificate renders the warish (inheritance) certificate as a PDF.
package certificate

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"warish/internal/warish/lineage"
	"warish/internal/warish/ports"
)

const (
	dateLayout = "02 Jan 2006"
	qrImage    = "ack-qr"
	qrSize     = 256
)

// PDFRenderer lays out the certificate on one A4 page (more when the family
// list is long). The QR code carries the verification URL or, without one,
// the bare acknowledgment code.
type PDFRenderer struct {
	authority string
	verifyURL string
}

type Option func(*PDFRenderer)

// WithAuthority sets the issuing office printed in the header.
func WithAuthority(name string) Option {
	return func(r *PDFRenderer) {
		r.authority = name
	}
}

// WithVerifyURL makes the QR code encode verifyURL + ack code.
func WithVerifyURL(url string) Option {
	return func(r *PDFRenderer) {
		r.verifyURL = url
	}
}

func NewPDFRenderer(opts ...Option) *PDFRenderer {
	r := &PDFRenderer{authority: "Local Government Office"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PDFRenderer) Render(ctx context.Context, data ports.CertificateData) ([]byte, error) {
	if data.Application == nil {
		return nil, fmt.Errorf("render certificate: application is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	app := data.Application

	qr, err := qrcode.Encode(r.verifyURL+app.AckCode, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render certificate qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Warish Certificate "+app.AckCode, true)
	pdf.SetCreator("warish", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.authority), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(0, 9, "Warish (Inheritance) Certificate", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.RegisterImageOptionsReader(qrImage, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pdf.ImageOptions(qrImage, 160, 12, 35, 35, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
	}
	row("Acknowledgment code", app.AckCode)
	row("Applicant", app.ApplicantName)
	row("Deceased", app.DeceasedName)
	row("Date of death", app.DateOfDeath.Format(dateLayout))
	if app.MemoNumber != "" && app.MemoDate != nil {
		row("Memo", app.MemoNumber+" dated "+app.MemoDate.Format(dateLayout))
	}
	row("Issued", data.IssuedAt.Format(dateLayout))
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Legal heirs", "B", 1, "L", false, 0, "")
	pdf.Ln(2)
	if len(data.Family) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.CellFormat(0, 7, "No family members recorded.", "", 1, "L", false, 0, "")
	} else {
		tree, err := lineage.Build(data.Family)
		if err != nil {
			return nil, fmt.Errorf("render certificate family: %w", err)
		}
		writeHeirs(pdf, tr, tree)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// writeHeirs prints the forest depth-first with one indent step per generation.
func writeHeirs(pdf *gofpdf.Fpdf, tr func(string) string, tree *lineage.Tree) {
	pdf.SetFont("Helvetica", "", 11)
	stack := make([]*lineage.Node, 0, tree.Len())
	for i := len(tree.Roots) - 1; i >= 0; i-- {
		stack = append(stack, tree.Roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		line := n.Member.Name
		if n.Member.Relation != "" {
			line += " (" + n.Member.Relation + ")"
		}
		if n.Member.LivingStatus != "" {
			line += " - " + string(n.Member.LivingStatus)
		}
		pdf.CellFormat(0, 6, strings.Repeat("    ", n.Depth-1)+tr(line), "", 1, "L", false, 0, "")

		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// FileName is the stored name for an application's certificate.
func FileName(ackCode string, issuedAt time.Time) string {
	return fmt.Sprintf("warish-certificate-%s-%s.pdf", ackCode, issuedAt.UTC().Format("20060102"))
}
