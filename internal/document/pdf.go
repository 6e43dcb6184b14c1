package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	documentTitle = "アカシックAI占い - 診断結果"
	fallbackFont  = "Helvetica"
)

// PDFRenderer renders diagnoses as A4 PDFs.
type PDFRenderer struct {
	fontFamily string
	fontPath   string
}

// PDFOption configures a PDFRenderer.
type PDFOption func(*PDFRenderer)

// WithFont registers a UTF-8 TTF font. Required for CJK result text; the
// built-in core fonts only cover latin-1.
func WithFont(family, path string) PDFOption {
	return func(r *PDFRenderer) {
		r.fontFamily = family
		r.fontPath = path
	}
}

// NewPDF constructs a PDF renderer.
func NewPDF(opts ...PDFOption) *PDFRenderer {
	r := &PDFRenderer{fontFamily: fallbackFont}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the diagnosis document. On any generation error no bytes
// are returned, so callers never serve a truncated artifact.
func (r *PDFRenderer) Render(_ context.Context, name, birthDate, result string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(25, 25, 25)
	if r.fontPath != "" {
		pdf.AddUTF8Font(r.fontFamily, "", r.fontPath)
	}
	pdf.AddPage()

	pdf.SetFont(r.fontFamily, "", 18)
	pdf.MultiCell(0, 10, documentTitle, "", "C", false)
	pdf.Ln(8)

	pdf.SetFont(r.fontFamily, "", 12)
	pdf.MultiCell(0, 7, fmt.Sprintf("お名前: %s", name), "", "L", false)
	pdf.MultiCell(0, 7, fmt.Sprintf("生年月日: %s", birthDate), "", "L", false)
	pdf.Ln(6)

	pdf.SetFont(r.fontFamily, "", 11)
	for _, line := range strings.Split(result, "\n") {
		if line == "" {
			pdf.Ln(5)
			continue
		}
		pdf.MultiCell(0, 6, line, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render diagnosis pdf: %w", err)
	}
	return buf.Bytes(), nil
}
