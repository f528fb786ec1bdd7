package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads the plain text layer of a PDF.
// Scanned PDFs without a text layer produce empty content.
type PDFExtractor struct{}

// NewPDF creates a PDF extractor.
func NewPDF() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns the concatenated text of all pages.
func (e *PDFExtractor) Extract(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrInvalidFile, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrInvalidFile, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf buffer: %w", err)
	}
	return buf.String(), nil
}
