// Package pdftext extracts plain text from PDF files by shelling out to
// the poppler pdftotext tool. The external command is abstracted behind
// driven.CommandRunner so the adapter is testable without poppler.
package pdftext

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.PDFExtractor = (*Extractor)(nil)

// pdftotextBin is the extraction tool looked up on PATH.
const pdftotextBin = "pdftotext"

// Extractor extracts text from PDFs using pdftotext.
type Extractor struct {
	runner driven.CommandRunner
}

// execRunner runs real commands.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// New creates an extractor backed by the real pdftotext binary.
func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner creates an extractor with a custom command runner.
func NewWithRunner(runner driven.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// ExtractText returns the text content of the PDF at path.
// "-layout" preserves the reading order of multi-column pages; "-" sends
// output to stdout.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	out, err := e.runner.Run(ctx, pdftotextBin, "-layout", path, "-")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrPDFExtraction, path, err)
	}

	text := string(out)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s: no text extracted", domain.ErrPDFExtraction, path)
	}
	return text, nil
}
