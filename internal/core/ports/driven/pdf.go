package driven

import "context"

// CommandRunner executes an external command and returns its combined
// output. It exists so adapters that shell out can be tested with a fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// PDFExtractor extracts plain text from a PDF file on disk.
type PDFExtractor interface {
	// ExtractText returns the text content of the PDF at path. A corrupt
	// file or missing extraction tool yields an error; callers treat it
	// as a per-record failure.
	ExtractText(ctx context.Context, path string) (string, error)
}
