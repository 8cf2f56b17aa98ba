package driven

import (
	"context"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
)

// Stage directory names under the dataset root.
const (
	StageParsed     = "parsed"
	StageEnriched   = "enriched"
	StageVectorized = "vectors"
)

// StageStore is the directory-of-files staging store shared by all stages:
// a newline-delimited index plus one JSON document per decision per stage.
// Writes are idempotent by existence check; stages skip existing documents
// unless forced.
type StageStore interface {
	// ReadIndex loads the discovery index. A missing index yields an
	// empty slice, not an error.
	ReadIndex(ctx context.Context) ([]domain.DecisionRecord, error)

	// WriteIndex persists the discovery index. In append mode existing
	// records are kept and the combined set is deduplicated.
	WriteIndex(ctx context.Context, records []domain.DecisionRecord, appendMode bool) error

	// ListDocs returns the document names (without extension) present in
	// a stage directory, sorted.
	ListDocs(stage string) ([]string, error)

	// HasDoc reports whether a stage document already exists.
	HasDoc(stage, name string) bool

	ReadParsed(name string) (*domain.ParsedDecision, error)
	WriteParsed(name string, doc *domain.ParsedDecision) error

	ReadEnriched(name string) (*domain.EnrichedDecision, error)
	WriteEnriched(name string, doc *domain.EnrichedDecision) error

	ReadVectorized(name string) (*domain.VectorizedDecision, error)
	WriteVectorized(name string, doc *domain.VectorizedDecision) error

	// HasPDF reports whether a cached PDF exists at the given filename.
	HasPDF(filename string) bool

	// ReadPDF returns the cached PDF bytes.
	ReadPDF(filename string) ([]byte, error)

	// WritePDF caches PDF bytes and returns the path relative to the
	// dataset root.
	WritePDF(filename string, data []byte) (string, error)

	// AbsPDFPath resolves a cached PDF filename to an absolute path, for
	// handing to external tools.
	AbsPDFPath(filename string) string
}

// DecisionWriter is the ingest target: a relational table keyed by decision
// reference, refreshed by upsert.
type DecisionWriter interface {
	// Upsert inserts or updates one decision row, refreshing every
	// non-key column and the updated_at timestamp.
	Upsert(ctx context.Context, doc *domain.VectorizedDecision) error

	// Close releases the connection.
	Close() error
}
