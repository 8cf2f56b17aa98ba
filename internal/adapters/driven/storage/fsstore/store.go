// Package fsstore implements the staging store as a directory tree:
// a newline-delimited JSON index plus one pretty-printed JSON document per
// decision per stage, and a pdfs/ directory of cached binaries.
//
// Layout under the dataset root:
//
//	decisions-index.jsonl
//	pdfs/<slug>-<hash8>.pdf
//	parsed/<slug>.json
//	enriched/<slug>.json
//	vectors/<slug>.json
package fsstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.StageStore = (*Store)(nil)

// IndexFileName is the discovery index under the dataset root.
const IndexFileName = "decisions-index.jsonl"

// pdfDirName is the cached-binaries directory under the dataset root.
const pdfDirName = "pdfs"

// Store is a file-backed staging store rooted at a dataset directory.
type Store struct {
	root   string
	index  string
	pdfDir string
}

// NewStore creates a store rooted at dataDir, creating the stage
// directories if needed. indexPath overrides the default index location
// when non-empty.
func NewStore(dataDir, indexPath, pdfDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("fsstore: data directory is required")
	}

	if indexPath == "" {
		indexPath = filepath.Join(dataDir, IndexFileName)
	}
	if pdfDir == "" {
		pdfDir = filepath.Join(dataDir, pdfDirName)
	}

	for _, dir := range []string{dataDir, pdfDir,
		filepath.Join(dataDir, driven.StageParsed),
		filepath.Join(dataDir, driven.StageEnriched),
		filepath.Join(dataDir, driven.StageVectorized),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return &Store{root: dataDir, index: indexPath, pdfDir: pdfDir}, nil
}

// Root returns the dataset root directory.
func (s *Store) Root() string {
	return s.root
}

// ReadIndex loads the discovery index. A missing index yields an empty
// slice. Malformed lines are skipped with a warning rather than failing
// the whole read.
func (s *Store) ReadIndex(_ context.Context) ([]domain.DecisionRecord, error) {
	f, err := os.Open(s.index)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	var records []domain.DecisionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec domain.DecisionRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			logger.Warn("index line %d unreadable, skipping: %v", line, err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return records, nil
}

// WriteIndex persists the discovery index, one JSON record per line. In
// append mode the existing records are loaded first and the combined set
// is deduplicated before writing.
func (s *Store) WriteIndex(ctx context.Context, records []domain.DecisionRecord, appendMode bool) error {
	if appendMode {
		existing, err := s.ReadIndex(ctx)
		if err != nil {
			return err
		}
		records = domain.DedupeRecords(append(existing, records...))
	}

	f, err := os.Create(s.index)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("write index record: %w", err)
		}
	}
	return nil
}

// ListDocs returns the document names present in a stage directory, sorted.
func (s *Store) ListDocs(stage string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", stage, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// HasDoc reports whether a stage document already exists.
func (s *Store) HasDoc(stage, name string) bool {
	_, err := os.Stat(s.docPath(stage, name))
	return err == nil
}

// ReadParsed loads a parse-stage document.
func (s *Store) ReadParsed(name string) (*domain.ParsedDecision, error) {
	var doc domain.ParsedDecision
	if err := s.readDoc(driven.StageParsed, name, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteParsed persists a parse-stage document.
func (s *Store) WriteParsed(name string, doc *domain.ParsedDecision) error {
	return s.writeDoc(driven.StageParsed, name, doc)
}

// ReadEnriched loads an enrich-stage document.
func (s *Store) ReadEnriched(name string) (*domain.EnrichedDecision, error) {
	var doc domain.EnrichedDecision
	if err := s.readDoc(driven.StageEnriched, name, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteEnriched persists an enrich-stage document.
func (s *Store) WriteEnriched(name string, doc *domain.EnrichedDecision) error {
	return s.writeDoc(driven.StageEnriched, name, doc)
}

// ReadVectorized loads a vectorize-stage document.
func (s *Store) ReadVectorized(name string) (*domain.VectorizedDecision, error) {
	var doc domain.VectorizedDecision
	if err := s.readDoc(driven.StageVectorized, name, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteVectorized persists a vectorize-stage document.
func (s *Store) WriteVectorized(name string, doc *domain.VectorizedDecision) error {
	return s.writeDoc(driven.StageVectorized, name, doc)
}

// HasPDF reports whether a cached PDF exists.
func (s *Store) HasPDF(filename string) bool {
	_, err := os.Stat(filepath.Join(s.pdfDir, filename))
	return err == nil
}

// ReadPDF returns cached PDF bytes.
func (s *Store) ReadPDF(filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.pdfDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return data, nil
}

// WritePDF caches PDF bytes and returns the path relative to the dataset
// root.
func (s *Store) WritePDF(filename string, data []byte) (string, error) {
	path := filepath.Join(s.pdfDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path, nil
	}
	return rel, nil
}

// AbsPDFPath resolves a cached PDF filename to an absolute path.
func (s *Store) AbsPDFPath(filename string) string {
	abs, err := filepath.Abs(filepath.Join(s.pdfDir, filename))
	if err != nil {
		return filepath.Join(s.pdfDir, filename)
	}
	return abs
}

func (s *Store) docPath(stage, name string) string {
	return filepath.Join(s.root, stage, name+".json")
}

func (s *Store) readDoc(stage, name string, out any) error {
	data, err := os.ReadFile(s.docPath(stage, name))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("read %s/%s: %w", stage, name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", stage, name, err)
	}
	return nil
}

func (s *Store) writeDoc(stage, name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", stage, name, err)
	}
	if err := os.WriteFile(s.docPath(stage, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s/%s: %w", stage, name, err)
	}
	return nil
}
