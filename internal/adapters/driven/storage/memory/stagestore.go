// Package memory provides in-memory storage implementations, used by tests
// and available wherever persistence is not wanted.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

// Ensure StageStore implements the interface.
var _ driven.StageStore = (*StageStore)(nil)

// StageStore is an in-memory implementation of driven.StageStore.
type StageStore struct {
	mu         sync.RWMutex
	index      []domain.DecisionRecord
	parsed     map[string]domain.ParsedDecision
	enriched   map[string]domain.EnrichedDecision
	vectorized map[string]domain.VectorizedDecision
	pdfs       map[string][]byte
}

// NewStageStore creates a new in-memory stage store.
func NewStageStore() *StageStore {
	return &StageStore{
		parsed:     make(map[string]domain.ParsedDecision),
		enriched:   make(map[string]domain.EnrichedDecision),
		vectorized: make(map[string]domain.VectorizedDecision),
		pdfs:       make(map[string][]byte),
	}
}

// ReadIndex returns the stored discovery index.
func (s *StageStore) ReadIndex(_ context.Context) ([]domain.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DecisionRecord, len(s.index))
	copy(out, s.index)
	return out, nil
}

// WriteIndex replaces or extends the discovery index.
func (s *StageStore) WriteIndex(_ context.Context, records []domain.DecisionRecord, appendMode bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appendMode {
		records = domain.DedupeRecords(append(s.index, records...))
	}
	s.index = make([]domain.DecisionRecord, len(records))
	copy(s.index, records)
	return nil
}

// ListDocs returns the sorted document names for a stage.
func (s *StageStore) ListDocs(stage string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	switch stage {
	case driven.StageParsed:
		for name := range s.parsed {
			names = append(names, name)
		}
	case driven.StageEnriched:
		for name := range s.enriched {
			names = append(names, name)
		}
	case driven.StageVectorized:
		for name := range s.vectorized {
			names = append(names, name)
		}
	default:
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidInput, stage)
	}
	sort.Strings(names)
	return names, nil
}

// HasDoc reports whether a stage document exists.
func (s *StageStore) HasDoc(stage, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch stage {
	case driven.StageParsed:
		_, ok := s.parsed[name]
		return ok
	case driven.StageEnriched:
		_, ok := s.enriched[name]
		return ok
	case driven.StageVectorized:
		_, ok := s.vectorized[name]
		return ok
	}
	return false
}

// ReadParsed retrieves a parsed document by name.
func (s *StageStore) ReadParsed(name string) (*domain.ParsedDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.parsed[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// WriteParsed stores a parsed document.
func (s *StageStore) WriteParsed(name string, doc *domain.ParsedDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parsed[name] = *doc
	return nil
}

// ReadEnriched retrieves an enriched document by name.
func (s *StageStore) ReadEnriched(name string) (*domain.EnrichedDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.enriched[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// WriteEnriched stores an enriched document.
func (s *StageStore) WriteEnriched(name string, doc *domain.EnrichedDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enriched[name] = *doc
	return nil
}

// ReadVectorized retrieves a vectorized document by name.
func (s *StageStore) ReadVectorized(name string) (*domain.VectorizedDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.vectorized[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// WriteVectorized stores a vectorized document.
func (s *StageStore) WriteVectorized(name string, doc *domain.VectorizedDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectorized[name] = *doc
	return nil
}

// HasPDF reports whether a PDF is cached.
func (s *StageStore) HasPDF(filename string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pdfs[filename]
	return ok
}

// ReadPDF returns cached PDF bytes.
func (s *StageStore) ReadPDF(filename string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.pdfs[filename]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WritePDF caches PDF bytes.
func (s *StageStore) WritePDF(filename string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.pdfs[filename] = buf
	return filepath.Join("pdfs", filename), nil
}

// AbsPDFPath returns a stable pseudo-path for a cached PDF.
func (s *StageStore) AbsPDFPath(filename string) string {
	return filepath.Join("/memory/pdfs", filename)
}
