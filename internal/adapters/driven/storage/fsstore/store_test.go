package fsstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "", "")
	require.NoError(t, err)
	return s
}

func TestNewStore_CreatesStageDirs(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(dir, "", "")
	require.NoError(t, err)

	for _, sub := range []string{"pdfs", "parsed", "enriched", "vectors"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestIndex_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []domain.DecisionRecord{
		{DecisionReference: "DRN1", PDFURL: "https://x/1.pdf", Outcome: domain.OutcomeUpheld, ScrapedAt: time.Now().UTC()},
		{DecisionReference: "DRN2", SourceURL: "https://x/2", Outcome: domain.OutcomeUnknown},
	}
	require.NoError(t, s.WriteIndex(ctx, records, false))

	got, err := s.ReadIndex(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "DRN1", got[0].DecisionReference)
	assert.Equal(t, domain.OutcomeUpheld, got[0].Outcome)
}

func TestIndex_MissingFileYieldsEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.ReadIndex(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIndex_AppendModeDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIndex(ctx, []domain.DecisionRecord{
		{PDFURL: "https://x/1.pdf", BusinessName: "original"},
	}, false))

	require.NoError(t, s.WriteIndex(ctx, []domain.DecisionRecord{
		{PDFURL: "https://x/1.pdf", BusinessName: "duplicate"},
		{PDFURL: "https://x/2.pdf"},
	}, true))

	got, err := s.ReadIndex(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "original", got[0].BusinessName)
}

func TestIndex_MalformedLinesSkipped(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "", "")
	require.NoError(t, err)

	content := `{"decision_reference":"DRN1","outcome":"upheld"}` + "\nnot json\n" +
		`{"decision_reference":"DRN2","outcome":"unknown"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte(content), 0o644))

	got, err := s.ReadIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestParsedDoc_RoundTripAndExistence(t *testing.T) {
	s := newTestStore(t)

	doc := &domain.ParsedDecision{
		DecisionRecord: domain.DecisionRecord{DecisionReference: "DRN1234567", Outcome: domain.OutcomeUpheld},
		PDFSHA256:      "abc123",
		FullText:       "The complaint\n...",
		Sections:       map[string]string{domain.SectionComplaint: "Mr A complains"},
	}

	assert.False(t, s.HasDoc(driven.StageParsed, "drn1234567"))
	require.NoError(t, s.WriteParsed("drn1234567", doc))
	assert.True(t, s.HasDoc(driven.StageParsed, "drn1234567"))

	got, err := s.ReadParsed("drn1234567")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.PDFSHA256)
	assert.Equal(t, "Mr A complains", got.Sections[domain.SectionComplaint])
}

func TestReadDoc_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadParsed("absent")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListDocs_Sorted(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteEnriched("b-doc", &domain.EnrichedDecision{}))
	require.NoError(t, s.WriteEnriched("a-doc", &domain.EnrichedDecision{}))

	names, err := s.ListDocs(driven.StageEnriched)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-doc", "b-doc"}, names)
}

func TestPDF_CacheRoundTrip(t *testing.T) {
	s := newTestStore(t)

	data := []byte("%PDF-1.4 fake")
	assert.False(t, s.HasPDF("drn1-abcd1234.pdf"))

	rel, err := s.WritePDF("drn1-abcd1234.pdf", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("pdfs", "drn1-abcd1234.pdf"), rel)
	assert.True(t, s.HasPDF("drn1-abcd1234.pdf"))

	got, err := s.ReadPDF("drn1-abcd1234.pdf")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.True(t, filepath.IsAbs(s.AbsPDFPath("drn1-abcd1234.pdf")))
}

func TestVectorizedDoc_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	doc := &domain.VectorizedDecision{
		EnrichedDecision: domain.EnrichedDecision{
			ParsedDecision: domain.ParsedDecision{
				DecisionRecord: domain.DecisionRecord{DecisionReference: "DRN9"},
			},
			AI: domain.NeutralAnalysis(domain.OutcomeSettled, "banking"),
		},
		Embedding:      []float32{0.1, 0.2},
		EmbeddingModel: "text-embedding-3-small",
		EmbeddingDim:   2,
	}
	require.NoError(t, s.WriteVectorized("drn9", doc))

	got, err := s.ReadVectorized("drn9")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, got.Embedding)
	assert.Equal(t, 2, got.EmbeddingDim)
	assert.Equal(t, domain.OutcomeSettled, got.AI.Outcome)
}
