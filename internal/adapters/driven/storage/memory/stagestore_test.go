package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

func TestStageStore_IndexRoundTrip(t *testing.T) {
	store := NewStageStore()
	ctx := context.Background()

	records, err := store.ReadIndex(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	in := []domain.DecisionRecord{
		{DecisionReference: "DRN-1111111", ScrapedAt: time.Now()},
		{DecisionReference: "DRN-2222222", ScrapedAt: time.Now()},
	}
	require.NoError(t, store.WriteIndex(ctx, in, false))

	out, err := store.ReadIndex(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestStageStore_AppendDeduplicates(t *testing.T) {
	store := NewStageStore()
	ctx := context.Background()

	require.NoError(t, store.WriteIndex(ctx, []domain.DecisionRecord{
		{DecisionReference: "DRN-1111111"},
	}, false))
	require.NoError(t, store.WriteIndex(ctx, []domain.DecisionRecord{
		{DecisionReference: "DRN-1111111"},
		{DecisionReference: "DRN-2222222"},
	}, true))

	out, err := store.ReadIndex(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestStageStore_DocsPerStage(t *testing.T) {
	store := NewStageStore()

	require.NoError(t, store.WriteParsed("drn-1111111", &domain.ParsedDecision{FullText: "text"}))
	require.NoError(t, store.WriteEnriched("drn-1111111", &domain.EnrichedDecision{}))

	assert.True(t, store.HasDoc(driven.StageParsed, "drn-1111111"))
	assert.True(t, store.HasDoc(driven.StageEnriched, "drn-1111111"))
	assert.False(t, store.HasDoc(driven.StageVectorized, "drn-1111111"))

	names, err := store.ListDocs(driven.StageParsed)
	require.NoError(t, err)
	assert.Equal(t, []string{"drn-1111111"}, names)

	doc, err := store.ReadParsed("drn-1111111")
	require.NoError(t, err)
	assert.Equal(t, "text", doc.FullText)

	_, err = store.ReadParsed("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.ListDocs("bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStageStore_PDFCache(t *testing.T) {
	store := NewStageStore()

	assert.False(t, store.HasPDF("a.pdf"))

	rel, err := store.WritePDF("a.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "pdfs/a.pdf", rel)
	assert.True(t, store.HasPDF("a.pdf"))

	data, err := store.ReadPDF("a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}
