package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/storage/memory"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
)

// mockEmbedding implements driven.EmbeddingService, recording inputs.
type mockEmbedding struct {
	vector []float32
	err    error
	inputs []string
}

func (m *mockEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	m.inputs = append(m.inputs, text)
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func (m *mockEmbedding) Dimensions() int              { return len(m.vector) }
func (m *mockEmbedding) ModelName() string            { return "mock-embedding" }
func (m *mockEmbedding) Ping(_ context.Context) error { return nil }
func (m *mockEmbedding) Close() error                 { return nil }

func seedEnriched(t *testing.T, store *memory.StageStore, name string, doc *domain.EnrichedDecision) {
	t.Helper()
	require.NoError(t, store.WriteEnriched(name, doc))
}

func TestVectorize_EmbedsReasoning(t *testing.T) {
	store := memory.NewStageStore()
	seedEnriched(t, store, "drn-1111111", &domain.EnrichedDecision{
		ParsedDecision: domain.ParsedDecision{
			FullText: "full text",
			Sections: map[string]string{
				domain.SectionOmbudsmanReasoning: "the reasoning",
				domain.SectionFinalDecision:      "the decision",
			},
		},
	})

	embedding := &mockEmbedding{vector: []float32{0.1, 0.2, 0.3}}
	svc := NewVectorizeService(store, embedding, VectorizeOptions{})

	status, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Processed)

	require.Equal(t, []string{"the reasoning"}, embedding.inputs)

	doc, err := store.ReadVectorized("drn-1111111")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, doc.Embedding)
	assert.Equal(t, 3, doc.EmbeddingDim)
	assert.Equal(t, "mock-embedding", doc.EmbeddingModel)
}

func TestVectorize_TextPreferenceOrder(t *testing.T) {
	tests := []struct {
		name     string
		sections map[string]string
		fullText string
		want     string
	}{
		{
			"final decision when reasoning absent",
			map[string]string{domain.SectionFinalDecision: "the decision"},
			"full text",
			"the decision",
		},
		{
			"full text when no sections",
			nil,
			"full text",
			"full text",
		},
		{
			"blank reasoning treated as absent",
			map[string]string{
				domain.SectionOmbudsmanReasoning: "   ",
				domain.SectionFinalDecision:      "the decision",
			},
			"full text",
			"the decision",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := embeddingText(&domain.EnrichedDecision{
				ParsedDecision: domain.ParsedDecision{
					FullText: tt.fullText,
					Sections: tt.sections,
				},
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVectorize_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("y", maxEmbedChars*2)
	got := embeddingText(&domain.EnrichedDecision{
		ParsedDecision: domain.ParsedDecision{FullText: long},
	})
	assert.Len(t, got, maxEmbedChars)
}

func TestVectorize_WritesDocWithoutEmbeddingOnFailure(t *testing.T) {
	store := memory.NewStageStore()
	seedEnriched(t, store, "drn-1111111", &domain.EnrichedDecision{
		ParsedDecision: domain.ParsedDecision{FullText: "text"},
	})

	embedding := &mockEmbedding{err: errors.New("service unavailable")}
	svc := NewVectorizeService(store, embedding, VectorizeOptions{})

	status, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Processed)
	assert.Equal(t, 1, status.Failed)

	doc, err := store.ReadVectorized("drn-1111111")
	require.NoError(t, err)
	assert.Nil(t, doc.Embedding)
	assert.Zero(t, doc.EmbeddingDim)
	assert.Empty(t, doc.EmbeddingModel)
}

func TestVectorize_SkipsExistingDocs(t *testing.T) {
	store := memory.NewStageStore()
	seedEnriched(t, store, "drn-1111111", &domain.EnrichedDecision{})
	require.NoError(t, store.WriteVectorized("drn-1111111", &domain.VectorizedDecision{}))

	embedding := &mockEmbedding{vector: []float32{1}}
	svc := NewVectorizeService(store, embedding, VectorizeOptions{})

	status, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Skipped)
	assert.Empty(t, embedding.inputs)
}
