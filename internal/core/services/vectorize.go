package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driving"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// maxEmbedChars caps the text sent to the embeddings endpoint.
const maxEmbedChars = 12000

// VectorizeOptions configures one vectorize run.
type VectorizeOptions struct {
	// Limit caps processed documents, 0 means all.
	Limit int

	// Force reprocesses documents whose vectorized output already exists.
	Force bool

	// Delay is the politeness delay between embedding calls.
	Delay time.Duration
}

// VectorizeService embeds each enriched decision's reasoning text.
type VectorizeService struct {
	store     driven.StageStore
	embedding driven.EmbeddingService
	limiter   *rate.Limiter
	opts      VectorizeOptions
}

// NewVectorizeService creates a vectorize service.
func NewVectorizeService(store driven.StageStore, embedding driven.EmbeddingService, opts VectorizeOptions) *VectorizeService {
	return &VectorizeService{
		store:     store,
		embedding: embedding,
		limiter:   newLimiter(opts.Delay),
		opts:      opts,
	}
}

// Stage returns the stage name.
func (s *VectorizeService) Stage() string { return driving.StageVectorize }

// Run embeds every enriched document without a vectorized counterpart. A
// failed embeddings call leaves the embedding nil; the document is written
// regardless so ingest never starves on a flaky embeddings endpoint.
func (s *VectorizeService) Run(ctx context.Context) (driving.StageStatus, error) {
	status := driving.StageStatus{Stage: s.Stage()}

	names, err := s.store.ListDocs(driven.StageEnriched)
	if err != nil {
		return status, fmt.Errorf("vectorize: list enriched: %w", err)
	}
	if len(names) == 0 {
		logger.Warn("No enriched decisions; run enrich first")
		return status, nil
	}

	for _, name := range names {
		if s.opts.Limit > 0 && status.Processed >= s.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return status, err
		}

		if !s.opts.Force && s.store.HasDoc(driven.StageVectorized, name) {
			status.Skipped++
			continue
		}

		enriched, err := s.store.ReadEnriched(name)
		if err != nil {
			status.Failed++
			logger.Error("Vectorize %s: read enriched: %v", name, err)
			continue
		}

		if err := waitLimiter(ctx, s.limiter); err != nil {
			return status, err
		}

		doc := domain.VectorizedDecision{
			EnrichedDecision: *enriched,
			VectorizedAt:     time.Now().UTC(),
		}

		vector, err := s.embedding.Embed(ctx, embeddingText(enriched))
		if err != nil {
			status.Failed++
			logger.Error("Vectorize %s: embed: %v", name, err)
		} else {
			doc.Embedding = vector
			doc.EmbeddingModel = s.embedding.ModelName()
			doc.EmbeddingDim = len(vector)
		}

		if err := s.store.WriteVectorized(name, &doc); err != nil {
			return status, fmt.Errorf("vectorize: write %s: %w", name, err)
		}
		status.Processed++
	}

	logger.Info("Vectorized %d decisions (%d skipped, %d without embedding)", status.Processed, status.Skipped, status.Failed)
	return status, nil
}

// embeddingText selects what to embed: the ombudsman's reasoning carries
// the searchable substance, the final decision is the next best thing, and
// the full text is the last resort.
func embeddingText(doc *domain.EnrichedDecision) string {
	text := doc.Sections[domain.SectionOmbudsmanReasoning]
	if strings.TrimSpace(text) == "" {
		text = doc.Sections[domain.SectionFinalDecision]
	}
	if strings.TrimSpace(text) == "" {
		text = doc.FullText
	}
	return truncateText(text, maxEmbedChars)
}
