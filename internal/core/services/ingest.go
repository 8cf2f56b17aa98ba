package services

import (
	"context"
	"fmt"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driving"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// IngestOptions configures one ingest run.
type IngestOptions struct {
	// Limit caps processed documents, 0 means all.
	Limit int
}

// IngestService upserts every vectorized decision into the relational
// target. Upserts make the stage idempotent, so there is no skip check.
type IngestService struct {
	store  driven.StageStore
	writer driven.DecisionWriter
	opts   IngestOptions
}

// NewIngestService creates an ingest service.
func NewIngestService(store driven.StageStore, writer driven.DecisionWriter, opts IngestOptions) *IngestService {
	return &IngestService{store: store, writer: writer, opts: opts}
}

// Stage returns the stage name.
func (s *IngestService) Stage() string { return driving.StageIngest }

// Run upserts each vectorized document independently; a single bad row
// never aborts the stage.
func (s *IngestService) Run(ctx context.Context) (driving.StageStatus, error) {
	status := driving.StageStatus{Stage: s.Stage()}

	names, err := s.store.ListDocs(driven.StageVectorized)
	if err != nil {
		return status, fmt.Errorf("ingest: list vectorized: %w", err)
	}
	if len(names) == 0 {
		logger.Warn("No vectorized decisions; run vectorize first")
		return status, nil
	}

	for _, name := range names {
		if s.opts.Limit > 0 && status.Processed >= s.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return status, err
		}

		doc, err := s.store.ReadVectorized(name)
		if err != nil {
			status.Failed++
			logger.Error("Ingest %s: read vectorized: %v", name, err)
			continue
		}

		if err := s.writer.Upsert(ctx, doc); err != nil {
			status.Failed++
			logger.Error("Ingest %s: upsert: %v", name, err)
			continue
		}
		status.Processed++
	}

	logger.Info("Ingested %d decisions (%d failed)", status.Processed, status.Failed)
	return status, nil
}
