// Package postgres implements the ingest target on PostgreSQL using pgx.
// Array fields and the embedding are stored as JSON text for portability;
// the embedding is additionally stored in a pgvector column so downstream
// semantic search can query it natively.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DecisionWriter = (*Store)(nil)

// embeddingDim is the vector column width. Decisions embedded with a
// different model dimension still land in the JSON column; the vector
// column is left null for them.
const embeddingDim = 1536

// Store writes decisions to a PostgreSQL table keyed by decision reference.
type Store struct {
	pool *pgxpool.Pool
}

// schemaStatements are executed one at a time on startup; pgx's extended
// protocol does not allow multi-statement strings.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS fos_decisions (
	decision_reference  TEXT PRIMARY KEY,
	pdf_url             TEXT,
	source_url          TEXT,
	decision_date       TEXT,
	business_name       TEXT,
	product_sector      TEXT,
	outcome             TEXT NOT NULL,
	outcome_raw         TEXT,
	page_count          INTEGER,
	pdf_path            TEXT,
	pdf_sha256          TEXT,
	full_text           TEXT,
	ombudsman_name      TEXT,
	precedents          TEXT,
	root_cause_tags     TEXT,
	vulnerability_flags TEXT,
	decision_logic      TEXT,
	embedding_json      TEXT,
	embedding           vector(1536),
	embedding_model     TEXT,
	embedding_dim       INTEGER,
	scraped_at          TIMESTAMPTZ,
	parsed_at           TIMESTAMPTZ,
	enriched_at         TIMESTAMPTZ,
	vectorized_at       TIMESTAMPTZ,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

// NewStore connects to the database at connString and ensures the
// decisions table exists.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return &Store{pool: pool}, nil
}

// Upsert inserts or updates one decision row, refreshing every non-key
// column and the updated_at timestamp.
func (s *Store) Upsert(ctx context.Context, doc *domain.VectorizedDecision) error {
	if doc.DecisionReference == "" {
		return fmt.Errorf("%w: decision reference required for ingest", domain.ErrInvalidInput)
	}

	precedents, err := json.Marshal(doc.AI.PrecedentsCited)
	if err != nil {
		return fmt.Errorf("marshal precedents: %w", err)
	}
	rootCauses, err := json.Marshal(doc.AI.RootCauseTags)
	if err != nil {
		return fmt.Errorf("marshal root causes: %w", err)
	}
	vulnerabilities, err := json.Marshal(doc.AI.VulnerabilityFlags)
	if err != nil {
		return fmt.Errorf("marshal vulnerability flags: %w", err)
	}

	var embeddingJSON *string
	var vec *pgvector.Vector
	if doc.Embedding != nil {
		data, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		str := string(data)
		embeddingJSON = &str

		if len(doc.Embedding) == embeddingDim {
			v := pgvector.NewVector(doc.Embedding)
			vec = &v
		}
	}

	ombudsman := doc.OmbudsmanName
	if doc.AI.OmbudsmanName != "" {
		ombudsman = doc.AI.OmbudsmanName
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO fos_decisions (
			decision_reference, pdf_url, source_url, decision_date,
			business_name, product_sector, outcome, outcome_raw, page_count,
			pdf_path, pdf_sha256, full_text, ombudsman_name,
			precedents, root_cause_tags, vulnerability_flags, decision_logic,
			embedding_json, embedding, embedding_model, embedding_dim,
			scraped_at, parsed_at, enriched_at, vectorized_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, now()
		)
		ON CONFLICT (decision_reference) DO UPDATE SET
			pdf_url = excluded.pdf_url,
			source_url = excluded.source_url,
			decision_date = excluded.decision_date,
			business_name = excluded.business_name,
			product_sector = excluded.product_sector,
			outcome = excluded.outcome,
			outcome_raw = excluded.outcome_raw,
			page_count = excluded.page_count,
			pdf_path = excluded.pdf_path,
			pdf_sha256 = excluded.pdf_sha256,
			full_text = excluded.full_text,
			ombudsman_name = excluded.ombudsman_name,
			precedents = excluded.precedents,
			root_cause_tags = excluded.root_cause_tags,
			vulnerability_flags = excluded.vulnerability_flags,
			decision_logic = excluded.decision_logic,
			embedding_json = excluded.embedding_json,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model,
			embedding_dim = excluded.embedding_dim,
			scraped_at = excluded.scraped_at,
			parsed_at = excluded.parsed_at,
			enriched_at = excluded.enriched_at,
			vectorized_at = excluded.vectorized_at,
			updated_at = now()
	`,
		doc.DecisionReference, nullString(doc.PDFURL), nullString(doc.SourceURL),
		nullString(doc.DecisionDate), nullString(doc.BusinessName),
		nullString(effectiveSector(doc)), string(doc.AI.Outcome), nullString(doc.OutcomeRaw),
		doc.PageCount, nullString(doc.PDFPath), nullString(doc.PDFSHA256),
		nullString(doc.FullText), nullString(ombudsman),
		string(precedents), string(rootCauses), string(vulnerabilities),
		nullString(doc.AI.DecisionLogic),
		embeddingJSON, vec, nullString(doc.EmbeddingModel), doc.EmbeddingDim,
		nullTime(doc.ScrapedAt), nullTime(doc.ParsedAt),
		nullTime(doc.EnrichedAt), nullTime(doc.VectorizedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", doc.DecisionReference, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// effectiveSector prefers the model's product sector over the scraped one.
func effectiveSector(doc *domain.VectorizedDecision) string {
	if doc.AI.ProductSector != "" {
		return doc.AI.ProductSector
	}
	return doc.ProductSector
}

// nullString maps "" to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
