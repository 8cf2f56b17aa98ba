// Package sqlite implements the ingest target on a local SQLite file,
// for runs without a PostgreSQL instance. The row shape matches the
// postgres store except that the embedding is stored only as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DecisionWriter = (*Store)(nil)

// Store writes decisions to a SQLite table keyed by decision reference.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
	CREATE TABLE IF NOT EXISTS fos_decisions (
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
		embedding_model     TEXT,
		embedding_dim       INTEGER,
		scraped_at          DATETIME,
		parsed_at           DATETIME,
		enriched_at         DATETIME,
		vectorized_at       DATETIME,
		updated_at          DATETIME NOT NULL
	)`

// NewStore opens (or creates) a SQLite database at dbPath and ensures the
// decisions table exists.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: database path is required")
	}

	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// WAL mode for better concurrency with readers.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
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

	var embeddingJSON sql.NullString
	if doc.Embedding != nil {
		data, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		embeddingJSON = sql.NullString{String: string(data), Valid: true}
	}

	ombudsman := doc.OmbudsmanName
	if doc.AI.OmbudsmanName != "" {
		ombudsman = doc.AI.OmbudsmanName
	}

	sector := doc.ProductSector
	if doc.AI.ProductSector != "" {
		sector = doc.AI.ProductSector
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fos_decisions (
			decision_reference, pdf_url, source_url, decision_date,
			business_name, product_sector, outcome, outcome_raw, page_count,
			pdf_path, pdf_sha256, full_text, ombudsman_name,
			precedents, root_cause_tags, vulnerability_flags, decision_logic,
			embedding_json, embedding_model, embedding_dim,
			scraped_at, parsed_at, enriched_at, vectorized_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(decision_reference) DO UPDATE SET
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
			embedding_model = excluded.embedding_model,
			embedding_dim = excluded.embedding_dim,
			scraped_at = excluded.scraped_at,
			parsed_at = excluded.parsed_at,
			enriched_at = excluded.enriched_at,
			vectorized_at = excluded.vectorized_at,
			updated_at = excluded.updated_at
	`,
		doc.DecisionReference, nullString(doc.PDFURL), nullString(doc.SourceURL),
		nullString(doc.DecisionDate), nullString(doc.BusinessName),
		nullString(sector), string(doc.AI.Outcome), nullString(doc.OutcomeRaw),
		doc.PageCount, nullString(doc.PDFPath), nullString(doc.PDFSHA256),
		nullString(doc.FullText), nullString(ombudsman),
		string(precedents), string(rootCauses), string(vulnerabilities),
		nullString(doc.AI.DecisionLogic),
		embeddingJSON, nullString(doc.EmbeddingModel), doc.EmbeddingDim,
		nullTime(doc.ScrapedAt), nullTime(doc.ParsedAt),
		nullTime(doc.EnrichedAt), nullTime(doc.VectorizedAt),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", doc.DecisionReference, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
