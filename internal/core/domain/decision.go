// Package domain defines the record types that flow through the pipeline.
// Each stage's output type is a superset of its input type, so every stage
// has a precise contract over what it reads and what it adds.
package domain

import "time"

// Outcome classifies the ombudsman's finding on a complaint.
type Outcome string

// Recognised outcome values. OutcomeUnknown is used when the source text
// does not contain a recognisable outcome phrase.
const (
	OutcomeUpheld          Outcome = "upheld"
	OutcomeNotUpheld       Outcome = "not_upheld"
	OutcomePartiallyUpheld Outcome = "partially_upheld"
	OutcomeSettled         Outcome = "settled"
	OutcomeNotSettled      Outcome = "not_settled"
	OutcomeUnknown         Outcome = "unknown"
)

// Section keys for the four canonical parts of a decision document.
const (
	SectionComplaint           = "complaint"
	SectionFirmResponse        = "firm_response"
	SectionOmbudsmanReasoning  = "ombudsman_reasoning"
	SectionFinalDecision       = "final_decision"
)

// DecisionRecord is one scraped search result, the output of the discover
// stage. Identity fields are all optional individually; a record with no
// reference, no PDF URL and no source URL carries no identity and is dropped
// during deduplication.
type DecisionRecord struct {
	// DecisionReference is the ombudsman's case identifier (e.g. DRN1234567).
	// Empty when neither the DOM nor the raw text yielded one.
	DecisionReference string `json:"decision_reference,omitempty"`

	// PDFURL is the direct link to the decision PDF, when the result row
	// carried one.
	PDFURL string `json:"pdf_url,omitempty"`

	// SourceURL is the search-result detail page.
	SourceURL string `json:"source_url,omitempty"`

	// DecisionDate is the free-text date as scraped; it is not normalised
	// to a time.Time because the source formats vary.
	DecisionDate string `json:"decision_date,omitempty"`

	// BusinessName is the respondent firm.
	BusinessName string `json:"business_name,omitempty"`

	// ProductSector is the product/service category tag.
	ProductSector string `json:"product_sector,omitempty"`

	// Outcome is the normalised outcome; OutcomeRaw keeps the phrase that
	// matched so the normalisation is auditable.
	Outcome    Outcome `json:"outcome"`
	OutcomeRaw string  `json:"outcome_raw,omitempty"`

	// PageCount is the advertised PDF page count, 0 when unknown.
	PageCount int `json:"page_count,omitempty"`

	// Snippet is the short description shown in the result row.
	Snippet string `json:"snippet,omitempty"`

	// RawText is the full visible text of the result row, kept for the
	// post-loop regex re-enrichment pass.
	RawText string `json:"raw_text,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// ParsedDecision is a DecisionRecord plus the downloaded PDF and its
// extracted text, the output of the parse stage.
type ParsedDecision struct {
	DecisionRecord

	// PDFPath is the cached binary, relative to the dataset root.
	PDFPath string `json:"pdf_path"`

	// PDFSHA256 is the hex SHA-256 of the exact bytes written to PDFPath.
	// Re-parsing an unchanged PDF must reproduce it.
	PDFSHA256 string `json:"pdf_sha256"`

	// FullText is the extracted document text.
	FullText string `json:"full_text"`

	// Sections maps the canonical section keys to their text. A key is
	// absent when its heading was not found; that is not an error.
	Sections map[string]string `json:"sections"`

	// OmbudsmanName is regex-extracted from the signature block, empty
	// when not found.
	OmbudsmanName string `json:"ombudsman_name,omitempty"`

	ParsedAt time.Time `json:"parsed_at"`
}

// AIAnalysis is the fixed extraction schema returned by the enrich stage.
type AIAnalysis struct {
	PrecedentsCited    []string `json:"precedents_cited"`
	RootCauseTags      []string `json:"root_cause_tags"`
	DecisionLogic      string   `json:"decision_logic"`
	VulnerabilityFlags []string `json:"vulnerability_flags"`
	OmbudsmanName      string   `json:"ombudsman_name,omitempty"`
	Outcome            Outcome  `json:"outcome"`
	ProductSector      string   `json:"product_sector,omitempty"`
}

// NeutralAnalysis returns the fallback AIAnalysis written when the model
// call fails or its response cannot be parsed. Outcome and product sector
// carry forward the pre-existing values so degradation never loses data.
func NeutralAnalysis(outcome Outcome, productSector string) AIAnalysis {
	if outcome == "" {
		outcome = OutcomeUnknown
	}
	return AIAnalysis{
		PrecedentsCited:    []string{},
		RootCauseTags:      []string{},
		VulnerabilityFlags: []string{},
		Outcome:            outcome,
		ProductSector:      productSector,
	}
}

// EnrichedDecision is a ParsedDecision plus the model extraction.
// AI is always present: a failed model call yields NeutralAnalysis,
// never a missing field.
type EnrichedDecision struct {
	ParsedDecision

	AI         AIAnalysis `json:"ai"`
	EnrichedAt time.Time  `json:"enriched_at"`
}

// VectorizedDecision is an EnrichedDecision plus the embedding of its
// reasoning text. Embedding is nil when the embeddings call failed; the
// record is still written so ingest can proceed without it.
type VectorizedDecision struct {
	EnrichedDecision

	Embedding      []float32 `json:"embedding"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	EmbeddingDim   int       `json:"embedding_dim"`
	VectorizedAt   time.Time `json:"vectorized_at"`
}
