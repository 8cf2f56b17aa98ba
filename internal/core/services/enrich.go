package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driving"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/extract"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// maxPromptChars caps the section text packed into one enrichment prompt.
const maxPromptChars = 16000

// missingSection marks a section whose heading was not found in the PDF.
const missingSection = "(missing)"

const systemPrompt = "You are an analyst of UK Financial Ombudsman Service decisions. " +
	"Respond with a single JSON object only, no prose, no markdown fences."

// EnrichOptions configures one enrich run.
type EnrichOptions struct {
	// Limit caps processed documents, 0 means all.
	Limit int

	// Force reprocesses documents whose enriched output already exists.
	Force bool

	// Delay is the politeness delay between model calls.
	Delay time.Duration
}

// EnrichService asks a chat model to extract the structured analysis from
// each parsed decision.
type EnrichService struct {
	store   driven.StageStore
	llm     driven.LLMService
	limiter *rate.Limiter
	opts    EnrichOptions
}

// NewEnrichService creates an enrich service.
func NewEnrichService(store driven.StageStore, llm driven.LLMService, opts EnrichOptions) *EnrichService {
	return &EnrichService{
		store:   store,
		llm:     llm,
		limiter: newLimiter(opts.Delay),
		opts:    opts,
	}
}

// Stage returns the stage name.
func (s *EnrichService) Stage() string { return driving.StageEnrich }

// Run enriches every parsed document without an enriched counterpart. A
// failed or unparseable model response degrades to the neutral analysis;
// the document is still written so downstream stages can proceed.
func (s *EnrichService) Run(ctx context.Context) (driving.StageStatus, error) {
	status := driving.StageStatus{Stage: s.Stage()}

	names, err := s.store.ListDocs(driven.StageParsed)
	if err != nil {
		return status, fmt.Errorf("enrich: list parsed: %w", err)
	}
	if len(names) == 0 {
		logger.Warn("No parsed decisions; run parse first")
		return status, nil
	}

	for _, name := range names {
		if s.opts.Limit > 0 && status.Processed >= s.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return status, err
		}

		if !s.opts.Force && s.store.HasDoc(driven.StageEnriched, name) {
			status.Skipped++
			continue
		}

		parsed, err := s.store.ReadParsed(name)
		if err != nil {
			status.Failed++
			logger.Error("Enrich %s: read parsed: %v", name, err)
			continue
		}

		if err := waitLimiter(ctx, s.limiter); err != nil {
			return status, err
		}

		ai, degraded := s.analyse(ctx, name, parsed)
		if degraded {
			status.Failed++
		}

		doc := domain.EnrichedDecision{
			ParsedDecision: *parsed,
			AI:             ai,
			EnrichedAt:     time.Now().UTC(),
		}
		if err := s.store.WriteEnriched(name, &doc); err != nil {
			return status, fmt.Errorf("enrich: write %s: %w", name, err)
		}
		status.Processed++
	}

	logger.Info("Enriched %d decisions (%d skipped, %d degraded)", status.Processed, status.Skipped, status.Failed)
	return status, nil
}

// analyse runs the model call for one document. The second return reports
// degradation to the neutral analysis.
func (s *EnrichService) analyse(ctx context.Context, name string, parsed *domain.ParsedDecision) (domain.AIAnalysis, bool) {
	messages := []driven.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildPrompt(parsed)},
	}

	reply, err := s.llm.Chat(ctx, messages, driven.ChatOptions{MaxTokens: 1200, Temperature: 0.1})
	if err != nil {
		logger.Error("Enrich %s: model call: %v", name, err)
		return domain.NeutralAnalysis(parsed.Outcome, parsed.ProductSector), true
	}

	ai, err := parseAnalysis(reply)
	if err != nil {
		logger.Error("Enrich %s: %v", name, err)
		return domain.NeutralAnalysis(parsed.Outcome, parsed.ProductSector), true
	}

	// Sanitise model output: unknown outcome strings normalise like any
	// scraped phrase, and an absent outcome carries the parsed one.
	ai.Outcome = extract.NormalizeOutcome(string(ai.Outcome))
	if ai.Outcome == domain.OutcomeUnknown && parsed.Outcome != "" {
		ai.Outcome = parsed.Outcome
	}
	if ai.ProductSector == "" {
		ai.ProductSector = parsed.ProductSector
	}
	if ai.PrecedentsCited == nil {
		ai.PrecedentsCited = []string{}
	}
	if ai.RootCauseTags == nil {
		ai.RootCauseTags = []string{}
	}
	if ai.VulnerabilityFlags == nil {
		ai.VulnerabilityFlags = []string{}
	}
	return ai, false
}

// buildPrompt packs the decision's sections into the extraction prompt.
// Sections the parser did not find are rendered as "(missing)" so the model
// never hallucinates from absent headers, and the total section text is
// capped to keep the prompt inside context limits.
func buildPrompt(parsed *domain.ParsedDecision) string {
	var b strings.Builder

	b.WriteString("Extract the following fields from this ombudsman decision and return them as JSON:\n")
	b.WriteString(`{"precedents_cited":[],"root_cause_tags":[],"decision_logic":"","vulnerability_flags":[],"ombudsman_name":"","outcome":"","product_sector":""}` + "\n")
	b.WriteString("outcome must be one of: upheld, not_upheld, partially_upheld, settled, not_settled, unknown.\n\n")

	if parsed.BusinessName != "" {
		fmt.Fprintf(&b, "Business: %s\n", parsed.BusinessName)
	}
	if parsed.DecisionReference != "" {
		fmt.Fprintf(&b, "Reference: %s\n", parsed.DecisionReference)
	}
	b.WriteString("\n")

	budget := maxPromptChars
	order := []string{
		domain.SectionComplaint,
		domain.SectionFirmResponse,
		domain.SectionOmbudsmanReasoning,
		domain.SectionFinalDecision,
	}
	for _, key := range order {
		text, ok := parsed.Sections[key]
		if !ok || strings.TrimSpace(text) == "" {
			text = missingSection
		}
		text = truncateText(text, budget)
		budget -= len(text)

		fmt.Fprintf(&b, "## %s\n%s\n\n", key, text)
		if budget <= 0 {
			break
		}
	}

	// A document with no recognised sections still gets its raw text.
	if len(parsed.Sections) == 0 && budget > 0 {
		fmt.Fprintf(&b, "## full_text\n%s\n", truncateText(parsed.FullText, budget))
	}

	return b.String()
}

// parseAnalysis extracts the first balanced JSON object from the model's
// reply. Models wrap JSON in fences or prose often enough that a plain
// Unmarshal of the whole reply is not workable.
func parseAnalysis(reply string) (domain.AIAnalysis, error) {
	var ai domain.AIAnalysis

	obj := firstJSONObject(reply)
	if obj == "" {
		return ai, fmt.Errorf("%w: no JSON object in model reply", domain.ErrInvalidInput)
	}
	if err := json.Unmarshal([]byte(obj), &ai); err != nil {
		return ai, fmt.Errorf("decode model reply: %w", err)
	}
	return ai, nil
}

// firstJSONObject returns the first balanced {...} span in s, tracking
// string literals so braces inside values do not miscount.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
