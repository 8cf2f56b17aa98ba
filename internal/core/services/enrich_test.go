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
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

// mockLLM implements driven.LLMService with a canned reply.
type mockLLM struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	for _, msg := range messages {
		if msg.Role == "user" {
			m.prompts = append(m.prompts, msg.Content)
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockLLM) ModelName() string            { return "mock-model" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

func seedParsed(t *testing.T, store *memory.StageStore, name string, doc *domain.ParsedDecision) {
	t.Helper()
	require.NoError(t, store.WriteParsed(name, doc))
}

func TestEnrich_ParsesModelReply(t *testing.T) {
	store := memory.NewStageStore()
	seedParsed(t, store, "drn-1111111", &domain.ParsedDecision{
		Sections: map[string]string{
			domain.SectionComplaint:          "Mr A complains.",
			domain.SectionOmbudsmanReasoning: "I find the firm was wrong.",
		},
	})

	llm := &mockLLM{reply: "Here you go:\n```json\n" +
		`{"precedents_cited":["DISP 3.6"],"root_cause_tags":["claims-handling"],` +
		`"decision_logic":"The firm breached its duty.","vulnerability_flags":[],` +
		`"ombudsman_name":"J Smith","outcome":"upheld","product_sector":"insurance"}` +
		"\n```"}

	svc := NewEnrichService(store, llm, EnrichOptions{})
	status, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Processed)
	assert.Zero(t, status.Failed)

	doc, err := store.ReadEnriched("drn-1111111")
	require.NoError(t, err)
	assert.Equal(t, []string{"DISP 3.6"}, doc.AI.PrecedentsCited)
	assert.Equal(t, domain.OutcomeUpheld, doc.AI.Outcome)
	assert.Equal(t, "J Smith", doc.AI.OmbudsmanName)
}

func TestEnrich_DegradesToNeutralOnModelError(t *testing.T) {
	store := memory.NewStageStore()
	seedParsed(t, store, "drn-1111111", &domain.ParsedDecision{
		DecisionRecord: domain.DecisionRecord{
			Outcome:       domain.OutcomeNotUpheld,
			ProductSector: "banking",
		},
	})

	llm := &mockLLM{err: errors.New("rate limited")}
	svc := NewEnrichService(store, llm, EnrichOptions{})

	status, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Processed)
	assert.Equal(t, 1, status.Failed)

	doc, err := store.ReadEnriched("drn-1111111")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotUpheld, doc.AI.Outcome)
	assert.Equal(t, "banking", doc.AI.ProductSector)
	assert.NotNil(t, doc.AI.PrecedentsCited)
	assert.Empty(t, doc.AI.PrecedentsCited)
}

func TestEnrich_DegradesToNeutralOnUnparseableReply(t *testing.T) {
	store := memory.NewStageStore()
	seedParsed(t, store, "drn-1111111", &domain.ParsedDecision{})

	llm := &mockLLM{reply: "I cannot produce JSON for this document."}
	svc := NewEnrichService(store, llm, EnrichOptions{})

	status, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Failed)

	doc, err := store.ReadEnriched("drn-1111111")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnknown, doc.AI.Outcome)
}

func TestEnrich_SkipsExistingDocs(t *testing.T) {
	store := memory.NewStageStore()
	seedParsed(t, store, "drn-1111111", &domain.ParsedDecision{})
	require.NoError(t, store.WriteEnriched("drn-1111111", &domain.EnrichedDecision{}))

	llm := &mockLLM{reply: "{}"}
	svc := NewEnrichService(store, llm, EnrichOptions{})

	status, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Skipped)
	assert.Empty(t, llm.prompts)
}

func TestBuildPrompt_MissingSectionsMarked(t *testing.T) {
	prompt := buildPrompt(&domain.ParsedDecision{
		Sections: map[string]string{
			domain.SectionComplaint: "Mr A complains.",
		},
	})

	assert.Contains(t, prompt, "Mr A complains.")
	// The three absent sections are explicitly marked, not omitted.
	assert.Equal(t, 3, strings.Count(prompt, missingSection))
}

func TestBuildPrompt_CapsLongSections(t *testing.T) {
	long := strings.Repeat("x", maxPromptChars*2)
	prompt := buildPrompt(&domain.ParsedDecision{
		Sections: map[string]string{
			domain.SectionComplaint:          long,
			domain.SectionOmbudsmanReasoning: long,
		},
	})
	assert.Less(t, len(prompt), maxPromptChars+2000)
}

func TestBuildPrompt_FallsBackToFullText(t *testing.T) {
	prompt := buildPrompt(&domain.ParsedDecision{FullText: "the whole document"})
	assert.Contains(t, prompt, "the whole document")
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Sure: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`},
		{"brace inside string", `{"a":"}"}`, `{"a":"}"}`},
		{"escaped quote", `{"a":"\"}"}`, `{"a":"\"}"}`},
		{"unbalanced", `{"a":1`, ""},
		{"no object", "nothing here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstJSONObject(tt.input))
		})
	}
}
