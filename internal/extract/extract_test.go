package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
)

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapse runs", "a  b\t\tc\n\nd", "a b c d"},
		{"trim ends", "  hello world  ", "hello world"},
		{"empty", "", ""},
		{"only whitespace", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWhitespace(tt.input))
		})
	}
}

func TestNormalizeOutcome(t *testing.T) {
	tests := []struct {
		input string
		want  domain.Outcome
	}{
		{"Partially Upheld", domain.OutcomePartiallyUpheld},
		{"part upheld", domain.OutcomePartiallyUpheld},
		{"PARTIALLY UPHELD", domain.OutcomePartiallyUpheld},
		{"Not upheld", domain.OutcomeNotUpheld},
		{"complaint not upheld", domain.OutcomeNotUpheld},
		{"Upheld", domain.OutcomeUpheld},
		{"complaint upheld in full", domain.OutcomeUpheld},
		{"Settled", domain.OutcomeSettled},
		{"not settled", domain.OutcomeNotSettled},
		{"gibberish", domain.OutcomeUnknown},
		{"", domain.OutcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOutcome(tt.input))
		})
	}
}

func TestDecisionReference(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"labelled reference", "Decision Reference: DRN-4512345 issued", "DRN-4512345"},
		{"bare drn token", "see decision DRN1234567 for details", "DRN-1234567"},
		{"hyphenated bare token", "case DRS-7654321 closed", "DRS-7654321"},
		{"space separated bare token", "case DR 7654321 closed", "DR-7654321"},
		{"labelled wins over bare", "Decision Reference: FOS-99 but also DRN1234567", "FOS-99"},
		{"none", "no reference here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecisionReference(tt.input))
		})
	}
}

func TestOmbudsmanName(t *testing.T) {
	text := "I require the business to pay compensation.\nJane Smith\nOmbudsman"
	assert.Equal(t, "Jane Smith", OmbudsmanName(text))

	assert.Empty(t, OmbudsmanName("no signature block"))
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"DRN1234567", "drn1234567"},
		{"Acme Insurance Ltd.", "acme-insurance-ltd"},
		{"  spaced   out  ", "spaced-out"},
		{"---", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.input))
	}
}

func TestMetadataFromText(t *testing.T) {
	text := "12 March 2024 Acme Insurance Ltd Upheld motor insurance DRN1234567 complaint about a claim"

	md := MetadataFromText(text)
	assert.Equal(t, "DRN-1234567", md.DecisionReference)
	assert.Equal(t, "12 March 2024", md.DecisionDate)
	assert.Equal(t, "Acme Insurance Ltd", md.BusinessName)
	assert.Equal(t, domain.OutcomeUpheld, md.Outcome)
	assert.Equal(t, "Upheld", md.OutcomeRaw)
	assert.Equal(t, "motor insurance", md.ProductSector)
}

func TestMetadataFromText_OutOfOrder(t *testing.T) {
	// Outcome before the date: the positional heuristic must not fire.
	md := MetadataFromText("Upheld on 12 March 2024 by the service")
	assert.Equal(t, "12 March 2024", md.DecisionDate)
	assert.Equal(t, domain.OutcomeUpheld, md.Outcome)
	assert.Empty(t, md.BusinessName)
	assert.Empty(t, md.ProductSector)
}

func TestMetadataFromText_AllOptional(t *testing.T) {
	md := MetadataFromText("nothing recognisable in here")
	assert.Empty(t, md.DecisionReference)
	assert.Empty(t, md.DecisionDate)
	assert.Empty(t, md.BusinessName)
	assert.Empty(t, md.ProductSector)
	assert.Equal(t, domain.OutcomeUnknown, md.Outcome)
}
