package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
)

const sampleDecision = `DRN1234567

The complaint
Mr A complains that Acme Insurance declined his motor claim.

What the business said
Acme said the policy excluded the loss.

What I've decided - and why
I have considered all the evidence. The exclusion was not
brought to Mr A's attention, so it cannot fairly be relied on.

My final decision
I uphold this complaint and require Acme Insurance to pay the claim.
`

func TestSplitSections_AllFour(t *testing.T) {
	sections := SplitSections(sampleDecision)
	require.Len(t, sections, 4)

	assert.Contains(t, sections[domain.SectionComplaint], "Mr A complains")
	assert.Contains(t, sections[domain.SectionFirmResponse], "policy excluded")
	assert.Contains(t, sections[domain.SectionOmbudsmanReasoning], "considered all the evidence")
	assert.Contains(t, sections[domain.SectionFinalDecision], "I uphold this complaint")

	// Each section's content must stop before the next heading.
	assert.NotContains(t, sections[domain.SectionComplaint], "What the business said")
	assert.NotContains(t, sections[domain.SectionFirmResponse], "decided - and why")
	assert.NotContains(t, sections[domain.SectionOmbudsmanReasoning], "My final decision")
}

func TestSplitSections_HeadingLineStripped(t *testing.T) {
	sections := SplitSections(sampleDecision)
	assert.NotContains(t, sections[domain.SectionComplaint], "The complaint")
	assert.NotContains(t, sections[domain.SectionFinalDecision], "My final decision")
}

func TestSplitSections_ColonDelimitedHeading(t *testing.T) {
	text := "The complaint: Mr B complains about unauthorised charges."
	sections := SplitSections(text)
	require.Contains(t, sections, domain.SectionComplaint)
	assert.Contains(t, sections[domain.SectionComplaint], "unauthorised charges")
}

func TestSplitSections_MissingHeadingsAbsent(t *testing.T) {
	text := "The complaint\nMr C complains.\n\nMy final decision\nNot upheld.\n"
	sections := SplitSections(text)
	assert.Len(t, sections, 2)
	assert.NotContains(t, sections, domain.SectionFirmResponse)
	assert.NotContains(t, sections, domain.SectionOmbudsmanReasoning)
}

func TestSplitSections_NoHeadings(t *testing.T) {
	sections := SplitSections("plain text with no recognised structure at all")
	assert.NotNil(t, sections)
	assert.Empty(t, sections)
}

func TestSplitSections_MidSentenceMentionIgnored(t *testing.T) {
	// "complaint" appears mid-sentence without a newline or colon after it,
	// so it is not a heading.
	sections := SplitSections("He raised a complaint about the firm yesterday.")
	assert.Empty(t, sections)
}
