// Package extract provides the pure text and metadata extraction functions
// used across the pipeline: whitespace normalisation, outcome classification,
// decision-reference and date regexes, and section splitting.
//
// Everything here is best-effort by contract. The source documents are not
// under our control, so every extractor yields zero values rather than errors
// when a pattern does not hold.
package extract

import (
	"regexp"
	"strings"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	// labelledRefPattern matches a structured reference after the literal
	// "Decision Reference" label, e.g. "Decision Reference: DRN-1234567".
	labelledRefPattern = regexp.MustCompile(`(?i)Decision Reference[:\s]*([A-Z]{2,3}-\d+)`)

	// bareRefPattern matches a bare DRN/DRS/DR token anywhere in the text.
	bareRefPattern = regexp.MustCompile(`\b(DRN|DRS|DR)[- ]?(\d{4,})\b`)

	datePattern = regexp.MustCompile(`\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})\b`)

	outcomePhrasePattern = regexp.MustCompile(`(?i)\b(partially upheld|part upheld|not upheld|not settled|upheld|settled)\b`)

	// ombudsmanNamePattern matches the signature block "<name>\nOmbudsman".
	ombudsmanNamePattern = regexp.MustCompile(`([A-Z][A-Za-z'.-]+(?: [A-Z][A-Za-z'.-]+){1,3})\s*\r?\n\s*[Oo]mbudsman\b`)

	slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeWhitespace collapses all whitespace runs to single spaces and
// trims leading/trailing whitespace.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// NormalizeOutcome classifies a raw outcome phrase. Matching is
// case-insensitive substring matching with a fixed priority: the compound
// phrases are checked before their plain suffixes so "partially upheld"
// never classifies as upheld and "not settled" never as settled.
func NormalizeOutcome(raw string) domain.Outcome {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "part") && strings.Contains(s, "upheld"):
		return domain.OutcomePartiallyUpheld
	case strings.Contains(s, "not") && strings.Contains(s, "upheld"):
		return domain.OutcomeNotUpheld
	case strings.Contains(s, "upheld"):
		return domain.OutcomeUpheld
	case strings.Contains(s, "not") && strings.Contains(s, "settled"):
		return domain.OutcomeNotSettled
	case strings.Contains(s, "settled"):
		return domain.OutcomeSettled
	default:
		return domain.OutcomeUnknown
	}
}

// DecisionReference extracts a decision reference from text: a structured
// "XX-123" form after the "Decision Reference" label, falling back to a bare
// DRN/DRS/DR token. Bare tokens are canonicalised to the hyphenated form so
// "DRN1234567" and "DRN 1234567" both yield "DRN-1234567". Returns "" when
// neither is present.
func DecisionReference(text string) string {
	if m := labelledRefPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := bareRefPattern.FindStringSubmatch(text); m != nil {
		return m[1] + "-" + m[2]
	}
	return ""
}

// OmbudsmanName extracts the signing ombudsman's name from the signature
// block, "" when not found.
func OmbudsmanName(text string) string {
	if m := ombudsmanNamePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Slug converts text to a lowercase hyphen-separated identifier safe for
// filenames.
func Slug(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = slugInvalid.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Metadata is the result of the regex fallback over a result row's raw
// text. All fields are optional; callers must not assume any of them is
// populated.
type Metadata struct {
	DecisionReference string
	DecisionDate      string
	BusinessName      string
	ProductSector     string
	Outcome           domain.Outcome
	OutcomeRaw        string
}

// MetadataFromText regex-extracts decision metadata from free text. The
// business-name and product-sector fields rely on the source's usual
// left-to-right field order (date, business, outcome, sector, reference);
// when that order does not hold they are silently left empty.
func MetadataFromText(text string) Metadata {
	var md Metadata
	md.Outcome = domain.OutcomeUnknown

	md.DecisionReference = DecisionReference(text)

	dateLoc := datePattern.FindStringIndex(text)
	if dateLoc != nil {
		md.DecisionDate = text[dateLoc[0]:dateLoc[1]]
	}

	outcomeLoc := outcomePhrasePattern.FindStringIndex(text)
	if outcomeLoc != nil {
		md.OutcomeRaw = text[outcomeLoc[0]:outcomeLoc[1]]
		md.Outcome = NormalizeOutcome(md.OutcomeRaw)
	}

	// Positional heuristic: the business name sits between the date and the
	// outcome phrase, the product/sector between the outcome and the
	// reference. Only applied when the pieces appear in that order.
	if dateLoc != nil && outcomeLoc != nil && outcomeLoc[0] > dateLoc[1] {
		md.BusinessName = NormalizeWhitespace(text[dateLoc[1]:outcomeLoc[0]])

		if md.DecisionReference != "" {
			refIdx := strings.Index(text[outcomeLoc[1]:], md.DecisionReference)
			if refIdx < 0 {
				// The reference may appear in its hyphen- or space-separated source form.
				if loc := bareRefPattern.FindStringIndex(text[outcomeLoc[1]:]); loc != nil {
					refIdx = loc[0]
				}
			}
			if refIdx >= 0 {
				md.ProductSector = NormalizeWhitespace(text[outcomeLoc[1] : outcomeLoc[1]+refIdx])
			}
		}
	}

	return md
}
