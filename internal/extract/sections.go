package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
)

// maxHeadingLineLen is the cutoff below which the first line of a section is
// treated as the heading restated and stripped from the content.
const maxHeadingLineLen = 140

// sectionHeadings lists the heading phrases that open each canonical
// section, in the wording the ombudsman service has used over the years.
// Matching is case-insensitive; the phrase must be followed by a newline,
// carriage return or colon so mid-sentence mentions do not count.
var sectionHeadings = map[string][]string{
	domain.SectionComplaint: {
		"the complaint",
		"complaint",
		"what happened",
	},
	domain.SectionFirmResponse: {
		"what the business said",
		"the business's response",
		"what the firm said",
		"our investigator's view",
	},
	domain.SectionOmbudsmanReasoning: {
		"what i've decided - and why",
		"what i have decided - and why",
		"my findings",
		"findings",
	},
	domain.SectionFinalDecision: {
		"my final decision",
		"final decision",
	},
}

// sectionPatterns holds one compiled pattern per heading phrase, built once.
var sectionPatterns = compileSectionPatterns()

type headingPattern struct {
	key string
	re  *regexp.Regexp
}

func compileSectionPatterns() []headingPattern {
	var patterns []headingPattern
	for key, phrases := range sectionHeadings {
		for _, phrase := range phrases {
			re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(phrase) + `\s*(\r?\n|:)`)
			patterns = append(patterns, headingPattern{key: key, re: re})
		}
	}
	return patterns
}

// headingMatch is one located heading occurrence.
type headingMatch struct {
	key   string
	start int
}

// SplitSections locates the four canonical section headings in text and
// returns each section's content, from its first matching heading to the
// start of the next heading (or end of document). Only the first match per
// key is kept. A text with no recognised headings yields an empty map.
func SplitSections(text string) map[string]string {
	var matches []headingMatch
	seen := make(map[string]bool)

	for _, p := range sectionPatterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if seen[p.key] {
			// A later phrase for an already-located key only wins if it
			// appears earlier in the document.
			for i := range matches {
				if matches[i].key == p.key && loc[0] < matches[i].start {
					matches[i].start = loc[0]
				}
			}
			continue
		}
		seen[p.key] = true
		matches = append(matches, headingMatch{key: p.key, start: loc[0]})
	}

	if len(matches) == 0 {
		return map[string]string{}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	sections := make(map[string]string, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].start
		}
		sections[m.key] = stripHeadingLine(text[m.start:end])
	}
	return sections
}

// stripHeadingLine removes a short first line from a section body, treating
// it as the heading restated. Longer first lines are real content and kept.
func stripHeadingLine(section string) string {
	section = strings.TrimSpace(section)
	if idx := strings.IndexByte(section, '\n'); idx >= 0 && idx < maxHeadingLineLen {
		return strings.TrimSpace(section[idx+1:])
	}
	return section
}
