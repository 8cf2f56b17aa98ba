package driven

import (
	"context"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
)

// SearchFilters are the discovery filters applied to the search page.
// Empty fields are skipped.
type SearchFilters struct {
	// StartDate and EndDate bound the decision date range (free-text,
	// passed through to the page's date inputs).
	StartDate string
	EndDate   string

	// Query is the free-text search term.
	Query string
}

// DecisionBrowser drives a browser session against the decisions search
// page. The page's markup is not contractually stable, so every method
// except Navigate and Close is best-effort: implementations try a ranked
// list of selectors and report absence rather than failing.
type DecisionBrowser interface {
	// Navigate loads the search URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// DismissCookieBanner clicks the cookie-consent button if one is
	// found. Absence is not an error.
	DismissCookieBanner(ctx context.Context)

	// ApplyFilters fills and submits the search filters using the first
	// matching selector candidate per field. Unmatched fields are
	// silently skipped.
	ApplyFilters(ctx context.Context, filters SearchFilters)

	// WaitForResults blocks until result rows are visible or the wait
	// times out.
	WaitForResults(ctx context.Context) error

	// ExtractRows returns the currently visible result rows: one record
	// per anchor linking to a .pdf, with per-field selector fallbacks.
	ExtractRows(ctx context.Context) ([]domain.DecisionRecord, error)

	// NextPage advances pagination, preferring a literal "Next" link over
	// load-more buttons. It returns false when no advanceable control was
	// found.
	NextPage(ctx context.Context) (bool, error)

	// Close shuts the browser down. Safe to call from a defer regardless
	// of session state.
	Close() error
}
