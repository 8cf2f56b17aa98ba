package services

import (
	"context"
	"fmt"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driving"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/extract"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// Default discovery bounds.
const (
	DefaultMaxPages   = 50
	DefaultMaxResults = 1000

	// stallLimit is how many consecutive pages may yield no new records
	// before discovery concludes the pagination control is a no-op.
	stallLimit = 2
)

// DiscoverOptions configures one discovery run.
type DiscoverOptions struct {
	// SearchURL is the decisions search page. Required.
	SearchURL string

	// Filters are passed through to the page's search form.
	Filters driven.SearchFilters

	// MaxPages caps pagination advances (default: 50).
	MaxPages int

	// MaxResults caps collected records (default: 1000).
	MaxResults int

	// Append merges this run's records into the existing index instead
	// of replacing it.
	Append bool
}

// DiscoverService walks the paginated search results and writes the
// discovery index.
type DiscoverService struct {
	browser driven.DecisionBrowser
	store   driven.StageStore
	opts    DiscoverOptions
}

// NewDiscoverService creates a discovery service.
func NewDiscoverService(browser driven.DecisionBrowser, store driven.StageStore, opts DiscoverOptions) *DiscoverService {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	return &DiscoverService{browser: browser, store: store, opts: opts}
}

// Stage returns the stage name.
func (s *DiscoverService) Stage() string { return driving.StageDiscover }

// Run drives the search page until a stop condition is met, then enriches
// and deduplicates the collected records and writes the index.
func (s *DiscoverService) Run(ctx context.Context) (driving.StageStatus, error) {
	status := driving.StageStatus{Stage: s.Stage()}

	if s.opts.SearchURL == "" {
		return status, fmt.Errorf("discover: %w: search URL not set", domain.ErrInvalidInput)
	}

	if err := s.browser.Navigate(ctx, s.opts.SearchURL); err != nil {
		return status, fmt.Errorf("discover: %w", err)
	}
	s.browser.DismissCookieBanner(ctx)
	s.browser.ApplyFilters(ctx, s.opts.Filters)

	if err := s.browser.WaitForResults(ctx); err != nil {
		return status, fmt.Errorf("discover: %w", err)
	}

	var collected []domain.DecisionRecord
	seen := make(map[string]struct{})
	stalled := 0

	for page := 1; page <= s.opts.MaxPages; page++ {
		rows, err := s.browser.ExtractRows(ctx)
		if err != nil {
			return status, fmt.Errorf("discover: page %d: %w", page, err)
		}

		added := 0
		for _, row := range rows {
			key := row.IdentityKey()
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			collected = append(collected, row)
			added++
		}
		logger.Info("Page %d: %d rows, %d new (total %d)", page, len(rows), added, len(collected))

		if len(collected) >= s.opts.MaxResults {
			logger.Info("Reached result cap (%d), stopping", s.opts.MaxResults)
			collected = collected[:s.opts.MaxResults]
			break
		}

		// Load-more style pagination reports success even when it adds
		// nothing; treat repeated empty batches as exhaustion.
		if added == 0 {
			stalled++
			if stalled >= stallLimit {
				logger.Info("No new results in %d pages, stopping", stalled)
				break
			}
		} else {
			stalled = 0
		}

		// Do not advance the live site past a page whose rows would never
		// be extracted.
		if page >= s.opts.MaxPages {
			logger.Debug("Page cap (%d) reached, stopping", s.opts.MaxPages)
			break
		}

		advanced, err := s.browser.NextPage(ctx)
		if err != nil {
			return status, fmt.Errorf("discover: advance page: %w", err)
		}
		if !advanced {
			logger.Debug("No pagination control found, stopping")
			break
		}
	}

	for i := range collected {
		enrichRecord(&collected[i])
	}
	collected = domain.DedupeRecords(collected)

	if err := s.store.WriteIndex(ctx, collected, s.opts.Append); err != nil {
		return status, fmt.Errorf("discover: write index: %w", err)
	}

	status.Processed = len(collected)
	logger.Info("Discovered %d decisions", len(collected))
	return status, nil
}

// enrichRecord fills gaps the DOM selectors left behind by rerunning the
// regex extraction over the row's raw text. Values the DOM did yield are
// never overwritten.
func enrichRecord(rec *domain.DecisionRecord) {
	if rec.RawText == "" {
		return
	}
	md := extract.MetadataFromText(rec.RawText)

	if rec.DecisionReference == "" {
		rec.DecisionReference = md.DecisionReference
	}
	if rec.DecisionDate == "" {
		rec.DecisionDate = md.DecisionDate
	}
	if rec.BusinessName == "" {
		rec.BusinessName = md.BusinessName
	}
	if rec.ProductSector == "" {
		rec.ProductSector = md.ProductSector
	}
	if (rec.Outcome == "" || rec.Outcome == domain.OutcomeUnknown) && md.Outcome != domain.OutcomeUnknown {
		rec.Outcome = md.Outcome
		rec.OutcomeRaw = md.OutcomeRaw
	}
	if rec.Outcome == "" {
		rec.Outcome = domain.OutcomeUnknown
	}
}
