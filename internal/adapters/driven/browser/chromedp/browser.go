// Package chromedp drives a headless Chrome session against the decisions
// search page. The page's markup is not contractually stable, so every
// interaction beyond initial navigation works through ranked lists of
// selector candidates and treats total failure as absence, not error.
package chromedp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	cdp "github.com/chromedp/chromedp"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/extract"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// Ensure Browser implements the interface.
var _ driven.DecisionBrowser = (*Browser)(nil)

// Default waits.
const (
	DefaultPageWait   = 2 * time.Second
	DefaultNavTimeout = 60 * time.Second

	// attemptTimeout bounds each best-effort selector attempt.
	attemptTimeout = 3 * time.Second
)

// Selector candidates, tried in order. These track the page variants the
// service has shipped; earlier entries are the current markup.
var (
	cookieButtonCandidates = []string{
		`#ccc-notify-accept`,
		`#onetrust-accept-btn-handler`,
		`button[data-testid="cookie-accept"]`,
		`.cookie-banner button`,
	}

	startDateCandidates = []string{
		`input[name="DateFrom"]`,
		`input[name="start_date"]`,
		`#date-from`,
	}

	endDateCandidates = []string{
		`input[name="DateTo"]`,
		`input[name="end_date"]`,
		`#date-to`,
	}

	queryCandidates = []string{
		`input[name="Keyword"]`,
		`input[type="search"]`,
		`#search-input`,
	}

	submitCandidates = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`.search-form button`,
	}

	resultsCandidates = []string{
		`a[href$=".pdf"]`,
		`.search-results`,
		`#results`,
	}

	// nextCandidates are XPath expressions: a literal "Next" link is
	// preferred over load-more style buttons.
	nextCandidates = []string{
		`//a[@rel="next"]`,
		`//a[contains(translate(normalize-space(.),"NEXT","next"),"next")]`,
		`//button[contains(translate(normalize-space(.),"LOADMRE","loadmre"),"load more")]`,
		`//button[contains(translate(normalize-space(.),"SHOWMRE","showmre"),"show more")]`,
	}
)

// pageCountPattern pulls "(12 pages)" style annotations out of row text.
var pageCountPattern = regexp.MustCompile(`(\d+)\s*page`)

// Config holds browser session configuration.
type Config struct {
	// Headless runs Chrome without a visible window (default in
	// production; tests and debugging set it false).
	Headless bool

	// PageWait is the settle delay after navigation and pagination
	// (default: 2s).
	PageWait time.Duration

	// NavTimeout bounds initial page loads (default: 60s).
	NavTimeout time.Duration
}

// Browser is a chromedp-backed DecisionBrowser.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	pageWait    time.Duration
	navTimeout  time.Duration
}

// New launches a Chrome session.
func New(cfg Config) (*Browser, error) {
	if cfg.PageWait == 0 {
		cfg.PageWait = DefaultPageWait
	}
	if cfg.NavTimeout == 0 {
		cfg.NavTimeout = DefaultNavTimeout
	}

	opts := append(cdp.DefaultExecAllocatorOptions[:],
		cdp.Flag("headless", cfg.Headless),
		cdp.Flag("disable-gpu", true),
		cdp.Flag("no-sandbox", true),
		cdp.WindowSize(1280, 1024),
	)

	allocCtx, allocCancel := cdp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := cdp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here
	// rather than on first navigation.
	if err := cdp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp: launch browser: %w", err)
	}

	return &Browser{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		pageWait:    cfg.PageWait,
		navTimeout:  cfg.NavTimeout,
	}, nil
}

// Navigate loads the search URL and waits for the page to settle.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := b.bound(ctx, b.navTimeout)
	defer cancel()

	if err := cdp.Run(runCtx,
		cdp.Navigate(url),
		cdp.Sleep(b.pageWait),
	); err != nil {
		return fmt.Errorf("chromedp: navigate %s: %w", url, err)
	}
	return nil
}

// DismissCookieBanner clicks the first matching consent button. Absence is
// expected on repeat visits and is not an error.
func (b *Browser) DismissCookieBanner(ctx context.Context) {
	if sel, ok := b.firstClickable(ctx, cookieButtonCandidates); ok {
		logger.Debug("dismissed cookie banner via %s", sel)
	}
}

// ApplyFilters fills and submits the search filters. Each field tries its
// candidates independently; a field with no matching input is skipped.
func (b *Browser) ApplyFilters(ctx context.Context, filters driven.SearchFilters) {
	filled := false
	if filters.StartDate != "" && b.fillFirst(ctx, startDateCandidates, filters.StartDate) {
		filled = true
	}
	if filters.EndDate != "" && b.fillFirst(ctx, endDateCandidates, filters.EndDate) {
		filled = true
	}
	if filters.Query != "" && b.fillFirst(ctx, queryCandidates, filters.Query) {
		filled = true
	}

	if !filled {
		return
	}

	if _, ok := b.firstClickable(ctx, submitCandidates); ok {
		runCtx, cancel := b.bound(ctx, b.navTimeout)
		defer cancel()
		_ = cdp.Run(runCtx, cdp.Sleep(b.pageWait))
	}
}

// WaitForResults blocks until a results container or PDF link is visible.
func (b *Browser) WaitForResults(ctx context.Context) error {
	var lastErr error
	for _, sel := range resultsCandidates {
		runCtx, cancel := b.bound(ctx, attemptTimeout)
		err := cdp.Run(runCtx, cdp.WaitVisible(sel, cdp.ByQuery))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("chromedp: no results appeared: %w", lastErr)
}

// rowData is the raw per-row extraction returned by the in-page script.
type rowData struct {
	PDFURL    string `json:"pdfUrl"`
	SourceURL string `json:"sourceUrl"`
	Reference string `json:"reference"`
	Date      string `json:"date"`
	Business  string `json:"business"`
	Outcome   string `json:"outcome"`
	Product   string `json:"product"`
	PageText  string `json:"pageText"`
	Snippet   string `json:"snippet"`
	RawText   string `json:"rawText"`
}

// extractScript walks every anchor linking to a .pdf, finds its result-row
// container and pulls each field through a list of selector fallbacks.
// All fields except the PDF URL are best-effort.
const extractScript = `(() => {
	const txt = (el) => el ? el.textContent.trim() : "";
	const pick = (root, sels) => {
		for (const s of sels) {
			const el = root.querySelector(s);
			if (el && el.textContent.trim()) return el.textContent.trim();
		}
		return "";
	};
	const rows = [];
	for (const a of document.querySelectorAll('a[href$=".pdf"]')) {
		const row = a.closest('li, tr, article, .search-result, .result, div') || a;
		const text = row.innerText || txt(row);
		rows.push({
			pdfUrl: a.href,
			sourceUrl: location.href,
			reference: pick(row, ['.reference', '.decision-reference', '[data-ref]']),
			date: pick(row, ['time', '.date', '.decision-date']),
			business: pick(row, ['.business-name', '.firm', 'h3', 'h4']),
			outcome: pick(row, ['.outcome', '.decision-outcome', '.result-outcome']),
			product: pick(row, ['.product', '.sector', '.category', '.tag']),
			pageText: pick(row, ['.page-count', '.pages']),
			snippet: pick(row, ['p', '.summary', '.description']),
			rawText: text,
		});
	}
	return JSON.stringify(rows);
})()`

// ExtractRows returns the currently visible result rows.
func (b *Browser) ExtractRows(ctx context.Context) ([]domain.DecisionRecord, error) {
	runCtx, cancel := b.bound(ctx, b.navTimeout)
	defer cancel()

	var raw string
	if err := cdp.Run(runCtx, cdp.Evaluate(extractScript, &raw)); err != nil {
		return nil, fmt.Errorf("chromedp: extract rows: %w", err)
	}

	var rows []rowData
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("chromedp: decode rows: %w", err)
	}

	now := time.Now().UTC()
	records := make([]domain.DecisionRecord, 0, len(rows))
	for _, row := range rows {
		rec := domain.DecisionRecord{
			PDFURL:        row.PDFURL,
			SourceURL:     row.SourceURL,
			DecisionDate:  row.Date,
			BusinessName:  row.Business,
			ProductSector: row.Product,
			Snippet:       row.Snippet,
			RawText:       extract.NormalizeWhitespace(row.RawText),
			ScrapedAt:     now,
		}

		// Row references come in "DRN-1234567" and "DRN 1234567" forms.
		if row.Reference != "" {
			rec.DecisionReference = extract.DecisionReference(row.Reference)
			if rec.DecisionReference == "" {
				rec.DecisionReference = strings.TrimSpace(row.Reference)
			}
		}

		if row.Outcome != "" {
			rec.OutcomeRaw = row.Outcome
		}
		rec.Outcome = extract.NormalizeOutcome(row.Outcome)

		if m := pageCountPattern.FindStringSubmatch(row.PageText); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				rec.PageCount = n
			}
		}

		records = append(records, rec)
	}
	return records, nil
}

// NextPage advances pagination. It returns false when no candidate control
// was found or clickable. A successful advance is followed by the settle
// delay.
func (b *Browser) NextPage(ctx context.Context) (bool, error) {
	for _, xpath := range nextCandidates {
		runCtx, cancel := b.bound(ctx, attemptTimeout)
		err := cdp.Run(runCtx, cdp.Click(xpath, cdp.BySearch))
		cancel()
		if err != nil {
			continue
		}

		settleCtx, settleCancel := b.bound(ctx, b.navTimeout)
		_ = cdp.Run(settleCtx, cdp.Sleep(b.pageWait))
		settleCancel()
		logger.Debug("advanced pagination via %s", xpath)
		return true, nil
	}
	return false, nil
}

// Close shuts the browser down. Safe to call from a defer.
func (b *Browser) Close() error {
	b.cancel()
	b.allocCancel()
	return nil
}

// bound derives a chromedp-run context that honours both the caller's
// cancellation and a timeout.
func (b *Browser) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel1 := context.WithTimeout(b.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel1)
	return runCtx, func() {
		stop()
		cancel1()
	}
}

// fillFirst sends keys to the first matching input.
func (b *Browser) fillFirst(ctx context.Context, candidates []string, value string) bool {
	for _, sel := range candidates {
		runCtx, cancel := b.bound(ctx, attemptTimeout)
		err := cdp.Run(runCtx,
			cdp.WaitVisible(sel, cdp.ByQuery),
			cdp.Clear(sel, cdp.ByQuery),
			cdp.SendKeys(sel, value, cdp.ByQuery),
		)
		cancel()
		if err == nil {
			logger.Debug("filled %s", sel)
			return true
		}
	}
	return false
}

// firstClickable clicks the first matching element and reports which
// selector worked.
func (b *Browser) firstClickable(ctx context.Context, candidates []string) (string, bool) {
	for _, sel := range candidates {
		runCtx, cancel := b.bound(ctx, attemptTimeout)
		err := cdp.Run(runCtx, cdp.Click(sel, cdp.ByQuery))
		cancel()
		if err == nil {
			return sel, true
		}
	}
	return "", false
}
