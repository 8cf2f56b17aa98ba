package services

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driving"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/extract"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// Fetcher issues one retried GET. Satisfied by fetch.Client.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// ParseOptions configures one parse run.
type ParseOptions struct {
	// Limit caps processed records, 0 means all.
	Limit int

	// Force reprocesses records whose parsed document already exists.
	Force bool

	// DownloadDelay is the politeness delay between PDF downloads.
	DownloadDelay time.Duration

	// StartDate and EndDate bound the records processed by their scraped
	// decision date. Records whose date cannot be parsed pass the filter;
	// the scraped dates are free text and filtering is best-effort.
	StartDate string
	EndDate   string
}

// ParseService downloads each indexed decision's PDF and extracts its text
// and sections.
type ParseService struct {
	store     driven.StageStore
	fetcher   Fetcher
	extractor driven.PDFExtractor
	limiter   *rate.Limiter
	opts      ParseOptions
}

// NewParseService creates a parse service.
func NewParseService(store driven.StageStore, fetcher Fetcher, extractor driven.PDFExtractor, opts ParseOptions) *ParseService {
	return &ParseService{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		limiter:   newLimiter(opts.DownloadDelay),
		opts:      opts,
	}
}

// Stage returns the stage name.
func (s *ParseService) Stage() string { return driving.StageParse }

// Run processes every index record that has no parsed document yet. Each
// record fails independently; only an unreadable index aborts the stage.
func (s *ParseService) Run(ctx context.Context) (driving.StageStatus, error) {
	status := driving.StageStatus{Stage: s.Stage()}

	records, err := s.store.ReadIndex(ctx)
	if err != nil {
		return status, fmt.Errorf("parse: read index: %w", err)
	}
	if len(records) == 0 {
		logger.Warn("Index is empty; run discover first")
		return status, nil
	}

	start := parseDecisionDate(s.opts.StartDate)
	end := parseDecisionDate(s.opts.EndDate)

	for _, rec := range records {
		if s.opts.Limit > 0 && status.Processed >= s.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return status, err
		}

		if !withinDateBounds(rec.DecisionDate, start, end) {
			status.Skipped++
			continue
		}

		name := docName(&rec)
		if !s.opts.Force && s.store.HasDoc(driven.StageParsed, name) {
			status.Skipped++
			continue
		}

		if err := s.parseOne(ctx, rec); err != nil {
			status.Failed++
			logger.Error("Parse %s: %v", rec.IdentityKey(), err)
			continue
		}
		status.Processed++
	}

	logger.Info("Parsed %d decisions (%d skipped, %d failed)", status.Processed, status.Skipped, status.Failed)
	return status, nil
}

func (s *ParseService) parseOne(ctx context.Context, rec domain.DecisionRecord) error {
	// The fallback name is fixed before any field is refined, so the
	// skip check in Run and the write below agree for reference-less
	// records.
	name := docName(&rec)

	pdfURL, err := s.resolvePDFURL(ctx, &rec)
	if err != nil {
		return err
	}

	filename := pdfFileName(&rec, pdfURL)

	var data []byte
	if s.store.HasPDF(filename) {
		data, err = s.store.ReadPDF(filename)
		if err != nil {
			return fmt.Errorf("read cached pdf: %w", err)
		}
		logger.Debug("Using cached PDF %s", filename)
	} else {
		if err := waitLimiter(ctx, s.limiter); err != nil {
			return err
		}
		data, err = s.fetcher.Get(ctx, pdfURL)
		if err != nil {
			return fmt.Errorf("download pdf: %w", err)
		}
	}

	relPath, err := s.store.WritePDF(filename, data)
	if err != nil {
		return fmt.Errorf("cache pdf: %w", err)
	}

	sum := sha256.Sum256(data)

	text, err := s.extractor.ExtractText(ctx, s.store.AbsPDFPath(filename))
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	// The document text is authoritative for the reference; a row scraped
	// without one gets it here, and the output name follows it.
	if ref := extract.DecisionReference(text); ref != "" {
		rec.DecisionReference = ref
		name = extract.Slug(ref)
	}
	if rec.Outcome == "" || rec.Outcome == domain.OutcomeUnknown {
		md := extract.MetadataFromText(text)
		if md.Outcome != domain.OutcomeUnknown {
			rec.Outcome = md.Outcome
			rec.OutcomeRaw = md.OutcomeRaw
		}
	}

	rec.PDFURL = pdfURL
	doc := domain.ParsedDecision{
		DecisionRecord: rec,
		PDFPath:        relPath,
		PDFSHA256:      hex.EncodeToString(sum[:]),
		FullText:       text,
		Sections:       extract.SplitSections(text),
		OmbudsmanName:  extract.OmbudsmanName(text),
		ParsedAt:       time.Now().UTC(),
	}

	return s.store.WriteParsed(name, &doc)
}

// resolvePDFURL returns the record's PDF link, fetching the source page and
// walking its anchors when the row carried none.
func (s *ParseService) resolvePDFURL(ctx context.Context, rec *domain.DecisionRecord) (string, error) {
	if rec.PDFURL != "" {
		return rec.PDFURL, nil
	}
	if rec.SourceURL == "" {
		return "", fmt.Errorf("%w: record has no PDF or source URL", domain.ErrInvalidInput)
	}

	page, err := s.fetcher.Get(ctx, rec.SourceURL)
	if err != nil {
		return "", fmt.Errorf("fetch source page: %w", err)
	}

	link := firstPDFLink(page)
	if link == "" {
		return "", fmt.Errorf("%w: no PDF link on %s", domain.ErrNotFound, rec.SourceURL)
	}

	base, err := url.Parse(rec.SourceURL)
	if err != nil {
		return "", fmt.Errorf("parse source URL: %w", err)
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse PDF link: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// firstPDFLink walks the parsed HTML tree and returns the first anchor href
// ending in ".pdf", or "".
func firstPDFLink(page []byte) string {
	node, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return ""
	}

	var walk func(*html.Node) string
	walk = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && strings.HasSuffix(strings.ToLower(attr.Val), ".pdf") {
					return attr.Val
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if href := walk(c); href != "" {
				return href
			}
		}
		return ""
	}
	return walk(node)
}

// dateLayouts are the formats a scraped or flag-supplied decision date may
// carry.
var dateLayouts = []string{"2006-01-02", "2 January 2006", "02 January 2006"}

// parseDecisionDate parses a free-text date, zero time when it does not
// match any known layout.
func parseDecisionDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// withinDateBounds reports whether a record's scraped date falls inside the
// configured bounds. Unset bounds and unparseable record dates both pass.
func withinDateBounds(recordDate string, start, end time.Time) bool {
	if start.IsZero() && end.IsZero() {
		return true
	}
	d := parseDecisionDate(recordDate)
	if d.IsZero() {
		return true
	}
	if !start.IsZero() && d.Before(start) {
		return false
	}
	if !end.IsZero() && d.After(end) {
		return false
	}
	return true
}

// docName is the stage-document name for a record: the slug of its
// reference when known, otherwise the PDF cache name's base.
func docName(rec *domain.DecisionRecord) string {
	if rec.DecisionReference != "" {
		return extract.Slug(rec.DecisionReference)
	}
	return strings.TrimSuffix(pdfFileName(rec, rec.IdentityKey()), ".pdf")
}

// pdfFileName derives the cache filename for a decision PDF: a slug of the
// best available label plus the first 8 hex chars of the URL's MD5, so the
// same URL always maps to the same file.
func pdfFileName(rec *domain.DecisionRecord, pdfURL string) string {
	label := rec.DecisionReference
	if label == "" {
		label = rec.BusinessName
	}
	slug := extract.Slug(label)
	if slug == "" {
		slug = "decision"
	}

	sum := md5.Sum([]byte(pdfURL))
	return fmt.Sprintf("%s-%s.pdf", slug, hex.EncodeToString(sum[:])[:8])
}
