package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/ai"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/browser/chromedp"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/pdftext"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/storage/fsstore"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/storage/postgres"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/storage/sqlite"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/config"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driving"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/services"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/fetch"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// Built-in defaults, overridable by config file and flags in that order.
const (
	defaultSearchURL = "https://www.financial-ombudsman.org.uk/decisions-case-studies/ombudsman-decisions"
	defaultDataDir   = "data/fos-decisions"

	defaultEnrichProvider    = "openai"
	defaultEnrichModel       = "gpt-4o-mini"
	defaultEmbeddingProvider = "openai"
	defaultEmbeddingModel    = "text-embedding-3-small"

	defaultDownloadDelay = 1 * time.Second
	defaultEnrichDelay   = 1 * time.Second
	defaultVectorDelay   = 500 * time.Millisecond
	defaultPageWait      = 2 * time.Second
)

var (
	runStages []string

	runDataDir   string
	runIndexPath string
	runPDFDir    string

	runSearchURL  string
	runStartDate  string
	runEndDate    string
	runQuery      string
	runMaxPages   int
	runMaxResults int
	runHeadless   bool
	runAppend     bool

	runForce bool
	runCount int

	runDownloadDelay time.Duration
	runEnrichDelay   time.Duration
	runVectorDelay   time.Duration
	runPageWait      time.Duration

	runEnrichProvider    string
	runEnrichModel       string
	runEmbeddingProvider string
	runEmbeddingModel    string

	runDatabaseURL string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run pipeline stages",
	Long: `Runs the requested pipeline stages in order. With no --stage flag every
stage runs. Stages skip work that already exists on disk, so interrupted
runs resume where they left off; use --force to reprocess.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringSliceVar(&runStages, "stage", nil, "stages to run (discover,parse,enrich,vectorize,ingest or all); default all")

	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "dataset root directory")
	runCmd.Flags().StringVar(&runIndexPath, "index", "", "discovery index path (default <data-dir>/decisions-index.jsonl)")
	runCmd.Flags().StringVar(&runPDFDir, "pdf-dir", "", "PDF cache directory (default <data-dir>/pdfs)")

	runCmd.Flags().StringVar(&runSearchURL, "search-url", "", "decisions search page URL")
	runCmd.Flags().StringVar(&runStartDate, "start-date", "", "filter: earliest decision date")
	runCmd.Flags().StringVar(&runEndDate, "end-date", "", "filter: latest decision date")
	runCmd.Flags().StringVar(&runQuery, "query", "", "filter: free-text search term")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "discovery page cap")
	runCmd.Flags().IntVar(&runMaxResults, "max-results", 0, "discovery result cap")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "run the browser headless")
	runCmd.Flags().BoolVar(&runAppend, "append", false, "merge discovered records into the existing index")

	runCmd.Flags().IntVarP(&runCount, "limit", "n", 0, "per-stage record cap, 0 means all")
	runCmd.Flags().BoolVar(&runForce, "force", false, "reprocess records whose output already exists")

	runCmd.Flags().DurationVar(&runDownloadDelay, "download-delay", 0, "delay between PDF downloads")
	runCmd.Flags().DurationVar(&runEnrichDelay, "enrich-delay", 0, "delay between model calls")
	runCmd.Flags().DurationVar(&runVectorDelay, "vector-delay", 0, "delay between embedding calls")
	runCmd.Flags().DurationVar(&runPageWait, "page-wait", 0, "settle delay after page navigation")

	runCmd.Flags().StringVar(&runEnrichProvider, "enrich-provider", "", "chat provider: openai or openrouter")
	runCmd.Flags().StringVar(&runEnrichModel, "enrich-model", "", "chat model name")
	runCmd.Flags().StringVar(&runEmbeddingProvider, "embedding-provider", "", "embedding provider: openai or openrouter")
	runCmd.Flags().StringVar(&runEmbeddingModel, "embedding-model", "", "embedding model name")

	runCmd.Flags().StringVar(&runDatabaseURL, "database-url", "", "ingest target connection string (default $DATABASE_URL)")

	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	stages := expandStages(runStages)
	requested := make(map[string]bool, len(stages))
	for _, s := range stages {
		requested[s] = true
	}

	dataDir := firstOf(runDataDir, cfg.DataDir, defaultDataDir)
	store, err := fsstore.NewStore(dataDir, runIndexPath, runPDFDir)
	if err != nil {
		return err
	}

	var closers []func() error
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("Cleanup: %v", err)
			}
		}
	}()

	var runners []services.StageRunner

	if requested[driving.StageDiscover] {
		browser, err := chromedp.New(chromedp.Config{
			Headless: runHeadless,
			PageWait: firstDelay(runPageWait, cfg.PageWaitMs, defaultPageWait),
		})
		if err != nil {
			return err
		}
		closers = append(closers, browser.Close)

		runners = append(runners, services.NewDiscoverService(browser, store, services.DiscoverOptions{
			SearchURL: firstOf(runSearchURL, cfg.SearchURL, defaultSearchURL),
			Filters: driven.SearchFilters{
				StartDate: runStartDate,
				EndDate:   runEndDate,
				Query:     runQuery,
			},
			MaxPages:   runMaxPages,
			MaxResults: runMaxResults,
			Append:     runAppend,
		}))
	}

	if requested[driving.StageParse] {
		client := fetch.NewClient(fetch.Config{})
		runners = append(runners, services.NewParseService(store, client, pdftext.New(), services.ParseOptions{
			Limit:         runCount,
			Force:         runForce,
			DownloadDelay: firstDelay(runDownloadDelay, cfg.DownloadDelayMs, defaultDownloadDelay),
			StartDate:     runStartDate,
			EndDate:       runEndDate,
		}))
	}

	if requested[driving.StageEnrich] {
		provider := firstOf(runEnrichProvider, cfg.EnrichProvider, defaultEnrichProvider)
		llm, err := ai.CreateLLMService(ai.Settings{
			Provider: provider,
			APIKey:   providerKey(provider),
			Model:    firstOf(runEnrichModel, cfg.EnrichModel, defaultEnrichModel),
			Referer:  config.AppURL(),
		})
		if err != nil {
			return err
		}
		closers = append(closers, llm.Close)

		runners = append(runners, services.NewEnrichService(store, llm, services.EnrichOptions{
			Limit: runCount,
			Force: runForce,
			Delay: firstDelay(runEnrichDelay, cfg.EnrichDelayMs, defaultEnrichDelay),
		}))
	}

	if requested[driving.StageVectorize] {
		provider := firstOf(runEmbeddingProvider, cfg.EmbeddingProvider, defaultEmbeddingProvider)
		embedding, err := ai.CreateEmbeddingService(ai.Settings{
			Provider: provider,
			APIKey:   providerKey(provider),
			Model:    firstOf(runEmbeddingModel, cfg.EmbeddingModel, defaultEmbeddingModel),
			Referer:  config.AppURL(),
		})
		if err != nil {
			return err
		}
		closers = append(closers, embedding.Close)

		runners = append(runners, services.NewVectorizeService(store, embedding, services.VectorizeOptions{
			Limit: runCount,
			Force: runForce,
			Delay: firstDelay(runVectorDelay, cfg.VectorDelayMs, defaultVectorDelay),
		}))
	}

	if requested[driving.StageIngest] {
		writer, err := newDecisionWriter(cmd.Context(), firstOf(runDatabaseURL, config.DatabaseURL(), ""))
		if err != nil {
			return err
		}
		closers = append(closers, writer.Close)

		runners = append(runners, services.NewIngestService(store, writer, services.IngestOptions{
			Limit: runCount,
		}))
	}

	pipeline := services.NewPipeline(runners...)
	statuses, runErr := pipeline.Run(cmd.Context(), stages)

	printStatuses(cmd, statuses)
	return runErr
}

// expandStages resolves the --stage flag: an empty list or an "all" token
// anywhere in it means every stage.
func expandStages(stages []string) []string {
	if len(stages) == 0 {
		return driving.AllStages
	}
	for _, s := range stages {
		if s == "all" {
			return driving.AllStages
		}
	}
	return stages
}

// newDecisionWriter selects the ingest target from the connection string:
// postgres URLs get the pgvector-backed store, anything that looks like a
// file path gets SQLite.
func newDecisionWriter(ctx context.Context, connString string) (driven.DecisionWriter, error) {
	switch {
	case connString == "":
		return nil, fmt.Errorf("%w: set DATABASE_URL or --database-url", domain.ErrNoDatabase)

	case strings.HasPrefix(connString, "postgres://") || strings.HasPrefix(connString, "postgresql://"):
		return postgres.NewStore(ctx, connString)

	case strings.HasPrefix(connString, "sqlite://"):
		return sqlite.NewStore(strings.TrimPrefix(connString, "sqlite://"))

	case strings.HasSuffix(connString, ".db") || strings.HasSuffix(connString, ".sqlite"):
		return sqlite.NewStore(connString)

	default:
		return nil, fmt.Errorf("%w: unrecognised connection string", domain.ErrInvalidInput)
	}
}

func printStatuses(cmd *cobra.Command, statuses []driving.StageStatus) {
	if len(statuses) == 0 {
		return
	}
	cmd.Println()
	cmd.Printf("%-12s %10s %10s %10s\n", "STAGE", "PROCESSED", "SKIPPED", "FAILED")
	for _, s := range statuses {
		cmd.Printf("%-12s %10d %10d %10d\n", s.Stage, s.Processed, s.Skipped, s.Failed)
	}
}

// firstOf returns the first non-empty value.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// firstDelay resolves a politeness delay: flag, then config (milliseconds),
// then the built-in default.
func firstDelay(flag time.Duration, configMs int, def time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	if configMs > 0 {
		return time.Duration(configMs) * time.Millisecond
	}
	return def
}

// providerKey returns the API key for a provider from the environment.
func providerKey(provider string) string {
	if provider == ai.ProviderOpenRouter {
		return config.OpenRouterKey()
	}
	return config.OpenAIKey()
}
