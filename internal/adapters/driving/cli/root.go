// Package cli implements the fospipe command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "fospipe",
	Short: "ETL pipeline for Financial Ombudsman Service decisions",
	Long: `fospipe collects published Financial Ombudsman Service decisions and
turns them into an analysable dataset.

The pipeline has five stages: discover scrapes the decisions search page,
parse downloads and extracts each decision PDF, enrich runs a model over
the text, vectorize embeds the reasoning, and ingest upserts everything
into a relational database. Each stage is resumable and idempotent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default fospipe.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
