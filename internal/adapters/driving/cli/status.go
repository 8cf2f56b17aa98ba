package cli

import (
	"github.com/spf13/cobra"

	"github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/storage/fsstore"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/config"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

var statusDataDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset progress",
	Long:  `Shows how many decisions each pipeline stage has produced so far.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDataDir, "data-dir", "", "dataset root directory")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dataDir := firstOf(statusDataDir, cfg.DataDir, defaultDataDir)
	store, err := fsstore.NewStore(dataDir, "", "")
	if err != nil {
		return err
	}

	index, err := store.ReadIndex(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("Dataset: %s\n\n", dataDir)
	cmd.Printf("%-12s %7d\n", "discovered", len(index))

	for _, stage := range []string{driven.StageParsed, driven.StageEnriched, driven.StageVectorized} {
		names, err := store.ListDocs(stage)
		if err != nil {
			return err
		}
		cmd.Printf("%-12s %7d\n", stage, len(names))
	}
	return nil
}
