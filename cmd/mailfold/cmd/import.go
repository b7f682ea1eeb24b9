package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/ingest"
)

var importLabels []string

var importCmd = &cobra.Command{
	Use:   "import <mbox-file>",
	Short: "Import messages from an mbox file",
	Long: `Import reads an mbox file and stores every message, threading replies
onto existing conversations by their References and In-Reply-To headers.
Messages already present (by Message-ID) are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open mbox: %w", err)
		}
		defer f.Close()

		im := ingest.New(s.DB(), cfg.SearchLangs, importLabels, logger)
		stats, err := im.Mbox(ctx, f)
		if err != nil {
			return err
		}

		logger.Info("import finished",
			"imported", stats.Imported,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringSliceVar(&importLabels, "label", nil, "labels to apply to imported messages (repeatable)")
	rootCmd.AddCommand(importCmd)
}
