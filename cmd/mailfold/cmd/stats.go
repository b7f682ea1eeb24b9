package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Printf("Messages:  %d\n", stats.MessageCount)
		fmt.Printf("Threads:   %d\n", stats.ThreadCount)
		fmt.Printf("Labels:    %d\n", stats.LabelCount)
		fmt.Printf("KV keys:   %d\n", stats.StorageCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
