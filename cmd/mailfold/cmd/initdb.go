package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.InitSchema(ctx); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
		logger.Info("schema initialized")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}
