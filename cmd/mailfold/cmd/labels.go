package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/store"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List labels with unread counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		labels, err := store.Labels(ctx, s.DB())
		if err != nil {
			return fmt.Errorf("list labels: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LABEL\tUNREAD")
		for _, l := range labels {
			fmt.Fprintf(w, "%s\t%d\n", l.Name, l.Unread)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}
