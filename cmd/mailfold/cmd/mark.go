package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/store"
)

var (
	markAdd    []string
	markRemove []string
	markSet    []string
	markOld    []string
	markThread bool
	markLast   string
)

var markCmd = &cobra.Command{
	Use:   "mark <id>...",
	Short: "Add, remove or replace labels on messages",
	Long: `Apply a label change to the given message ids.

Exactly one of --add, --remove or --set must be used. --set replaces the
labels given via --old and requires it. With --thread the change expands to
every member of the messages' threads created no later than --last.`,
	Args: cobra.MinimumNArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var ids []int64
		for _, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid message id %q: %w", a, err)
			}
			ids = append(ids, id)
		}

		req := store.MarkRequest{IDs: ids, Thread: markThread}
		used := 0
		if len(markAdd) > 0 {
			req.Action, req.Labels = store.MarkAdd, markAdd
			used++
		}
		if len(markRemove) > 0 {
			req.Action, req.Labels = store.MarkRemove, markRemove
			used++
		}
		if markSet != nil {
			req.Action, req.Labels, req.Old = store.MarkSet, markSet, markOld
			used++
		}
		if used != 1 {
			return fmt.Errorf("exactly one of --add, --remove or --set is required")
		}

		if markLast != "" {
			last, err := time.Parse(time.RFC3339, markLast)
			if err != nil {
				return fmt.Errorf("parse --last: %w", err)
			}
			req.Last = last
		} else if markThread {
			req.Last = time.Now()
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := store.Mark(ctx, s.DB(), req); err != nil {
			return fmt.Errorf("mark: %w", err)
		}
		logger.Info("labels updated", "ids", len(ids), "action", string(req.Action))
		return nil
	},
}

func init() {
	markCmd.Flags().StringSliceVar(&markAdd, "add", nil, "labels to add")
	markCmd.Flags().StringSliceVar(&markRemove, "remove", nil, "labels to remove")
	markCmd.Flags().StringSliceVar(&markSet, "set", nil, "labels to set (requires --old)")
	markCmd.Flags().StringSliceVar(&markOld, "old", nil, "labels being replaced by --set")
	markCmd.Flags().BoolVar(&markThread, "thread", false, "expand ids to whole threads")
	markCmd.Flags().StringVar(&markLast, "last", "", "thread expansion bound on created (RFC 3339)")
	rootCmd.AddCommand(markCmd)
}
