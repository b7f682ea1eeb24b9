package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/query"
)

var (
	threadFull bool
	threadJSON bool
)

var threadCmd = &cobra.Command{
	Use:   "thread <id>",
	Short: "Show one conversation's messages",
	Long: `Show the messages of one conversation in id order.

Long threads are cut down to the first message, the latest few and any
unread or pinned members; pass --full for every message.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		thrid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid thread id %q: %w", args[0], err)
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		engine := query.New(s.DB(), cfg.SearchLangs)
		view, err := engine.Thread(ctx, thrid, threadFull, cfg.ThreadFew)
		if err != nil {
			return fmt.Errorf("load thread: %w", err)
		}
		if view == nil {
			return fmt.Errorf("thread %d not found", thrid)
		}

		if threadJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}

		fmt.Printf("%s (%d message(s), labels: %s)\n\n",
			view.Subject, view.Count, strings.Join(view.Labels, ","))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tFROM\tSUBJECT\tPREVIEW")
		for _, m := range view.Messages {
			from := ""
			if len(m.From) > 0 {
				from = m.From[0]
			}
			subj := ""
			if m.SubjectChanged {
				subj = m.Subject
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				m.ID, m.Time.Format("2006-01-02 15:04"), from, subj, m.Preview)
		}
		w.Flush()

		if view.Hidden > 0 {
			fmt.Printf("\n%d message(s) hidden; rerun with --full\n", view.Hidden)
		}
		return nil
	},
}

func init() {
	threadCmd.Flags().BoolVar(&threadFull, "full", false, "show every message")
	threadCmd.Flags().BoolVar(&threadJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(threadCmd)
}
