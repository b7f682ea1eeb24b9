package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailfold/mailfold/internal/query"
	"github.com/mailfold/mailfold/internal/search"
)

var (
	searchPage int
	searchLast string
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search conversations",
	Long: `Search conversations using the mailfold query syntax.

Supported filters (name:value, value may be double-quoted):
  in:      label, comma-separated list (in:\Inbox or in:"Work Stuff,Travel")
  subj:    subject substring
  from:    sender address
  to:      recipient address (to or cc)
  email:   any address (to, cc or from)
  msgid:   exact message id
  ref:     reference id

Remaining words are matched against the full-text index and rank the
results by relevance. Without any label filter the search covers \All.

Examples:
  mailfold search in:\Inbox
  mailfold search 'from:alice@example.com quarterly report'
  mailfold search 'in:"Work Stuff" subj:Report'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		q := search.Parse(strings.Join(args, " "))

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var last time.Time
		if searchLast != "" {
			last, err = time.Parse(time.RFC3339, searchLast)
			if err != nil {
				return fmt.Errorf("parse --last: %w", err)
			}
		}
		page := query.NewPage(searchPage, cfg.PerPage, last)

		engine := query.New(s.DB(), cfg.SearchLangs)
		res, err := engine.Threads(ctx, q, page)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTHREAD\tCOUNT\tDATE\tFROM\tSUBJECT\tLABELS")
		for _, t := range res.Threads {
			from := ""
			if len(t.From) > 0 {
				from = t.From[0]
			}
			count := ""
			if t.DisplayCount > 0 {
				count = fmt.Sprintf("%d", t.DisplayCount)
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Thrid, count, t.Time.Format("2006-01-02"),
				from, t.Subject, strings.Join(t.Labels, ","))
		}
		w.Flush()

		fmt.Printf("\n%d thread(s) total", res.Total)
		if res.HasMore {
			fmt.Printf("; more with --page %d --last %s",
				res.Next.Number, res.Next.Last.Format(time.RFC3339))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "page number")
	searchCmd.Flags().StringVar(&searchLast, "last", "", "cursor: creation time of the last seen item (RFC 3339)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(searchCmd)
}
