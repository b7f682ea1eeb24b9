package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mailfold/mailfold/internal/search"
	"github.com/mailfold/mailfold/internal/store"
)

// Compiled is a search query lowered to one parameterized SELECT over
// emails, yielding the matching message ids (plus a rank projection when
// free text was present).
type Compiled struct {
	SQL    string   // SELECT id [, rank] FROM emails [WHERE ...]
	Args   []any    // bound parameters, never interpolated values
	Labels []string // normalized label scope actually applied
	Ranked bool     // true when a relevance projection is present
}

// Compile converts a parsed query into predicates against the message
// store. Every filter produces exactly one parameterized predicate; all
// predicates are conjoined. langs configures the full-text languages; page,
// when non-nil with a cursor time, bounds the walk to rows created no later
// than the cursor.
func Compile(q *search.Query, langs []string, page *Page) *Compiled {
	p := &store.Params{}
	var where []string

	for _, v := range q.Subjects {
		// Case-preserving substring match.
		where = append(where, fmt.Sprintf("subj LIKE %s", p.Add("%"+v+"%")))
	}
	for _, v := range q.From {
		// The %<v>% wrap matches the bracketed form of stored addresses.
		where = append(where, fmt.Sprintf("array_to_string(fr, ',') LIKE %s", p.Add("%<"+v+">%")))
	}
	for _, v := range q.To {
		where = append(where, fmt.Sprintf(`array_to_string("to" || cc, ',') LIKE %s`, p.Add("%<"+v+">%")))
	}
	for _, v := range q.Either {
		where = append(where, fmt.Sprintf(`array_to_string("to" || cc || fr, ',') LIKE %s`, p.Add("%<"+v+">%")))
	}
	for _, v := range q.MsgIDs {
		where = append(where, fmt.Sprintf("msgid = %s", p.Add(v)))
	}
	for _, v := range q.Refs {
		where = append(where, fmt.Sprintf("%s = ANY(refs)", p.Add(v)))
	}

	columns := "id"
	ranked := false
	if q.Text != "" {
		tsq := tsQuerySQL(q.Text, langs, p)
		where = append(where, fmt.Sprintf("search @@ (%s)", tsq))
		columns = fmt.Sprintf("id, ts_rank(search, %s) AS rank", tsq)
		ranked = true
	}

	labels := NormalizeLabelScope(q.Labels)
	where = append(where, fmt.Sprintf("labels @> %s::varchar[]", p.Add(labels)))

	// Pagination predicate goes last, and only when a cursor is present.
	// The bound is inclusive: the cursor is the creation time of the newest
	// row already shown, which must stay inside the snapshot the offset
	// pages over. Only rows created strictly later are excluded.
	if page != nil && !page.Last.IsZero() {
		where = append(where, fmt.Sprintf("created <= %s", p.Add(page.Last)))
	}

	sql := fmt.Sprintf("SELECT %s FROM emails WHERE %s", columns, strings.Join(where, " AND "))
	return &Compiled{SQL: sql, Args: p.Args(), Labels: labels, Ranked: ranked}
}

// tsQuerySQL builds the relevance sub-expression: one per-language parse of
// the free text, OR-combined. A single query may mix languages, and each
// parse canonicalizes on one language's stemming rules, so matching in any
// configured language must count.
func tsQuerySQL(text string, langs []string, p *store.Params) string {
	if len(langs) == 0 {
		langs = []string{"english"}
	}
	parts := make([]string, len(langs))
	for i, lang := range langs {
		parts[i] = fmt.Sprintf("plainto_tsquery(%s::regconfig, %s)", p.Add(lang), p.Add(text))
	}
	return strings.Join(parts, " || ")
}

// NormalizeLabelScope resolves the label scope of a query: a scope naming a
// well-known folder (or \Inbox) is used as-is; any other scope implicitly
// adds \All so an unscoped search covers every folder instead of none.
// The result is deduplicated and sorted.
func NormalizeLabelScope(labels []string) []string {
	scoped := false
	set := make(map[string]struct{}, len(labels)+1)
	for _, l := range labels {
		set[l] = struct{}{}
		if l == store.LabelInbox {
			scoped = true
		}
		for _, f := range store.Folders {
			if l == f {
				scoped = true
			}
		}
	}
	if !scoped {
		set[store.LabelAll] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
