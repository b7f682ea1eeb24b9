package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mailfold/mailfold/internal/search"
	"github.com/mailfold/mailfold/internal/store"
	"github.com/mailfold/mailfold/internal/textutil"
)

// Engine serves the read side: compiled searches, thread aggregation and
// pagination over the emails table.
type Engine struct {
	db    store.Querier
	langs []string
}

// New returns an Engine running on db with the configured full-text
// search languages.
func New(db store.Querier, langs []string) *Engine {
	return &Engine{db: db, langs: langs}
}

// Threads runs a search and returns one page of conversations. Messages
// matching the compiled predicates are grouped by thrid, the top page-sized
// slice of groups is selected, and each selected group is expanded around
// its representative (latest) message.
func (e *Engine) Threads(ctx context.Context, q *search.Query, page Page) (*ThreadPage, error) {
	c := Compile(q, e.langs, &page)

	total, err := e.countThreads(ctx, c)
	if err != nil {
		return nil, err
	}

	threads, lastCreated, err := e.selectThreads(ctx, c, page)
	if err != nil {
		return nil, err
	}

	result := &ThreadPage{
		Threads: threads,
		Total:   total,
		Labels:  c.Labels,
		HasMore: page.HasMore(total),
	}
	if next, ok := page.Next(total, lastCreated); ok {
		result.Next = &next
	}
	return result, nil
}

func (e *Engine) countThreads(ctx context.Context, c *Compiled) (int, error) {
	sql := fmt.Sprintf(`
		WITH matching AS (%s)
		SELECT count(DISTINCT e.thrid)
		FROM emails e JOIN matching m ON e.id = m.id
	`, c.SQL)

	var total int
	if err := e.db.QueryRow(ctx, sql, c.Args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count threads: %w", err)
	}
	return total, nil
}

// selectThreads is the two-stage aggregation: stage one picks the page's
// thread groups ordered by relevance (when ranked) then latest message id;
// stage two joins each group's representative row back from emails.
func (e *Engine) selectThreads(ctx context.Context, c *Compiled, page Page) ([]Thread, time.Time, error) {
	groupCols := "e.thrid"
	rankCol := ""
	rankGroup := ""
	order := "max_id DESC"
	if c.Ranked {
		groupCols = "e.thrid, max(m.rank) AS rank"
		rankCol = ", t.rank"
		rankGroup = ", t.rank"
		order = "rank DESC, max_id DESC"
	}

	limitPH := fmt.Sprintf("$%d", len(c.Args)+1)
	offsetPH := fmt.Sprintf("$%d", len(c.Args)+2)
	args := append(append([]any(nil), c.Args...), page.Limit, page.Offset())

	sql := fmt.Sprintf(`
		WITH matching AS (%s),
		thread_ids AS (
			SELECT %s
			FROM emails e JOIN matching m ON e.id = m.id
			GROUP BY e.thrid
		),
		threads AS (
			SELECT
				max(e.id) AS max_id,
				t.thrid,
				json_agg(e.labels) AS labels,
				count(e.id) AS count,
				(array_agg(e.subj ORDER BY e.time, e.id))[1] AS base_subj
				%s
			FROM thread_ids t
			JOIN emails e ON e.thrid = t.thrid
			GROUP BY t.thrid%s
			ORDER BY %s
			LIMIT %s OFFSET %s
		)
		SELECT
			e.id, t.thrid, coalesce(e.subj, ''), t.labels, e.time,
			e.fr, e."to", e.cc, coalesce(e.text, ''), e.created,
			t.count, coalesce(t.base_subj, '')
		FROM threads t
		JOIN emails e ON e.id = t.max_id
		ORDER BY %s
	`, c.SQL, groupCols, rankCol, rankGroup, order, limitPH, offsetPH, order)

	rows, err := e.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("select threads: %w", err)
	}
	defer rows.Close()

	var threads []Thread
	var lastCreated time.Time
	for rows.Next() {
		var t Thread
		var labelsJSON []byte
		var msgTime *time.Time
		var text, baseSubj string
		if err := rows.Scan(
			&t.ID, &t.Thrid, &t.Subject, &labelsJSON, &msgTime,
			&t.From, &t.To, &t.Cc, &text, &t.Created,
			&t.Count, &baseSubj,
		); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan thread: %w", err)
		}

		var memberLabels [][]string
		if err := json.Unmarshal(labelsJSON, &memberLabels); err != nil {
			return nil, time.Time{}, fmt.Errorf("decode thread labels: %w", err)
		}
		t.Labels = ReduceThreadLabels(memberLabels, c.Labels)
		t.Pinned, t.Unread, t.Draft = labelFlags(t.Labels)

		if msgTime != nil {
			t.Time = *msgTime
		}
		t.Preview = preview(text)
		t.SubjectChanged = textutil.SubjectChanged(t.Subject, baseSubj)
		if t.Count > 1 {
			t.DisplayCount = t.Count
		}
		if t.Created.After(lastCreated) {
			lastCreated = t.Created
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("iterate threads: %w", err)
	}

	return threads, lastCreated, nil
}

// ReduceThreadLabels computes a thread's displayed label set: the union of
// member labels minus the active filter scope. \Pinned and \Unread survive
// the subtraction even when filtered on, otherwise the thread row would
// lose its pin/unread state in exactly the views filtering by them. This
// reduction applies to the thread listing only; the flat view keeps labels
// as stored.
func ReduceThreadLabels(memberLabels [][]string, scope []string) []string {
	drop := make(map[string]struct{}, len(scope))
	for _, l := range scope {
		if l == store.LabelPinned || l == store.LabelUnread {
			continue
		}
		drop[l] = struct{}{}
	}

	set := make(map[string]struct{})
	for _, labels := range memberLabels {
		for _, l := range labels {
			if _, ok := drop[l]; !ok {
				set[l] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Thread returns the flat view of one conversation: its messages ordered
// by id, each annotated with subject drift against the thread's earliest
// subject. Unless full is set, long threads are cut down to the first
// message, the latest few, and any unread or pinned members. Labels are
// reported exactly as stored; the listing's scope reduction does not apply
// here. Returns nil when the thread has no messages.
func (e *Engine) Thread(ctx context.Context, thrid int64, full bool, few int) (*ThreadView, error) {
	var count int
	var labelsJSON []byte
	err := e.db.QueryRow(ctx, `
		SELECT count(id), coalesce(json_agg(labels), '[]')
		FROM emails WHERE thrid = $1
	`, thrid).Scan(&count, &labelsJSON)
	if err != nil {
		return nil, fmt.Errorf("thread %d aggregates: %w", thrid, err)
	}
	if count == 0 {
		return nil, nil
	}

	var memberLabels [][]string
	if err := json.Unmarshal(labelsJSON, &memberLabels); err != nil {
		return nil, fmt.Errorf("decode thread labels: %w", err)
	}
	union := ReduceThreadLabels(memberLabels, nil)

	var baseSubj string
	err = e.db.QueryRow(ctx,
		"SELECT coalesce(subj, '') FROM emails WHERE thrid = $1 ORDER BY id LIMIT 1",
		thrid,
	).Scan(&baseSubj)
	if err != nil {
		return nil, fmt.Errorf("thread %d base subject: %w", thrid, err)
	}

	where := "thrid = $1"
	args := []any{thrid}
	if !full {
		ids, err := e.fewIDs(ctx, thrid, few)
		if err != nil {
			return nil, err
		}
		if count-len(ids) > few {
			where = "id = ANY($1)"
			args = []any{ids}
		}
	}

	rows, err := e.db.Query(ctx, fmt.Sprintf(`
		SELECT
			id, thrid, coalesce(subj, ''), labels, time,
			fr, "to", cc, coalesce(text, ''), created
		FROM emails WHERE %s
		ORDER BY id
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("thread %d messages: %w", thrid, err)
	}
	defer rows.Close()

	view := &ThreadView{
		Thrid:   thrid,
		Subject: textutil.HumanizeSubject(baseSubj, ""),
		Count:   count,
		Labels:  union,
	}
	for rows.Next() {
		var m ThreadMessage
		var msgTime *time.Time
		var text string
		if err := rows.Scan(
			&m.ID, &m.Thrid, &m.Subject, &m.Labels, &msgTime,
			&m.From, &m.To, &m.Cc, &text, &m.Created,
		); err != nil {
			return nil, fmt.Errorf("scan thread message: %w", err)
		}
		if msgTime != nil {
			m.Time = *msgTime
		}
		m.Preview = preview(text)
		m.SubjectChanged = textutil.SubjectChanged(m.Subject, baseSubj)
		m.Pinned, m.Unread, m.Draft = labelFlags(m.Labels)
		view.Messages = append(view.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread messages: %w", err)
	}

	view.Hidden = count - len(view.Messages)
	return view, nil
}

// fewIDs selects the always-shown members of a long thread: the first
// message, the latest few, and every unread or pinned one.
func (e *Engine) fewIDs(ctx context.Context, thrid int64, few int) ([]int64, error) {
	rows, err := e.db.Query(ctx, `
		SELECT id FROM emails WHERE id IN (
			SELECT id FROM emails WHERE thrid = $1 ORDER BY id LIMIT 1
		) OR id IN (
			SELECT id FROM emails WHERE thrid = $1 ORDER BY id DESC LIMIT $2
		) OR id IN (
			SELECT id FROM emails WHERE labels && $3::varchar[] AND thrid = $1
		)
	`, thrid, few, []string{store.LabelUnread, store.LabelPinned})
	if err != nil {
		return nil, fmt.Errorf("thread %d few ids: %w", thrid, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan few id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
