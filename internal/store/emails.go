package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved system labels.
const (
	LabelUnread = `\Unread`
	LabelPinned = `\Pinned`
	LabelDraft  = `\Draft`
	LabelSent   = `\Sent`
	LabelAll    = `\All`
	LabelInbox  = `\Inbox`
	LabelSpam   = `\Spam`
	LabelTrash  = `\Trash`
)

// Folders are the well-known mail folders a label scope can name.
// A query scoped to none of these (nor \Inbox) implicitly searches \All.
var Folders = []string{LabelAll, LabelSpam, LabelTrash}

// Emails is the field registry for the messages table.
var Emails = NewTable("emails", "id",
	"id", "created", "updated", "msgid", "extid", "delid",
	"thrid", "parent", "duplicate",
	"header", "raw", "size", "time", "labels",
	"subj", "fr", "to", "cc", "bcc", "reply_to", "sender",
	"sender_time", "in_reply_to", "refs",
	"text", "html", "attachments", "embedded",
	"search",
)

// Message carries one inbound message from the sync collaborator. Fields
// map one-to-one onto emails columns.
type Message struct {
	MsgID     string
	ExtID     string
	Thrid     *int64
	Parent    *int64
	Time      time.Time
	Subject   string
	From      []string
	To        []string
	Cc        []string
	Bcc       []string
	ReplyTo   []string
	InReplyTo string
	Refs      []string
	Labels    []string
	Text      string
	HTML      string
	Raw       []byte
	Size      int

	// Attachments is the attachment listing, stored as JSON. Content bytes
	// stay inside Raw.
	Attachments any
}

func stringArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func (m *Message) record() map[string]any {
	return map[string]any{
		"msgid":       m.MsgID,
		"extid":       m.ExtID,
		"delid":       uuid.New(),
		"thrid":       m.Thrid,
		"parent":      m.Parent,
		"time":        m.Time,
		"subj":        m.Subject,
		"fr":          stringArray(m.From),
		"to":          stringArray(m.To),
		"cc":          stringArray(m.Cc),
		"bcc":         stringArray(m.Bcc),
		"reply_to":    stringArray(m.ReplyTo),
		"in_reply_to": m.InReplyTo,
		"refs":        stringArray(m.Refs),
		"labels":      stringArray(m.Labels),
		"text":        m.Text,
		"html":        m.HTML,
		"raw":         m.Raw,
		"size":        m.Size,
		"attachments": m.Attachments,
	}
}

// InsertMessages stores msgs in one statement and derives each row's
// full-text vector from subject and body, weighted subject-first, across
// every configured search language. A message without a thrid becomes its
// own thread root. Returns the generated ids.
func InsertMessages(ctx context.Context, db Querier, msgs []*Message, langs []string) ([]int64, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	recs := make([]map[string]any, len(msgs))
	for i, m := range msgs {
		recs[i] = m.record()
	}
	ids, err := Emails.Insert(ctx, db, recs)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(ctx,
		"UPDATE emails SET thrid = id WHERE id = ANY($1) AND thrid IS NULL", ids,
	); err != nil {
		return nil, fmt.Errorf("root new threads: %w", err)
	}

	p := &Params{}
	vector := searchVectorSQL(langs, p)
	sql := fmt.Sprintf("UPDATE emails SET search = %s WHERE id = ANY(%s)", vector, p.Add(ids))
	if _, err := db.Exec(ctx, sql, p.Args()...); err != nil {
		return nil, fmt.Errorf("build search vectors: %w", err)
	}
	return ids, nil
}

// searchVectorSQL renders the tsvector expression over subj and text for
// every language, concatenated so one vector carries each language's
// stems. Language names travel as bound regconfig parameters.
func searchVectorSQL(langs []string, p *Params) string {
	if len(langs) == 0 {
		langs = []string{"english"}
	}
	parts := make([]string, 0, len(langs)*2)
	for _, lang := range langs {
		ph := p.Add(lang)
		parts = append(parts,
			fmt.Sprintf("setweight(to_tsvector(%s::regconfig, coalesce(subj, '')), 'A')", ph),
			fmt.Sprintf("setweight(to_tsvector(%s::regconfig, coalesce(text, '')), 'B')", ph),
		)
	}
	return strings.Join(parts, " || ")
}

// MarkAction selects how Mark applies labels.
type MarkAction string

const (
	MarkAdd    MarkAction = "+"
	MarkRemove MarkAction = "-"
	MarkSet    MarkAction = "="
)

// ErrMissingOldLabels reports a MarkSet call without the labels being
// replaced; without them the delta cannot be computed.
var ErrMissingOldLabels = errors.New("mark: set action requires the old labels")

// MarkRequest describes a bulk label change.
type MarkRequest struct {
	Action MarkAction
	Labels []string
	Old    []string // required for MarkSet
	IDs    []int64
	Thread bool      // expand IDs to whole threads
	Last   time.Time // thread expansion upper bound on created
}

// Mark applies a label change to the given messages. An empty id set is a
// successful no-op. Validation failures surface before any store access.
func Mark(ctx context.Context, db Querier, req MarkRequest) error {
	if len(req.IDs) == 0 {
		return nil
	}
	if req.Action == MarkSet && req.Old == nil {
		return ErrMissingOldLabels
	}

	ids := req.IDs
	if req.Thread {
		expanded, err := expandThreadIDs(ctx, db, ids, req.Last)
		if err != nil {
			return err
		}
		if len(expanded) == 0 {
			return nil
		}
		ids = expanded
	}

	switch req.Action {
	case MarkAdd:
		return addLabels(ctx, db, req.Labels, ids)
	case MarkRemove:
		return removeLabels(ctx, db, req.Labels, ids)
	case MarkSet:
		if err := removeLabels(ctx, db, diffLabels(req.Old, req.Labels), ids); err != nil {
			return err
		}
		return addLabels(ctx, db, diffLabels(req.Labels, req.Old), ids)
	default:
		return fmt.Errorf("mark: unknown action %q", req.Action)
	}
}

// expandThreadIDs maps message ids to every member of their threads created
// no later than last, so a thread-wide mark can't touch messages the client
// hasn't seen yet.
func expandThreadIDs(ctx context.Context, db Querier, ids []int64, last time.Time) ([]int64, error) {
	rows, err := db.Query(ctx, `
		SELECT id FROM emails
		WHERE thrid IN (SELECT DISTINCT thrid FROM emails WHERE id = ANY($1))
		  AND created <= $2
	`, ids, last)
	if err != nil {
		return nil, fmt.Errorf("expand thread ids: %w", err)
	}
	defer rows.Close()

	var expanded []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread id: %w", err)
		}
		expanded = append(expanded, id)
	}
	return expanded, rows.Err()
}

func addLabels(ctx context.Context, db Querier, labels []string, ids []int64) error {
	if len(labels) == 0 {
		return nil
	}
	// The containment guard skips rows that already carry every label, so
	// their updated timestamp is left alone.
	_, err := db.Exec(ctx, `
		UPDATE emails
		SET labels = (SELECT array_agg(DISTINCT l ORDER BY l) FROM unnest(labels || $1::varchar[]) AS l)
		WHERE id = ANY($2) AND NOT labels @> $1::varchar[]
	`, stringArray(labels), ids)
	if err != nil {
		return fmt.Errorf("add labels: %w", err)
	}
	return nil
}

func removeLabels(ctx context.Context, db Querier, labels []string, ids []int64) error {
	if len(labels) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `
		UPDATE emails
		SET labels = coalesce(
			(SELECT array_agg(l ORDER BY l) FROM unnest(labels) AS l WHERE NOT l = ANY($1::varchar[])),
			'{}'
		)
		WHERE id = ANY($2) AND labels && $1::varchar[]
	`, stringArray(labels), ids)
	if err != nil {
		return fmt.Errorf("remove labels: %w", err)
	}
	return nil
}

// diffLabels returns the members of a not present in b, sorted.
func diffLabels(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, l := range b {
		drop[l] = struct{}{}
	}
	var out []string
	for _, l := range a {
		if _, ok := drop[l]; !ok {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// NewThread re-roots the given message as its own conversation.
func NewThread(ctx context.Context, db Querier, id int64) error {
	if _, err := db.Exec(ctx, "UPDATE emails SET thrid = id WHERE id = $1", id); err != nil {
		return fmt.Errorf("new thread %d: %w", id, err)
	}
	return nil
}

// MergeThreads coalesces the threads containing ids into the one with the
// smallest thrid and returns it. An empty id set is a successful no-op.
func MergeThreads(ctx context.Context, db Querier, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var thrid int64
	err := db.QueryRow(ctx, `
		WITH targets AS (
			SELECT DISTINCT thrid FROM emails WHERE id = ANY($1)
		),
		merged AS (
			UPDATE emails SET thrid = (SELECT min(thrid) FROM targets)
			WHERE thrid IN (SELECT thrid FROM targets)
		)
		SELECT min(thrid) FROM targets
	`, ids).Scan(&thrid)
	if err != nil {
		return 0, fmt.Errorf("merge threads: %w", err)
	}
	return thrid, nil
}

// LabelInfo is one label with its unread-in-\All message count.
type LabelInfo struct {
	Name   string
	Unread int64
}

// Labels returns every label in use ordered case-insensitively, with unread
// counts zeroed for \Pinned and \All where the number is meaningless.
func Labels(ctx context.Context, db Querier) ([]LabelInfo, error) {
	rows, err := db.Query(ctx, `
		WITH names(name) AS (SELECT DISTINCT unnest(labels) FROM emails)
		SELECT n.name, count(e.id) AS unread
		FROM names n
		LEFT JOIN emails e ON n.name = ANY(e.labels)
			AND e.labels @> ARRAY[$1, $2]::varchar[]
		GROUP BY n.name
		ORDER BY lower(n.name)
	`, LabelUnread, LabelAll)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var labels []LabelInfo
	for rows.Next() {
		var l LabelInfo
		if err := rows.Scan(&l.Name, &l.Unread); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		if l.Name == LabelPinned || l.Name == LabelAll {
			l.Unread = 0
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}
