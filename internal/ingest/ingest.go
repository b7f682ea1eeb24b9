// Package ingest feeds external mail into the message store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mailfold/mailfold/internal/mbox"
	"github.com/mailfold/mailfold/internal/mime"
	"github.com/mailfold/mailfold/internal/store"
)

// maxMessageBytes caps one imported message. Anything larger is almost
// certainly not mail.
const maxMessageBytes = 64 << 20

// Stats counts the outcome of one import run.
type Stats struct {
	Imported int
	Skipped  int // already present (by msgid)
	Failed   int // unparseable, logged and passed over
}

// Importer writes parsed messages into the store, threading each one onto
// an existing conversation when its references point at known messages.
type Importer struct {
	db     store.Querier
	langs  []string
	labels []string
	log    *slog.Logger
}

// New returns an Importer. labels are applied to every imported message in
// addition to \All.
func New(db store.Querier, langs, labels []string, log *slog.Logger) *Importer {
	return &Importer{db: db, langs: langs, labels: labels, log: log}
}

// Mbox imports every message from an mbox stream. Unparseable messages are
// counted and skipped; only store failures abort the run.
func (im *Importer) Mbox(ctx context.Context, r io.Reader) (*Stats, error) {
	stats := &Stats{}
	reader := mbox.NewReader(r, maxMessageBytes)

	for {
		m, err := reader.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, mbox.ErrMessageTooLarge) {
			im.log.Warn("skipping oversized message", "error", err)
			stats.Failed++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("read mbox: %w", err)
		}

		imported, err := im.Raw(ctx, m.Raw)
		switch {
		case err != nil && errors.Is(err, errUnparseable):
			im.log.Warn("skipping unparseable message", "from_line", m.FromLine, "error", err)
			stats.Failed++
		case err != nil:
			return stats, err
		case imported:
			stats.Imported++
		default:
			stats.Skipped++
		}
	}
	return stats, nil
}

var errUnparseable = errors.New("unparseable message")

// Raw imports one raw message. Returns false without error when the message
// is already present.
func (im *Importer) Raw(ctx context.Context, raw []byte) (bool, error) {
	msg, atts, err := mime.Parse(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errUnparseable, err)
	}

	if msg.MsgID == "" {
		// No Message-ID header. Synthesize one so dedup and threading
		// still have a key.
		msg.MsgID = fmt.Sprintf("<%s@mailfold>", uuid.New())
	}

	var existing int64
	err = im.db.QueryRow(ctx,
		"SELECT id FROM emails WHERE msgid = $1", msg.MsgID,
	).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("check msgid %q: %w", msg.MsgID, err)
	}

	thrid, err := im.resolveThread(ctx, msg)
	if err != nil {
		return false, err
	}
	msg.Thrid = thrid
	msg.Labels = append([]string{store.LabelAll}, im.labels...)
	if len(atts) > 0 {
		msg.Attachments = atts
	}

	if _, err := store.InsertMessages(ctx, im.db, []*store.Message{msg}, im.langs); err != nil {
		return false, fmt.Errorf("insert %q: %w", msg.MsgID, err)
	}
	return true, nil
}

// resolveThread finds the conversation the message belongs to: the smallest
// thrid among stored messages its References or In-Reply-To point at. Nil
// means no match; the message roots a new thread.
func (im *Importer) resolveThread(ctx context.Context, msg *store.Message) (*int64, error) {
	parents := msg.Refs
	if msg.InReplyTo != "" {
		parents = append(append([]string(nil), parents...), msg.InReplyTo)
	}
	if len(parents) == 0 {
		return nil, nil
	}

	var thrid *int64
	err := im.db.QueryRow(ctx,
		"SELECT min(thrid) FROM emails WHERE msgid = ANY($1)", parents,
	).Scan(&thrid)
	if err != nil {
		return nil, fmt.Errorf("resolve thread of %q: %w", msg.MsgID, err)
	}
	return thrid, nil
}
