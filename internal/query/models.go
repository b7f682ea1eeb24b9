package query

import (
	"strings"
	"time"
	"unicode"

	"github.com/mailfold/mailfold/internal/store"
)

// Thread is one materialized conversation row: the representative (latest)
// message's projection plus thread-level aggregates.
type Thread struct {
	ID             int64  // representative message id (max id in thread)
	Thrid          int64  // conversation identifier
	Subject        string
	SubjectChanged bool // subject drifted from the thread's earliest subject
	Preview        string
	Labels         []string // member label union after scope reduction
	Count          int      // member count
	DisplayCount   int      // Count when > 1, else 0 (single messages show none)
	Time           time.Time
	Created        time.Time
	From           []string
	To             []string
	Cc             []string
	Pinned         bool
	Unread         bool
	Draft          bool
}

// ThreadPage is one page of the thread listing.
type ThreadPage struct {
	Threads []Thread
	Total   int      // distinct matching threads across all pages
	Labels  []string // normalized label scope the query ran under
	HasMore bool
	Next    *Page // cursor for the following page, nil when HasMore is false
}

// ThreadMessage is one message row in the flat (single-thread) view.
type ThreadMessage struct {
	ID             int64
	Thrid          int64
	Subject        string
	SubjectChanged bool
	Preview        string
	Labels         []string // stored labels as-is, no scope reduction
	Time           time.Time
	Created        time.Time
	From           []string
	To             []string
	Cc             []string
	Pinned         bool
	Unread         bool
	Draft          bool
}

// ThreadView is the flat view of one conversation.
type ThreadView struct {
	Thrid    int64
	Subject  string   // earliest subject, used as the drift baseline
	Count    int      // total messages in the thread
	Hidden   int      // messages trimmed from Messages by the few-cut
	Labels   []string // plain union of member labels
	Messages []ThreadMessage
}

const previewLen = 200

// preview condenses body text into a short single-line snippet.
func preview(text string) string {
	text = strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
	runes := []rune(text)
	if len(runes) > previewLen {
		return string(runes[:previewLen])
	}
	return text
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func labelFlags(labels []string) (pinned, unread, draft bool) {
	return hasLabel(labels, store.LabelPinned),
		hasLabel(labels, store.LabelUnread),
		hasLabel(labels, store.LabelDraft)
}
