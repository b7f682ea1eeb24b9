// Package mime parses raw RFC 5322 messages into store rows using enmime.
package mime

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/mailfold/mailfold/internal/store"
)

// AttachmentMeta describes one attachment without its content. Content bytes
// stay in the raw message; the engine only needs the listing.
type AttachmentMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Parse converts a raw message into a store row. The raw bytes are kept on
// the row verbatim. Parse errors on individual headers degrade to empty
// fields; only an unreadable envelope fails.
func Parse(raw []byte) (*store.Message, []AttachmentMeta, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("read envelope: %w", err)
	}

	msg := &store.Message{
		MsgID:     strings.TrimSpace(env.GetHeader("Message-ID")),
		Subject:   env.GetHeader("Subject"),
		InReplyTo: strings.TrimSpace(env.GetHeader("In-Reply-To")),
		Refs:      splitRefs(env.GetHeader("References")),
		From:      addressList(env, "From"),
		To:        addressList(env, "To"),
		Cc:        addressList(env, "Cc"),
		Bcc:       addressList(env, "Bcc"),
		ReplyTo:   addressList(env, "Reply-To"),
		Text:      env.Text,
		HTML:      env.HTML,
		Raw:       raw,
		Size:      len(raw),
	}
	if msg.Text == "" && msg.HTML != "" {
		msg.Text = StripHTML(msg.HTML)
	}
	if dateStr := env.GetHeader("Date"); dateStr != "" {
		msg.Time = parseDate(dateStr)
	}

	var atts []AttachmentMeta
	for _, part := range env.Attachments {
		atts = append(atts, AttachmentMeta{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Size:        len(part.Content),
		})
	}
	return msg, atts, nil
}

// addressList renders a header's addresses as "Name <email>" strings, the
// form the emails table stores and the address predicates match against.
func addressList(env *enmime.Envelope, header string) []string {
	list, err := env.AddressList(header)
	if err != nil {
		return nil
	}
	var out []string
	for _, addr := range list {
		if addr.Address == "" {
			continue
		}
		email := strings.ToLower(addr.Address)
		if addr.Name != "" {
			out = append(out, fmt.Sprintf("%s <%s>", addr.Name, email))
		} else {
			out = append(out, "<"+email+">")
		}
	}
	return out
}

// splitRefs splits a References header into message ids, angle brackets
// kept so entries compare equal to stored msgid values.
func splitRefs(refs string) []string {
	var out []string
	for _, ref := range strings.Fields(refs) {
		if strings.HasPrefix(ref, "<") && strings.HasSuffix(ref, ">") {
			out = append(out, ref)
		}
	}
	return out
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

// parseDate parses a Date header, tolerating the common layout drift.
// Returns the zero time when nothing matches.
func parseDate(s string) time.Time {
	s = strings.Join(strings.Fields(s), " ")
	// Strip a trailing "(UTC)"-style comment; the numeric offset wins.
	if idx := strings.LastIndex(s, "("); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

var (
	scriptTagRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTagRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	blockTagRe  = regexp.MustCompile(`(?i)<(/?)(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|ul|ol)[^>]*>`)
	htmlTagRe   = regexp.MustCompile(`<[^>]*>`)
)

// StripHTML reduces an HTML body to plain text for indexing and previews:
// script and style content is removed, block elements become line breaks,
// entities are decoded and whitespace is normalized.
func StripHTML(rawHTML string) string {
	text := scriptTagRe.ReplaceAllString(rawHTML, "")
	text = styleTagRe.ReplaceAllString(text, "")
	text = blockTagRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, " ", " ")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
