// Package search parses mailfold search query strings.
package search

import "strings"

// Query represents a parsed search query with all supported filters plus
// the residual free text used for relevance ranking.
type Query struct {
	Labels   []string // in: filters (comma-separated lists, accumulated)
	Subjects []string // subj: filters
	From     []string // from: filters
	To       []string // to: filters (matches to + cc)
	Either   []string // email: filters (matches to + cc + from)
	MsgIDs   []string // msgid: filters
	Refs     []string // ref: filters
	Text     string   // remaining free text, whitespace collapsed
}

// IsEmpty reports whether the query carries no criteria at all.
func (q *Query) IsEmpty() bool {
	return len(q.Labels) == 0 &&
		len(q.Subjects) == 0 &&
		len(q.From) == 0 &&
		len(q.To) == 0 &&
		len(q.Either) == 0 &&
		len(q.MsgIDs) == 0 &&
		len(q.Refs) == 0 &&
		q.Text == ""
}

// operatorFn handles a parsed operator:value pair by applying it to the query.
type operatorFn func(q *Query, value string)

// operators maps filter names to their handler functions. Every filter may
// appear multiple times; repeated occurrences accumulate.
var operators = map[string]operatorFn{
	"in": func(q *Query, v string) {
		for _, label := range strings.Split(v, ",") {
			if label != "" {
				q.Labels = append(q.Labels, label)
			}
		}
	},
	"subj": func(q *Query, v string) {
		q.Subjects = append(q.Subjects, v)
	},
	"from": func(q *Query, v string) {
		q.From = append(q.From, v)
	},
	"to": func(q *Query, v string) {
		q.To = append(q.To, v)
	},
	"email": func(q *Query, v string) {
		q.Either = append(q.Either, v)
	},
	"msgid": func(q *Query, v string) {
		q.MsgIDs = append(q.MsgIDs, strings.TrimSpace(v))
	},
	"ref": func(q *Query, v string) {
		q.Refs = append(q.Refs, strings.TrimSpace(v))
	},
}

// Parse parses a query string into a Query.
//
// Filters use name:value syntax where value may be double-quoted to include
// spaces (in:"Work Stuff"). Supported names:
//
//   - in:     label, comma-separated list
//   - subj:   subject substring
//   - from:   sender address substring
//   - to:     recipient (to + cc) substring
//   - email:  any-address (to + cc + from) substring
//   - msgid:  exact message id
//   - ref:    reference id membership
//
// Everything else, including unrecognized name:value tokens, is left as
// free text with runs of whitespace collapsed to single spaces. Token
// recognition is order-independent and each filter kind may repeat.
//
// Parsing is two-pass: tokenize first, classify second, so the residual
// free text never depends on how filters were extracted. Malformed quoting
// degrades to literal treatment of the unparsed remainder.
func Parse(queryStr string) *Query {
	q := &Query{}
	tokens := tokenize(queryStr)

	var free []string
	for _, token := range tokens {
		if idx := strings.Index(token.text, ":"); idx != -1 && !token.quoted {
			name := strings.ToLower(token.text[:idx])
			if handler, ok := operators[name]; ok {
				handler(q, unquote(token.text[idx+1:]))
				continue
			}
		}
		free = append(free, token.text)
	}
	q.Text = strings.Join(free, " ")

	return q
}

// token is one tokenizer output unit. quoted marks standalone quoted
// phrases, which are always free text even when they contain colons.
type token struct {
	text   string
	quoted bool
}

// tokenize splits a query string on spaces, keeping name:"value with
// spaces" together as one token and standalone "quoted phrases" intact.
// An unterminated quote runs to the end of the string.
func tokenize(queryStr string) []token {
	var tokens []token
	var current strings.Builder
	inQuotes := false
	wasQuoted := false
	afterColon := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, token{text: current.String(), quoted: wasQuoted})
			current.Reset()
		}
		wasQuoted = false
	}

	prev := rune(0)
	for _, char := range queryStr {
		switch {
		case char == '"' && !inQuotes && prev == '\\':
			// Escaped quote inside an unquoted run stays literal.
			current.WriteRune(char)
		case char == '"' && !inQuotes:
			inQuotes = true
			if !afterColon {
				// Standalone quoted phrase begins its own token.
				flush()
				wasQuoted = true
			}
			current.WriteRune(char)
		case char == '"' && inQuotes && prev == '\\':
			current.WriteRune(char)
		case char == '"' && inQuotes:
			inQuotes = false
			current.WriteRune(char)
		case char == ' ' && !inQuotes:
			flush()
		default:
			current.WriteRune(char)
		}
		afterColon = char == ':'
		prev = char
	}
	flush()

	return tokens
}

// unquote strips surrounding double quotes and unescapes internal escaped
// quotes. Values without surrounding quotes pass through unchanged.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		return strings.ReplaceAll(s, `\"`, `"`)
	}
	// Malformed quoting, e.g. an unterminated `in:"Work`: drop the stray
	// quote characters rather than let them leak into the value.
	return strings.Trim(s, `"`)
}
