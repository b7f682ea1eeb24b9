package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Query
	}{
		{
			name:  "empty",
			query: "",
			want:  Query{},
		},
		{
			name:  "label filter",
			query: `in:\Inbox`,
			want:  Query{Labels: []string{`\Inbox`}},
		},
		{
			name:  "comma separated labels",
			query: "in:Work,Travel",
			want:  Query{Labels: []string{"Work", "Travel"}},
		},
		{
			// Repeated filters accumulate; both in: tokens take effect.
			name:  "two label filters accumulate",
			query: `in:\Inbox in:Work`,
			want:  Query{Labels: []string{`\Inbox`, "Work"}},
		},
		{
			name:  "quoted label with spaces",
			query: `in:"Work Stuff"`,
			want:  Query{Labels: []string{"Work Stuff"}},
		},
		{
			name:  "quoted label with escaped quote",
			query: `in:"Work \"Stuff\""`,
			want:  Query{Labels: []string{`Work "Stuff"`}},
		},
		{
			name:  "subject filter",
			query: "subj:Report",
			want:  Query{Subjects: []string{"Report"}},
		},
		{
			name:  "quoted subject",
			query: `subj:"quarterly report"`,
			want:  Query{Subjects: []string{"quarterly report"}},
		},
		{
			name:  "from filter",
			query: "from:alice@example.com",
			want:  Query{From: []string{"alice@example.com"}},
		},
		{
			name:  "to filter",
			query: "to:bob@example.com",
			want:  Query{To: []string{"bob@example.com"}},
		},
		{
			name:  "either address filter",
			query: "email:carol@example.com",
			want:  Query{Either: []string{"carol@example.com"}},
		},
		{
			name:  "msgid filter",
			query: "msgid:<abc@mail.example.com>",
			want:  Query{MsgIDs: []string{"<abc@mail.example.com>"}},
		},
		{
			name:  "ref filter",
			query: "ref:<root@mail.example.com>",
			want:  Query{Refs: []string{"<root@mail.example.com>"}},
		},
		{
			name:  "free text only",
			query: "hello world",
			want:  Query{Text: "hello world"},
		},
		{
			name:  "filters excised from free text",
			query: `hello in:\Inbox world subj:Report again`,
			want: Query{
				Labels:   []string{`\Inbox`},
				Subjects: []string{"Report"},
				Text:     "hello world again",
			},
		},
		{
			name:  "whitespace collapsed",
			query: `  hello    in:\Inbox   world  `,
			want: Query{
				Labels: []string{`\Inbox`},
				Text:   "hello world",
			},
		},
		{
			name:  "unrecognized token stays free text",
			query: "color:red hello",
			want:  Query{Text: "color:red hello"},
		},
		{
			name:  "quoted phrase with colon stays free text",
			query: `"note: important" in:Work`,
			want: Query{
				Labels: []string{"Work"},
				Text:   `"note: important"`,
			},
		},
		{
			name:  "unterminated quote degrades to literal text",
			query: `hello "world in:Work`,
			want:  Query{Text: `hello "world in:Work`},
		},
		{
			// A stray quote after the filter name must not leak into
			// the label.
			name:  "unterminated quote after filter name",
			query: `in:"Work`,
			want:  Query{Labels: []string{"Work"}},
		},
		{
			name:  "unterminated quoted label with spaces",
			query: `in:"Work Stuff`,
			want:  Query{Labels: []string{"Work Stuff"}},
		},
		{
			name:  "mixed filters and free text",
			query: `in:"Work Stuff" subj:Report`,
			want: Query{
				Labels:   []string{"Work Stuff"},
				Subjects: []string{"Report"},
			},
		},
		{
			name:  "order independent",
			query: `subj:Report in:"Work Stuff"`,
			want: Query{
				Labels:   []string{"Work Stuff"},
				Subjects: []string{"Report"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.query)
			if diff := cmp.Diff(tt.want, *got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestIsEmpty(t *testing.T) {
	if !Parse("").IsEmpty() {
		t.Error("empty string should parse to an empty query")
	}
	if Parse("in:Work").IsEmpty() {
		t.Error("query with a label filter is not empty")
	}
	if Parse("hello").IsEmpty() {
		t.Error("query with free text is not empty")
	}
}
