package query

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mailfold/mailfold/internal/store"
)

func TestReduceThreadLabels(t *testing.T) {
	tests := []struct {
		name    string
		members [][]string
		scope   []string
		want    []string
	}{
		{
			name:    "union of member labels",
			members: [][]string{{"Work"}, {"Travel"}, {"Work", "Travel"}},
			scope:   nil,
			want:    []string{"Travel", "Work"},
		},
		{
			name:    "scope labels dropped",
			members: [][]string{{store.LabelAll, "Work"}, {store.LabelAll, "Travel"}},
			scope:   []string{store.LabelAll},
			want:    []string{"Travel", "Work"},
		},
		{
			name:    "pinned survives its own filter",
			members: [][]string{{store.LabelPinned, "Work"}},
			scope:   []string{store.LabelPinned, "Work"},
			want:    []string{store.LabelPinned},
		},
		{
			name:    "unread survives its own filter",
			members: [][]string{{store.LabelUnread}, {"Work"}},
			scope:   []string{store.LabelUnread},
			want:    []string{"Work", store.LabelUnread},
		},
		{
			name:    "empty members",
			members: nil,
			scope:   []string{store.LabelAll},
			want:    []string{},
		},
		{
			name:    "duplicates collapse",
			members: [][]string{{"Work", "Work"}, {"Work"}},
			scope:   nil,
			want:    []string{"Work"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReduceThreadLabels(tt.members, tt.scope)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ReduceThreadLabels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", ""},
		{"short text untouched", "hello world", "hello world"},
		{"whitespace collapsed", "hello\n\n  world\tagain", "hello world again"},
		{"long text cut at rune boundary", strings.Repeat("ф", 300), strings.Repeat("ф", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preview(tt.text); got != tt.want {
				t.Errorf("preview(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestLabelFlags(t *testing.T) {
	pinned, unread, draft := labelFlags([]string{store.LabelPinned, store.LabelUnread, "Work"})
	if !pinned || !unread || draft {
		t.Errorf("labelFlags = (%v, %v, %v), want (true, true, false)", pinned, unread, draft)
	}

	pinned, unread, draft = labelFlags([]string{store.LabelDraft})
	if pinned || unread || !draft {
		t.Errorf("labelFlags = (%v, %v, %v), want (false, false, true)", pinned, unread, draft)
	}
}
