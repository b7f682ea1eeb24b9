// Package textutil provides subject-line normalization helpers.
package textutil

import (
	"regexp"
	"strings"
)

// replyPrefix matches reply/forward markers at the start of a subject:
// "Re:", "RE[2]:", "Fwd:", "Fw:", optionally preceded by list tags.
var replyPrefix = regexp.MustCompile(`(?i)^(\s*(re|fwd?|aw)(\[\d+\])?:\s*)+`)

// HumanizeSubject strips reply and forward prefixes and collapses
// whitespace. An empty result falls back to fallback.
func HumanizeSubject(subj, fallback string) string {
	subj = replyPrefix.ReplaceAllString(subj, "")
	subj = strings.Join(strings.Fields(subj), " ")
	if subj == "" {
		return fallback
	}
	return subj
}

// SubjectChanged reports whether subj drifted from base: both are
// normalized first, so replies differing only in Re:/Fwd: prefixes or
// whitespace don't count as a change. An empty base never counts.
func SubjectChanged(subj, base string) bool {
	normBase := HumanizeSubject(base, "")
	if normBase == "" {
		return false
	}
	return !strings.EqualFold(HumanizeSubject(subj, ""), normBase)
}
