package mbox

import (
	"errors"
	"io"
	"strings"
	"testing"
)

const sampleMbox = `From alice@example.com Mon Jan  2 15:04:05 2006
From: alice@example.com
Subject: first

hello
>From a quoted line
From not a separator

From bob@example.com Tue Jan  3 10:00:00 2006
From: bob@example.com
Subject: second

world
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(sampleMbox), 0)

	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.FromLine != "From alice@example.com Mon Jan  2 15:04:05 2006" {
		t.Errorf("FromLine = %q", first.FromLine)
	}
	body := string(first.Raw)
	if !strings.Contains(body, "Subject: first") {
		t.Errorf("first message missing headers:\n%s", body)
	}
	// mboxrd unescaping drops one leading '>'.
	if !strings.Contains(body, "\nFrom a quoted line\n") {
		t.Errorf("quoted From line not unescaped:\n%s", body)
	}
	// A "From " line without a valid date is body text, not a separator.
	if !strings.Contains(body, "From not a separator") {
		t.Errorf("non-separator From line dropped:\n%s", body)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !strings.Contains(string(second.Raw), "Subject: second") {
		t.Errorf("second message missing headers:\n%s", second.Raw)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next after last message = %v, want io.EOF", err)
	}
}

func TestReaderEmptyStream(t *testing.T) {
	r := NewReader(strings.NewReader(""), 0)
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next on empty stream = %v, want io.EOF", err)
	}
}

func TestReaderGarbagePreamble(t *testing.T) {
	input := "not an mbox line\n\n" + sampleMbox
	r := NewReader(strings.NewReader(input), 0)

	m, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !strings.Contains(string(m.Raw), "Subject: first") {
		t.Errorf("preamble not skipped:\n%s", m.Raw)
	}
}

func TestReaderMessageTooLarge(t *testing.T) {
	r := NewReader(strings.NewReader(sampleMbox), 10)
	if _, err := r.Next(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("Next = %v, want ErrMessageTooLarge", err)
	}
}

func TestIsSeparator(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"From alice@example.com Mon Jan  2 15:04:05 2006\n", true},
		{"From bob Tue Jan  3 10:00:00 2006 +0300\n", true},
		{"From - Jan 2 15:04:05 2006\n", true},
		{"From alice@example.com\n", false},
		{"From the beginning, things were different\n", false},
		{"X-From: alice\n", false},
		{">From alice@example.com Mon Jan  2 15:04:05 2006\n", false},
	}

	for _, tt := range tests {
		if got := isSeparator([]byte(tt.line)); got != tt.want {
			t.Errorf("isSeparator(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
