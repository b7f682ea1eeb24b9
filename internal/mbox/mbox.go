// Package mbox implements a streaming reader for mbox mailbox files.
//
// Messages are delimited by Unix "From " separator lines. Body lines escaped
// mboxrd-style (^>+From ) are unescaped by dropping one leading '>'.
package mbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const maxLineBytes = 32 << 20 // 32 MiB

// ErrMessageTooLarge reports a message exceeding the reader's size limit.
var ErrMessageTooLarge = errors.New("mbox message exceeds max size")

// Message is one raw message pulled from an mbox stream: the separator line
// (without trailing newline) and the RFC 5322 bytes that follow it.
type Message struct {
	FromLine string
	Raw      []byte
}

// Reader reads messages from an mbox stream one at a time, so arbitrarily
// large mailboxes never need to fit in memory.
type Reader struct {
	br *bufio.Reader

	nextFromLine string
	hasNextFrom  bool
	eof          bool

	maxMessageBytes int64
}

// NewReader returns a reader over r. maxMessageBytes caps the size of a
// single message; zero or negative means no limit.
func NewReader(r io.Reader, maxMessageBytes int64) *Reader {
	return &Reader{
		br:              bufio.NewReader(r),
		maxMessageBytes: maxMessageBytes,
	}
}

// Next returns the next message, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (*Message, error) {
	if r.eof {
		return nil, io.EOF
	}

	if !r.hasNextFrom {
		for {
			line, err := r.readLine()
			if err != nil && err != io.EOF {
				return nil, err
			}
			if isSeparator(line) {
				r.nextFromLine = string(bytes.TrimRight(line, "\r\n"))
				r.hasNextFrom = true
				break
			}
			if err == io.EOF {
				r.eof = true
				return nil, io.EOF
			}
		}
	}

	fromLine := r.nextFromLine
	r.hasNextFrom = false

	var raw bytes.Buffer
	for {
		line, err := r.readLine()
		if len(line) > 0 {
			if isSeparator(line) {
				r.nextFromLine = string(bytes.TrimRight(line, "\r\n"))
				r.hasNextFrom = true
				break
			}
			b := unescapeFrom(line)
			if r.maxMessageBytes > 0 && int64(raw.Len()+len(b)) > r.maxMessageBytes {
				return nil, fmt.Errorf("%w: limit %d bytes", ErrMessageTooLarge, r.maxMessageBytes)
			}
			raw.Write(b)
		}

		if err != nil {
			if err == io.EOF {
				r.eof = true
				break
			}
			return nil, err
		}
	}

	return &Message{FromLine: fromLine, Raw: raw.Bytes()}, nil
}

func (r *Reader) readLine() ([]byte, error) {
	var out []byte
	for {
		b, err := r.br.ReadBytes('\n')
		out = append(out, b...)
		if len(out) > maxLineBytes {
			return nil, fmt.Errorf("mbox line exceeds max length (%d bytes)", maxLineBytes)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return out, err
	}
}

var fromPrefix = []byte("From ")

// separatorDateLayouts covers asctime-style dates seen on "From " lines.
var separatorDateLayouts = []string{
	"Mon Jan 2 15:04:05 2006",
	"Mon Jan 2 15:04:05 -0700 2006",
	"Mon Jan 2 15:04:05 MST 2006",
	"Mon Jan 2 15:04:05 2006 -0700",
	"Mon Jan 2 15:04:05 2006 MST",
	"Jan 2 15:04:05 2006",
}

// isSeparator reports whether line is a message separator: "From ", a sender
// token, then a parseable asctime date. Plain body lines starting with
// "From " (e.g. quoted text) fail the date check.
func isSeparator(line []byte) bool {
	if !bytes.HasPrefix(line, fromPrefix) {
		return false
	}
	rest := strings.TrimRight(string(line[len(fromPrefix):]), "\r\n")
	// The sender token comes first; everything after it must be the date.
	_, date, ok := strings.Cut(rest, " ")
	if !ok {
		return false
	}
	date = strings.Join(strings.Fields(date), " ")
	for _, layout := range separatorDateLayouts {
		if _, err := time.Parse(layout, date); err == nil {
			return true
		}
	}
	return false
}

// unescapeFrom drops one leading '>' from ^>+From  lines (mboxrd unquoting).
func unescapeFrom(line []byte) []byte {
	i := 0
	for i < len(line) && line[i] == '>' {
		i++
	}
	if i > 0 && bytes.HasPrefix(line[i:], fromPrefix) {
		return line[1:]
	}
	return line
}
