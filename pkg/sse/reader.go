package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// Reader reads SSE lines from a source io.Reader. When built with
// NewTeeReader it also writes every byte it reads, line endings and blank
// lines included, to a destination writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
type Reader struct {
	src     *bufio.Reader
	dest    io.Writer
	maxLine int
}

// MaxLineSize is the longest line Next returns in full. Longer lines are
// cut to this size and marked Oversized.
const MaxLineSize = 1024 * 1024

// NewReader returns a Reader that parses SSE lines from src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader that parses SSE lines from src and copies
// the raw bytes to dest. A nil dest disables the copy.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return &Reader{
		src:     bufio.NewReaderSize(src, 64*1024),
		dest:    dest,
		maxLine: MaxLineSize,
	}
}

// Next blocks until the next significant line is available and returns it.
// Next returns nil, nil when the source is exhausted.
func (r *Reader) Next() (*Event, error) {
	for {
		raw, oversized, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		line := string(raw)
		if !oversized && strings.TrimSpace(line) == "" {
			continue
		}

		// Lines starting with ':' are comments.
		if strings.HasPrefix(line, ":") {
			continue
		}

		ev := parseLine(line)
		ev.Oversized = oversized
		return ev, nil
	}
}

// readLine returns the next line without its line ending, copying every
// byte read to dest. Lines longer than maxLine are cut to maxLine bytes and
// the rest is discarded. io.EOF is returned only when no bytes remain.
func (r *Reader) readLine() ([]byte, bool, error) {
	var (
		line    []byte
		read    bool
		dropped bool
	)

	// Room for "\r\n" so a line of exactly maxLine bytes is not cut.
	limit := r.maxLine + 2

	for {
		frag, err := r.src.ReadSlice('\n')
		if len(frag) > 0 {
			read = true
			if r.dest != nil {
				if _, werr := r.dest.Write(frag); werr != nil {
					return nil, false, werr
				}
			}

			keep := min(len(frag), limit-len(line))
			line = append(line, frag[:keep]...)
			if keep < len(frag) {
				dropped = true
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if !read {
				return nil, false, io.EOF
			}
			break
		}
		if err != nil {
			return nil, false, err
		}
		break
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	oversized := dropped || len(line) > r.maxLine
	if oversized {
		line = line[:r.maxLine]
	}
	return line, oversized, nil
}

// parseLine splits "field:value" and strips a single leading space from the
// value. A line with no colon is a field name with an empty value.
func parseLine(line string) *Event {
	ev := &Event{Line: line}

	if before, after, ok := strings.Cut(line, ":"); ok {
		ev.Field = before
		ev.Value = strings.TrimPrefix(after, " ")
	} else {
		ev.Field = line
	}

	return ev
}
