// Package sse provides a minimal, line-framed SSE (Server-Sent Events) reader
// for chat-completion streams. Every significant line of the response is
// surfaced as its own Event; blank keep-alive lines and ":" comments are
// dropped. Optionally, all raw bytes are copied verbatim to a second writer
// so a stream can be recorded while it is parsed.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DataField is the field name carrying event payloads.
const DataField = "data"

// Event is a single significant line of an SSE stream.
type Event struct {
	// Field is the part of the line before the first colon, or the whole
	// line when it has no colon.
	Field string

	// Value is the part after the first colon with a single leading space
	// stripped, as SSE requires.
	Value string

	// Line is the line as received, without its trailing newline.
	Line string

	// Oversized is set when the line was longer than MaxLineSize. Line,
	// Field and Value then hold only its first MaxLineSize bytes.
	Oversized bool
}

// IsData reports whether the event is a "data:" line.
func (e *Event) IsData() bool {
	return e.Field == DataField
}
