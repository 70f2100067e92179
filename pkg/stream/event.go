package stream

import (
	"github.com/papercomputeco/sketchtable/pkg/table"
	"github.com/papercomputeco/sketchtable/pkg/usage"
)

// EventKind tags an Event.
type EventKind int

const (
	// EventContent carries one delta of reply text.
	EventContent EventKind = iota + 1

	// EventProgress carries the progress percentage, 0 to 100.
	EventProgress

	// EventUsage carries the accumulated usage.
	EventUsage

	// EventTable carries the table re-derived from the whole reply so far.
	// It is only sent when the table has data rows.
	EventTable

	// EventCompleted is the terminal event of a stream that ended normally.
	EventCompleted

	// EventFailed is the terminal event of a stream that ended with an error,
	// including cancellation.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventContent:
		return "content"
	case EventProgress:
		return "progress"
	case EventUsage:
		return "usage"
	case EventTable:
		return "table"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one notification from the stream worker. Only the field matching
// Kind is set.
type Event struct {
	Kind EventKind

	Delta    string
	Progress int
	Usage    usage.State
	Table    table.Table
	Err      error
}

// Terminal reports whether e is the last event of its stream.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed
}
