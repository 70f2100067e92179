package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/papercomputeco/sketchtable/pkg/llm"
	"github.com/papercomputeco/sketchtable/pkg/sse"
)

// doneSentinel is the payload OpenAI sends as the final data line.
const doneSentinel = "[DONE]"

// Stream is a finite, non-restartable sequence of deltas read from one
// response body. It is not safe for concurrent use.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	logger *slog.Logger

	pending        []llm.Delta
	done           bool
	protocolErrors int
}

// Next returns the next delta. It returns io.EOF once the server sends
// [DONE] or closes the connection. Malformed lines are logged and skipped.
func (s *Stream) Next() (llm.Delta, error) {
	for {
		if len(s.pending) > 0 {
			d := s.pending[0]
			s.pending = s.pending[1:]
			return d, nil
		}
		if s.done {
			return llm.Delta{}, io.EOF
		}

		ev, err := s.reader.Next()
		if err != nil {
			s.done = true
			return llm.Delta{}, fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			s.done = true
			continue
		}

		chunk, err := parseEvent(ev)
		if err != nil {
			s.protocolErrors++
			s.logger.Debug("skipping stream line", "error", err)
			continue
		}
		if chunk == nil {
			s.done = true
			continue
		}

		s.pending = chunk.Deltas()
	}
}

// ProtocolErrors returns the number of lines skipped so far.
func (s *Stream) ProtocolErrors() int {
	return s.protocolErrors
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.done = true
	s.pending = nil
	return s.body.Close()
}

// parseEvent decodes one significant line. It returns nil, nil for the
// end-of-stream sentinel.
func parseEvent(ev *sse.Event) (*llm.StreamChunk, error) {
	if ev.Oversized {
		return nil, &ProtocolError{Line: ev.Line, Reason: fmt.Sprintf("line exceeds %d bytes", sse.MaxLineSize)}
	}
	if !ev.IsData() {
		return nil, &ProtocolError{Line: ev.Line, Reason: "not a data line"}
	}
	if ev.Value == doneSentinel {
		return nil, nil
	}

	data := bytes.TrimSpace([]byte(ev.Value))
	if len(data) == 0 || data[0] != '{' {
		return nil, &ProtocolError{Line: ev.Line, Reason: "payload is not a JSON object"}
	}

	var chunk llm.StreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, &ProtocolError{Line: ev.Line, Reason: "invalid JSON", Err: err}
	}
	return &chunk, nil
}
