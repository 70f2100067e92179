package openai

import (
	"fmt"

	"github.com/papercomputeco/sketchtable/pkg/utils"
)

// lineExcerpt bounds how much of a bad line ends up in an error message.
const lineExcerpt = 120

// ConnectionError is returned by Client.Open when the request could not be
// sent or the server answered with a non-2xx status. No deltas are produced.
type ConnectionError struct {
	// StatusCode is 0 when the request never got a response.
	StatusCode int

	// Body holds up to maxErrorBody bytes of the error response.
	Body []byte

	// Message is the API's error.message, when the body carried one.
	Message string

	Err error
}

func (e *ConnectionError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("connection failed: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError describes a significant stream line that could not be
// understood. The stream skips such lines; the error is only logged.
type ProtocolError struct {
	Line   string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	line := utils.Truncate(e.Line, lineExcerpt)
	if e.Err != nil {
		return fmt.Sprintf("malformed stream line %q: %s: %v", line, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed stream line %q: %s", line, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
