// Package openai is a streaming client for OpenAI-compatible chat-completions
// endpoints. It opens one POST per analysis and yields the reply as a lazy
// sequence of text deltas.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/sketchtable/pkg/llm"
	"github.com/papercomputeco/sketchtable/pkg/logger"
	"github.com/papercomputeco/sketchtable/pkg/sse"
)

const maxErrorBody = 64 * 1024

// Client opens chat-completion streams.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	recorder   io.Writer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The client should not set
// an overall Timeout, since that would cut off long streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request and protocol diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRecorder copies the raw bytes of every response stream to w.
func WithRecorder(w io.Writer) Option {
	return func(c *Client) {
		c.recorder = w
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		// No Timeout: the stream is only bounded by cancellation of the
		// request context.
		httpClient: &http.Client{},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open sends req and returns the response stream. A transport failure or a
// non-2xx status returns a *ConnectionError. Cancelling ctx aborts the
// request and any read blocked in Stream.Next.
func (c *Client) Open(ctx context.Context, req llm.StreamRequest) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	c.logger.Debug("opening chat stream",
		"endpoint", req.Endpoint,
		"model", req.Payload.Model,
		"bytes", len(body),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		httpResp.Body.Close()
		c.logger.Error("server returned error",
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)
		return nil, &ConnectionError{
			StatusCode: httpResp.StatusCode,
			Body:       respBody,
			Message:    llm.ParseErrorMessage(respBody),
		}
	}

	return &Stream{
		body:   httpResp.Body,
		reader: sse.NewTeeReader(httpResp.Body, c.recorder),
		logger: c.logger,
	}, nil
}
