// Package stream drives one analysis at a time: it opens the chat stream,
// accumulates the reply, keeps usage and progress, re-extracts the table on
// every delta, and reports all of it on a single ordered event channel.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/sketchtable/pkg/llm"
	"github.com/papercomputeco/sketchtable/pkg/logger"
	"github.com/papercomputeco/sketchtable/pkg/openai"
	"github.com/papercomputeco/sketchtable/pkg/table"
	"github.com/papercomputeco/sketchtable/pkg/usage"
)

const (
	// DefaultProgressCap is the byte count treated as a complete reply.
	DefaultProgressCap = 4096

	defaultBuffer = 64
)

// ErrStreamActive is returned by Start while a stream is running.
var ErrStreamActive = errors.New("a stream is already active")

// Source is a finite sequence of deltas. Next returns io.EOF at the end.
type Source interface {
	Next() (llm.Delta, error)
	Close() error
}

// skipCounter is implemented by sources that skip malformed lines.
type skipCounter interface {
	ProtocolErrors() int
}

// Opener opens a Source for a request.
type Opener interface {
	Open(ctx context.Context, req llm.StreamRequest) (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, req llm.StreamRequest) (Source, error)

func (f OpenerFunc) Open(ctx context.Context, req llm.StreamRequest) (Source, error) {
	return f(ctx, req)
}

// ClientOpener adapts an openai.Client to Opener.
func ClientOpener(c *openai.Client) Opener {
	return OpenerFunc(func(ctx context.Context, req llm.StreamRequest) (Source, error) {
		s, err := c.Open(ctx, req)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Config configures a Coordinator.
type Config struct {
	Opener Opener

	// Pricing used by the usage accumulator.
	Pricing usage.Pricing

	// ProgressCap is the expected reply size in bytes. Zero means
	// DefaultProgressCap.
	ProgressCap int

	// Buffer is the event channel capacity. Zero means 64.
	Buffer int

	Logger *slog.Logger

	// OnFinish, when set, receives the result of every stream after its
	// terminal event has been sent.
	OnFinish func(Result)
}

// Result summarises a finished stream. SkippedLines counts stream lines
// the source could not understand.
type Result struct {
	ID           string
	Request      llm.StreamRequest
	Text         string
	Table        table.Table
	Usage        usage.State
	State        State
	Err          error
	Deltas       int
	SkippedLines int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Coordinator runs one stream at a time on its own goroutine.
type Coordinator struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	err    error
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(config Config) (*Coordinator, error) {
	if config.Opener == nil {
		return nil, errors.New("opener is required")
	}
	if config.ProgressCap <= 0 {
		config.ProgressCap = DefaultProgressCap
	}
	if config.Buffer <= 0 {
		config.Buffer = defaultBuffer
	}
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Coordinator{
		config: config,
		logger: log,
		state:  StateIdle,
	}, nil
}

// Start validates req and starts streaming it. Events arrive on the
// returned channel in order and the channel is closed after the terminal
// event. Consumers must keep receiving until the channel is closed.
//
// Start returns ErrStreamActive if a stream is already running.
func (c *Coordinator) Start(ctx context.Context, req llm.StreamRequest) (<-chan Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStreaming {
		return nil, ErrStreamActive
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, c.config.Buffer)

	c.state = StateStreaming
	c.err = nil
	c.cancel = cancel
	c.done = make(chan struct{})
	c.result = Result{}

	id := uuid.NewString()
	w := &worker{
		c:      c,
		id:     id,
		req:    req,
		cancel: cancel,
		events: events,
		acc:    usage.NewAccumulator(c.config.Pricing),
		logger: c.logger.With("stream", id),
	}

	go w.run(streamCtx, c.done)

	return events, nil
}

// Cancel aborts the running stream, if any. The stream ends with
// EventFailed carrying context.Canceled.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStreaming && c.cancel != nil {
		c.cancel()
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error of the last failed stream.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Result returns the summary of the last finished stream.
func (c *Coordinator) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Wait blocks until the current stream, if any, has finished.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Coordinator) finish(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = res.State
	c.err = res.Err
	c.result = res
}

// worker owns the reply buffer and usage of one stream.
type worker struct {
	c      *Coordinator
	id     string
	req    llm.StreamRequest
	cancel context.CancelFunc
	events chan Event
	acc    *usage.Accumulator
	logger *slog.Logger

	text     strings.Builder
	received int
	deltas   int
	skipped  int
}

func (w *worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer close(w.events)
	defer w.cancel()

	started := time.Now()
	err := w.consume(ctx)

	res := Result{
		ID:           w.id,
		Request:      w.req,
		Text:         w.text.String(),
		Table:        table.Extract(w.text.String()),
		Usage:        w.acc.State(),
		Deltas:       w.deltas,
		SkippedLines: w.skipped,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}

	var terminal Event
	if err != nil {
		w.logger.Error("stream failed", "error", err, "deltas", w.deltas, "skipped_lines", w.skipped)
		res.State = StateFailed
		res.Err = err
		terminal = Event{Kind: EventFailed, Err: err}
	} else {
		w.logger.Debug("stream completed", "deltas", w.deltas, "tokens", res.Usage.Tokens, "skipped_lines", w.skipped)
		res.State = StateCompleted
		w.events <- Event{Kind: EventProgress, Progress: 100}
		terminal = Event{Kind: EventCompleted}
	}

	w.c.finish(res)
	w.events <- terminal

	if w.c.config.OnFinish != nil {
		w.c.config.OnFinish(res)
	}
}

func (w *worker) consume(ctx context.Context) error {
	if w.req.IsImage {
		w.acc.AddImage(w.req.ImageWidth, w.req.ImageHeight)
	}

	src, err := w.c.config.Opener.Open(ctx, w.req)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer func() {
		if sc, ok := src.(skipCounter); ok {
			w.skipped = sc.ProtocolErrors()
		}
		src.Close()
	}()

	for {
		d, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		if err := w.handle(ctx, d); err != nil {
			return err
		}
	}
}

func (w *worker) handle(ctx context.Context, d llm.Delta) error {
	w.deltas++
	w.text.WriteString(d.Content)
	w.received += len(d.Content)

	if err := w.send(ctx, Event{Kind: EventContent, Delta: d.Content}); err != nil {
		return err
	}
	if err := w.send(ctx, Event{Kind: EventProgress, Progress: w.progress()}); err != nil {
		return err
	}
	if err := w.send(ctx, Event{Kind: EventUsage, Usage: w.acc.Update(d.Content)}); err != nil {
		return err
	}

	t := table.Extract(w.text.String())
	if t.Empty() {
		return nil
	}
	return w.send(ctx, Event{Kind: EventTable, Table: t})
}

func (w *worker) progress() int {
	pct := math.Round(100 * float64(w.received) / float64(w.c.config.ProgressCap))
	return int(min(pct, 100))
}

// send delivers a non-terminal event unless the stream is cancelled first.
func (w *worker) send(ctx context.Context, ev Event) error {
	select {
	case w.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
