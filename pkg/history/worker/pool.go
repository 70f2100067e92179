// Package worker provides an asynchronous worker pool for persisting finished
// analyses using the provided storage.Driver.
//
// The pool decouples storage operations from the stream consumer so that a
// slow database never holds up the terminal UI.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/sketchtable/pkg/logger"
	"github.com/papercomputeco/sketchtable/pkg/storage"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("worker pool closed")

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record *storage.Record
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting records.
	Driver storage.Driver

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	stored atomic.Int64
	failed atomic.Int64
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: log,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns nil if enqueued. A full queue drops the job.
func (p *Pool) Enqueue(job Job) error {
	if err := job.Record.Validate(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "id", job.Record.ID, "state", job.Record.State)
		return nil
	default:
		p.logger.Error("job not queued, queue full, job dropped", "id", job.Record.ID)
		return fmt.Errorf("queue full, dropped %s", job.Record.ID)
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns the number of stored and failed jobs so far.
func (p *Pool) Stats() (stored, failed int64) {
	return p.stored.Load(), p.failed.Load()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	isNew, err := p.config.Driver.Put(ctx, job.Record)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("async history storage failed", "id", job.Record.ID, "error", err)
		return
	}

	p.stored.Add(1)
	p.logger.Info("analysis stored",
		"id", job.Record.ID,
		"state", job.Record.State,
		"tokens", job.Record.Tokens,
		"is_new", isNew,
	)
}
