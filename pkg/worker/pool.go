// Package worker provides an asynchronous worker pool that runs ingest
// pipelines off the HTTP hot path.
//
// The API server's notify endpoint answers 202 as soon as a payload is
// queued; workers run the full normalize/redact/extract/dedupe pipeline in
// the background so a slow store or remote backend never blocks the caller.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/loamhq/loam/pkg/ingest"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Notifier consumes one raw capture payload. *ingest.Ingestor satisfies it.
type Notifier interface {
	Notify(ctx context.Context, payload []byte) (*ingest.Result, error)
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Payload is the raw capture-hook JSON.
	Payload []byte

	// Surface labels where the payload came from, for logging only.
	Surface string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Ingestor runs the pipeline for each dequeued payload.
	Ingestor Notifier

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger.
	Logger *slog.Logger
}

// Pool processes ingest jobs asynchronously via a worker pool.
type Pool struct {
	ingestor Notifier
	queue    chan Job
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Ingestor == nil {
		return nil, fmt.Errorf("worker pool requires an ingestor")
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

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		ingestor: c.Ingestor,
		queue:    make(chan Job, c.QueueSize),
		logger:   logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "surface", job.Surface, "bytes", len(job.Payload))
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "surface", job.Surface)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}

// processJob runs one payload through the ingest pipeline. Errors are logged
// and dropped; a payload the pipeline cannot parse has nowhere to go.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	result, err := p.ingestor.Notify(ctx, job.Payload)
	if err != nil {
		p.logger.Error("async ingest failed", "surface", job.Surface, "error", err)
		return
	}

	switch result.Outcome {
	case ingest.OutcomeCommitted:
		p.logger.Info("turn ingested",
			"scope", result.Scope,
			"inserted", result.Inserted,
			"merged", result.Merged,
		)
	case ingest.OutcomeSpooled:
		p.logger.Warn("turn spooled, store locked", "scope", result.Scope, "seq", result.SpoolSeq)
	case ingest.OutcomeDenied:
		p.logger.Info("turn denied by scope policy", "scope", result.Scope)
	}
}
