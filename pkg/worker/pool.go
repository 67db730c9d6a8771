// Package worker provides an asynchronous worker pool that persists
// completed answers to the history store and publishes them to the event
// stream.
//
// The pool decouples storage and publishing from the chat controller so a
// slow database or broker never delays the next question.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/murmur/pkg/eventstream"
	"github.com/papercomputeco/murmur/pkg/history"
	"github.com/papercomputeco/murmur/pkg/logger"
	"github.com/papercomputeco/murmur/pkg/session"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
	defaultJobTimeout        = 15 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Completion session.Completion
}

// Config is the configuration options for the worker pool.
type Config struct {
	// History is the optional store for completed answers.
	History history.Driver

	// Publisher is the optional event stream publisher. Events are only
	// published once the history write succeeded.
	Publisher eventstream.Publisher

	// Client identifies this process in published events.
	Client string

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// JobTimeout bounds each job's storage and publish calls.
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes completion jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Record enqueues c, making the pool usable as a session.Recorder.
func (p *Pool) Record(c session.Completion) {
	p.Enqueue(Job{Completion: c})
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed",
			"session_id", job.Completion.SessionID,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"session_id", job.Completion.SessionID,
			"query", job.Completion.Query,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"session_id", job.Completion.SessionID,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// It does not close the history driver or publisher.
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

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob stores the completion and then publishes it.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	c := job.Completion

	if p.config.History != nil {
		entry := history.FromCompletion(c)
		if err := p.config.History.Append(ctx, entry); err != nil {
			p.logger.Error("history storage failed",
				"session_id", c.SessionID,
				"error", err,
			)
			return
		}

		p.logger.Info("completion stored",
			"id", entry.ID,
			"session_id", c.SessionID,
		)
	}

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewCompletionEvent(c, p.config.Client, time.Now())
	if err := p.config.Publisher.PublishCompletion(ctx, event); err != nil {
		p.logger.Warn("failed to publish completion event",
			"event_id", event.EventID,
			"session_id", c.SessionID,
			"error", err,
		)
		return
	}

	p.logger.Debug("completion event published", "event_id", event.EventID)
}
