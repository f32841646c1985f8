// Package relay provides an asynchronous worker pool that archives delivered
// conversation messages with the provided archive.Driver and publishes them
// with the provided eventstream.Publisher.
//
// The pool decouples persistence from the follower's delivery path. Jobs are
// sharded by conversation ID onto per-worker queues, so one conversation's
// messages are always handled in order by the same worker.
package relay

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/eventstream"
	"github.com/papercomputeco/chainchat/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("relay pool closed")

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Conversation is the human readable conversation name, if known.
	Conversation string

	Message conversation.Message
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Archive persists messages. Optional.
	Archive archive.Driver

	// Publisher emits message events. Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of each worker's job queue (defaults to 256).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes relay jobs asynchronously via a sharded worker pool.
type Pool struct {
	config *Config
	queues []chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
	now    func() time.Time

	// mu guards closed against Enqueue racing Close.
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

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queues: make([]chan Job, c.NumWorkers),
		logger: c.Logger,
		now:    time.Now,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		wp.queues[i] = make(chan Job, c.QueueSize)
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job to its conversation's worker. When the queue is full
// it blocks until there is room or ctx is done; jobs are never dropped.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	shard := p.shard(job.Message.ConversationID)

	select {
	case p.queues[shard] <- job:
		p.logger.Debug("job queued",
			"conversation_id", job.Message.ConversationID.String(),
			"pointer", uint64(job.Message.Pointer),
			"worker_id", shard,
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this after the follower feeding the pool has returned.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) shard(id conversation.ID) uint {
	return uint(binary.BigEndian.Uint64(id[:8]) % uint64(len(p.queues)))
}

// worker is the inner worker thread that continuously pulls jobs off its queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queues[id] {
		p.processJob(job)
	}

	p.logger.Debug("relay worker stopped", "worker_id", id)
}

// processJob archives then publishes a message. Failures are logged and do
// not stop the worker.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	msg := job.Message

	if p.config.Archive != nil {
		isNew, err := p.config.Archive.Put(ctx, archive.NewRecord(msg))
		if err != nil {
			p.logger.Error("archiving message failed",
				"conversation_id", msg.ConversationID.String(),
				"pointer", uint64(msg.Pointer),
				"error", err,
			)
			return
		}

		p.logger.Debug("archived message",
			"conversation_id", msg.ConversationID.String(),
			"pointer", uint64(msg.Pointer),
			"is_new", isNew,
		)

		// Replays of archived messages are not published twice.
		if !isNew {
			return
		}
	}

	if p.config.Publisher != nil {
		event := eventstream.NewMessageDeliveredEvent(job.Conversation, msg, p.now())
		if err := p.config.Publisher.PublishMessage(ctx, event); err != nil {
			p.logger.Warn("failed to publish message event",
				"conversation_id", msg.ConversationID.String(),
				"pointer", uint64(msg.Pointer),
				"error", err,
			)
		}
	}
}
