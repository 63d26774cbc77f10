package devicebus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultOutboxSize is the queue depth used when NewOutbox is given a size below 1.
const DefaultOutboxSize = 256

type outboxItem struct {
	command string
	update  map[string]any
}

// Outbox queues outbound traffic so callers never wait on Redis.
//
// Puzzles publish commands and updates while holding their own lock; the outbox turns
// those calls into a channel send and a single goroutine (Run) performs the Redis writes
// in the order they were queued. When the queue is full the item is dropped and counted.
type Outbox struct {
	client  *Client
	queue   chan outboxItem
	logger  logrus.FieldLogger
	timeout time.Duration
	dropped atomic.Uint64
}

// NewOutbox creates an outbox that writes through the given client.
func NewOutbox(client *Client, size int, logger logrus.FieldLogger) *Outbox {
	if size < 1 {
		size = DefaultOutboxSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Outbox{
		client:  client,
		queue:   make(chan outboxItem, size),
		logger:  logger,
		timeout: 2 * time.Second,
	}
}

// Publish queues a device command for the outbound topic.
func (o *Outbox) Publish(command string) {
	o.enqueue(outboxItem{command: command})
}

// Mirror queues an observer update for the instance updates channel.
// The map must not be modified after it is handed over.
func (o *Outbox) Mirror(update map[string]any) {
	o.enqueue(outboxItem{update: update})
}

// Dropped returns how many items were discarded because the queue was full.
func (o *Outbox) Dropped() uint64 {
	return o.dropped.Load()
}

func (o *Outbox) enqueue(item outboxItem) {
	select {
	case o.queue <- item:
	default:
		o.dropped.Add(1)
		o.logger.WithField("command", item.command).Warn("outbox full, dropping item")
	}
}

// Run drains the queue until ctx is cancelled. Write failures are logged and skipped.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-o.queue:
			o.write(ctx, item)
		}
	}
}

func (o *Outbox) write(ctx context.Context, item outboxItem) {
	writeCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if item.update != nil {
		if err := o.client.PublishUpdate(writeCtx, item.update); err != nil {
			o.logger.WithError(err).Warn("failed to mirror update")
		}
		return
	}

	if err := o.client.PublishCommand(writeCtx, item.command); err != nil {
		o.logger.WithError(err).WithField("command", item.command).Warn("failed to publish command")
		return
	}
	o.logger.WithField("command", item.command).Debug("command published")
}
