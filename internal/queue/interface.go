package queue

import (
	"context"
	"time"
)

// MessageInterface abstracts a delivered queue message for testability
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the interface for the background job queue
type JobQueue interface {
	// Enqueue adds a job to the queue
	Enqueue(ctx context.Context, job *Job) error

	// Consume returns a channel of messages delivered as they arrive. The
	// caller acknowledges each message. Prefetch bounds how many
	// unacknowledged messages this consumer holds. Both channels close
	// when the context is cancelled or the connection is lost.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection
	Close() error
}

// DLQPurger removes dead-lettered messages past their retention
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
