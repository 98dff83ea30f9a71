package queue

import (
	"context"
	"errors"
	"time"

	"github.com/diviora/ingest/internal/domain"
)

// ErrEmpty is returned by Receive when no message arrived within the
// blocking window. Callers loop on it.
var ErrEmpty = errors.New("queue: no message available")

// Delivery is one received message. Attempt counts deliveries of the same
// message, starting at 1.
type Delivery struct {
	CorrelationID string
	Body          []byte
	Attempt       int
}

// Queue is the at-least-once message transport between the producer API and
// the worker. A handler that acks removes the message; a nack either
// requeues it for redelivery or parks it in the dead-letter list once the
// attempt budget is spent.
type Queue interface {
	// Publish enqueues a job message and returns its correlation ID.
	Publish(ctx context.Context, msg *domain.JobMessage) (string, error)

	// Receive blocks up to timeout for the next message, claiming it into
	// the processing list. Returns ErrEmpty on timeout.
	Receive(ctx context.Context, timeout time.Duration) (*Delivery, error)

	// Ack removes a claimed message permanently.
	Ack(ctx context.Context, d *Delivery) error

	// Nack releases a claimed message for redelivery, or dead-letters it
	// when the maximum attempt count has been reached.
	Nack(ctx context.Context, d *Delivery) error

	// DeadLetter parks a claimed message immediately, bypassing retries.
	// Used for messages that can never succeed (unsupported source type).
	DeadLetter(ctx context.Context, d *Delivery) error

	// RequeueStale moves claimed-but-unacked messages back onto the queue.
	// Run periodically so messages held by a crashed consumer are
	// redelivered.
	RequeueStale(ctx context.Context, max int64) (int64, error)
}
