package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/diviora/ingest/internal/config"
	"github.com/diviora/ingest/internal/domain"
)

// envelope wraps the wire message with queue bookkeeping. Only the envelope
// lives in Redis; handlers see the payload bytes.
type envelope struct {
	CorrelationID string          `json:"correlationId"`
	Payload       json.RawMessage `json:"payload"`
}

// redisQueue implements a reliable queue over Redis lists.
// Publish: LPUSH queue
// Receive: BRPOPLPUSH queue -> processing, HINCRBY attempts
// Ack:     LREM processing, HDEL attempts
// Nack:    LREM processing, then LPUSH queue or dead-letter by attempt count
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
	deadLetterKey string
	attemptsKey   string
	maxAttempts   int
}

// NewRedisQueue creates a Queue backed by the given Redis client.
func NewRedisQueue(rdb *redis.Client, cfg *config.RedisConfig) Queue {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &redisQueue{
		rdb:           rdb,
		queueKey:      cfg.QueueKey,
		processingKey: cfg.ProcessingKey,
		deadLetterKey: cfg.DeadLetterKey,
		attemptsKey:   cfg.AttemptsKey,
		maxAttempts:   maxAttempts,
	}
}

func (q *redisQueue) Publish(ctx context.Context, msg *domain.JobMessage) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job message: %w", err)
	}

	env := envelope{
		CorrelationID: uuid.New().String(),
		Payload:       payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := q.rdb.LPush(ctx, q.queueKey, raw).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue message: %w", err)
	}
	return env.CorrelationID, nil
}

func (q *redisQueue) Receive(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	raw, err := q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Not even an envelope; a poison entry someone pushed by hand.
		// Hand it to the dispatcher as a malformed body so it gets dropped.
		return &Delivery{Body: []byte(raw), Attempt: 1}, nil
	}

	attempt, err := q.rdb.HIncrBy(ctx, q.attemptsKey, env.CorrelationID, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count delivery attempt: %w", err)
	}

	return &Delivery{
		CorrelationID: env.CorrelationID,
		Body:          env.Payload,
		Attempt:       int(attempt),
	}, nil
}

func (q *redisQueue) Ack(ctx context.Context, d *Delivery) error {
	raw, err := q.raw(d)
	if err != nil {
		return err
	}
	if err := q.rdb.LRem(ctx, q.processingKey, 1, raw).Err(); err != nil {
		return err
	}
	if d.CorrelationID != "" {
		_ = q.rdb.HDel(ctx, q.attemptsKey, d.CorrelationID).Err()
	}
	return nil
}

func (q *redisQueue) Nack(ctx context.Context, d *Delivery) error {
	if d.Attempt >= q.maxAttempts {
		return q.DeadLetter(ctx, d)
	}

	raw, err := q.raw(d)
	if err != nil {
		return err
	}
	if err := q.rdb.LRem(ctx, q.processingKey, 1, raw).Err(); err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.queueKey, raw).Err()
}

func (q *redisQueue) DeadLetter(ctx context.Context, d *Delivery) error {
	raw, err := q.raw(d)
	if err != nil {
		return err
	}
	if err := q.rdb.LRem(ctx, q.processingKey, 1, raw).Err(); err != nil {
		return err
	}
	if d.CorrelationID != "" {
		_ = q.rdb.HDel(ctx, q.attemptsKey, d.CorrelationID).Err()
	}
	return q.rdb.LPush(ctx, q.deadLetterKey, raw).Err()
}

// RequeueStale moves items from processing back to the queue. It's a simple
// reaper giving at-least-once delivery when a consumer dies mid-message.
func (q *redisQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		raw, err := q.rdb.RPopLPush(ctx, q.processingKey, q.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		if raw != "" {
			moved++
		}
	}
	return moved, nil
}

// raw rebuilds the exact list entry for LREM. Entries that never parsed as
// envelopes round-trip through Body unchanged.
func (q *redisQueue) raw(d *Delivery) (string, error) {
	if d.CorrelationID == "" {
		return string(d.Body), nil
	}
	raw, err := json.Marshal(envelope{
		CorrelationID: d.CorrelationID,
		Payload:       d.Body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to rebuild envelope: %w", err)
	}
	return string(raw), nil
}
