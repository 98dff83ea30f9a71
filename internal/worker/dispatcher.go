package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/diviora/ingest/internal/domain"
	"github.com/diviora/ingest/internal/logger"
	"github.com/diviora/ingest/internal/queue"
	"github.com/diviora/ingest/internal/strategy"
)

// Dispatcher drives the consumer loop: it receives queue messages,
// deserializes them into job messages, and hands them to the strategy
// registry. It performs no business logic itself; its only contract is that
// fatal errors propagate to enable redelivery while malformed envelopes are
// swallowed to avoid infinite poison-message loops.
type Dispatcher struct {
	queue      queue.Queue
	registry   *strategy.Registry
	workers    int
	jobTimeout time.Duration
	claimWait  time.Duration
	reapEvery  time.Duration
}

// Config holds dispatcher tuning.
type Config struct {
	Workers    int
	JobTimeout time.Duration
}

// NewDispatcher creates a dispatcher over the given queue and registry.
func NewDispatcher(q queue.Queue, registry *strategy.Registry, cfg *Config) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		queue:      q,
		registry:   registry,
		workers:    workers,
		jobTimeout: cfg.JobTimeout,
		claimWait:  5 * time.Second,
		reapEvery:  time.Minute,
	}
}

// Run blocks, claiming messages and processing them on a bounded worker
// pool until the context is canceled. A reaper periodically requeues
// messages stranded in the processing list by crashed consumers.
func (d *Dispatcher) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.WithField("workers", d.workers).Info("Job dispatcher started")

	go d.reap(ctx)

	deliveries := make(chan *queue.Delivery)
	done := make(chan struct{})

	for i := 0; i < d.workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for delivery := range deliveries {
				d.Handle(ctx, delivery)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(deliveries)
			for i := 0; i < d.workers; i++ {
				<-done
			}
			log.Info("Job dispatcher stopped")
			return
		default:
		}

		delivery, err := d.queue.Receive(ctx, d.claimWait)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) && ctx.Err() == nil {
				log.WithError(err).Error("Failed to receive from queue")
			}
			continue
		}

		select {
		case deliveries <- delivery:
		case <-ctx.Done():
			// Leave the claimed message in processing; the reaper of the
			// next worker instance will requeue it.
			close(deliveries)
			for i := 0; i < d.workers; i++ {
				<-done
			}
			return
		}
	}
}

// Handle processes one delivery end to end, including its queue
// acknowledgement. Malformed bodies are dropped, unsupported source types
// are dead-lettered, and execution errors nack the message so the queue's
// retry policy applies.
func (d *Dispatcher) Handle(ctx context.Context, delivery *queue.Delivery) {
	ctx = logger.SetCorrelationID(ctx, delivery.CorrelationID)
	log := logger.FromContext(ctx)

	var msg domain.JobMessage
	body := bytes.TrimSpace(delivery.Body)
	if len(body) == 0 || json.Unmarshal(body, &msg) != nil || msg.JobID == 0 {
		log.WithField("attempt", delivery.Attempt).Error("Received empty or invalid message body, dropping")
		d.ack(ctx, delivery)
		return
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:        msg.JobID,
		logger.FieldDataSourceID: msg.DataSourceID,
		logger.FieldSourceType:   msg.FileType,
	})
	log = logger.FromContext(ctx)

	strat, err := d.registry.Resolve(msg.FileType)
	if err != nil {
		var unsupported *strategy.UnsupportedSourceTypeError
		if errors.As(err, &unsupported) {
			log.WithError(err).Error("Unsupported source type, dead-lettering message")
			if dlErr := d.queue.DeadLetter(ctx, delivery); dlErr != nil {
				log.WithError(dlErr).Error("Failed to dead-letter message")
			}
			return
		}
		log.WithError(err).Error("Failed to resolve strategy")
		d.nack(ctx, delivery)
		return
	}

	execCtx := ctx
	if d.jobTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := strat.Execute(execCtx, &msg); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"attempt":              delivery.Attempt,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Error("Job processing failed")
		d.nack(ctx, delivery)
		return
	}

	log.WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).Info("Job processed successfully")
	d.ack(ctx, delivery)
}

func (d *Dispatcher) ack(ctx context.Context, delivery *queue.Delivery) {
	if err := d.queue.Ack(ctx, delivery); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to ack message")
	}
}

func (d *Dispatcher) nack(ctx context.Context, delivery *queue.Delivery) {
	if err := d.queue.Nack(ctx, delivery); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to nack message")
	}
}

func (d *Dispatcher) reap(ctx context.Context) {
	ticker := time.NewTicker(d.reapEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moved, err := d.queue.RequeueStale(ctx, 100)
			if err != nil {
				logger.FromContext(ctx).WithError(err).Error("Failed to requeue stale messages")
				continue
			}
			if moved > 0 {
				logger.FromContext(ctx).WithField(logger.FieldCount, moved).Warn("Requeued stale messages")
			}
		}
	}
}
