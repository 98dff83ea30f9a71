package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diviora/ingest/internal/domain"
	"github.com/diviora/ingest/internal/queue"
	"github.com/diviora/ingest/internal/strategy"
)

// fakeQueue records acknowledgement calls.
type fakeQueue struct {
	acked      []*queue.Delivery
	nacked     []*queue.Delivery
	deadLetter []*queue.Delivery
}

func (f *fakeQueue) Publish(ctx context.Context, msg *domain.JobMessage) (string, error) {
	return "corr-1", nil
}

func (f *fakeQueue) Receive(ctx context.Context, timeout time.Duration) (*queue.Delivery, error) {
	return nil, queue.ErrEmpty
}

func (f *fakeQueue) Ack(ctx context.Context, d *queue.Delivery) error {
	f.acked = append(f.acked, d)
	return nil
}

func (f *fakeQueue) Nack(ctx context.Context, d *queue.Delivery) error {
	f.nacked = append(f.nacked, d)
	return nil
}

func (f *fakeQueue) DeadLetter(ctx context.Context, d *queue.Delivery) error {
	f.deadLetter = append(f.deadLetter, d)
	return nil
}

func (f *fakeQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	return 0, nil
}

// recordingStrategy captures executions and returns a fixed error.
type recordingStrategy struct {
	executed []*domain.JobMessage
	err      error
}

func (s *recordingStrategy) Execute(ctx context.Context, msg *domain.JobMessage) error {
	s.executed = append(s.executed, msg)
	return s.err
}

func newTestDispatcher(q queue.Queue, strategies map[string]strategy.Strategy) *Dispatcher {
	registry := strategy.NewRegistry()
	for fileType, s := range strategies {
		registry.Register(fileType, s)
	}
	return NewDispatcher(q, registry, &Config{Workers: 1})
}

func delivery(body string) *queue.Delivery {
	return &queue.Delivery{CorrelationID: "corr-1", Body: []byte(body), Attempt: 1}
}

func TestHandleSuccessAcks(t *testing.T) {
	q := &fakeQueue{}
	csv := &recordingStrategy{}
	d := newTestDispatcher(q, map[string]strategy.Strategy{"csv": csv})

	d.Handle(context.Background(), delivery(`{"jobId":7,"dataSourceId":3,"fileName":"a.csv","fileType":"csv"}`))

	if len(csv.executed) != 1 {
		t.Fatalf("executed %d times, want 1", len(csv.executed))
	}
	if csv.executed[0].JobID != 7 {
		t.Errorf("JobID = %d, want 7", csv.executed[0].JobID)
	}
	if len(q.acked) != 1 || len(q.nacked) != 0 || len(q.deadLetter) != 0 {
		t.Errorf("ack/nack/dead = %d/%d/%d, want 1/0/0", len(q.acked), len(q.nacked), len(q.deadLetter))
	}
}

func TestHandleExecutionErrorNacks(t *testing.T) {
	q := &fakeQueue{}
	csv := &recordingStrategy{err: errors.New("processing failed")}
	d := newTestDispatcher(q, map[string]strategy.Strategy{"csv": csv})

	d.Handle(context.Background(), delivery(`{"jobId":7,"fileType":"csv"}`))

	if len(q.nacked) != 1 || len(q.acked) != 0 {
		t.Errorf("ack/nack = %d/%d, want 0/1", len(q.acked), len(q.nacked))
	}
}

func TestHandleUnsupportedTypeDeadLetters(t *testing.T) {
	q := &fakeQueue{}
	csv := &recordingStrategy{}
	d := newTestDispatcher(q, map[string]strategy.Strategy{"csv": csv})

	d.Handle(context.Background(), delivery(`{"jobId":7,"fileType":"xml"}`))

	if len(csv.executed) != 0 {
		t.Error("strategy executed for unsupported type")
	}
	if len(q.deadLetter) != 1 || len(q.acked) != 0 || len(q.nacked) != 0 {
		t.Errorf("ack/nack/dead = %d/%d/%d, want 0/0/1", len(q.acked), len(q.nacked), len(q.deadLetter))
	}
}

func TestHandleMalformedBodiesDropped(t *testing.T) {
	bodies := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"whitespace", "   "},
		{"invalid json", `{"jobId":`},
		{"missing job id", `{"fileType":"csv"}`},
		{"zero job id", `{"jobId":0,"fileType":"csv"}`},
	}

	for _, tt := range bodies {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{}
			csv := &recordingStrategy{}
			d := newTestDispatcher(q, map[string]strategy.Strategy{"csv": csv})

			d.Handle(context.Background(), delivery(tt.body))

			if len(csv.executed) != 0 {
				t.Error("strategy executed for malformed body")
			}
			// Dropped, not retried: the message is acked away.
			if len(q.acked) != 1 || len(q.nacked) != 0 || len(q.deadLetter) != 0 {
				t.Errorf("ack/nack/dead = %d/%d/%d, want 1/0/0", len(q.acked), len(q.nacked), len(q.deadLetter))
			}
		})
	}
}

func TestHandleCaseInsensitiveFileType(t *testing.T) {
	q := &fakeQueue{}
	csv := &recordingStrategy{}
	d := newTestDispatcher(q, map[string]strategy.Strategy{"csv": csv})

	d.Handle(context.Background(), delivery(`{"jobId":7,"fileType":"CSV"}`))

	if len(csv.executed) != 1 {
		t.Errorf("executed %d times, want 1", len(csv.executed))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	q := &fakeQueue{}
	d := newTestDispatcher(q, map[string]strategy.Strategy{})
	d.claimWait = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
