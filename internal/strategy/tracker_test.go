package strategy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/diviora/ingest/internal/domain"
)

// stubStrategy is a no-op strategy for registry tests.
type stubStrategy struct{}

func (s *stubStrategy) Execute(ctx context.Context, msg *domain.JobMessage) error { return nil }

// fakeJobStore records job lifecycle calls and simulates claim outcomes.
type fakeJobStore struct {
	claimed    bool
	claimErr   error
	claimCalls int
	startedAt  *time.Time

	completedID      uint
	completedRecords int
	completedErr     error

	failedID      uint
	failedMsg     string
	failedRecords int
	failedErr     error
}

func (f *fakeJobStore) ClaimProcessing(ctx context.Context, id uint, now time.Time) (bool, error) {
	f.claimCalls++
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if !f.claimed {
		return false, nil
	}
	// startedAt is set exactly once, on the first successful claim.
	if f.startedAt == nil {
		t := now
		f.startedAt = &t
	}
	return true, nil
}

func (f *fakeJobStore) MarkCompleted(ctx context.Context, id uint, records int, now time.Time) error {
	f.completedID = id
	f.completedRecords = records
	return f.completedErr
}

func (f *fakeJobStore) MarkFailed(ctx context.Context, id uint, errMsg string, records int, now time.Time) error {
	f.failedID = id
	f.failedMsg = errMsg
	f.failedRecords = records
	return f.failedErr
}

// fakeRowStore collects persisted batches and can fail after N batches.
type fakeRowStore struct {
	batches   [][]domain.ProcessedRow
	failAfter int
	err       error
}

func (f *fakeRowStore) CreateBatch(ctx context.Context, rows []domain.ProcessedRow) error {
	if f.err != nil && len(f.batches) >= f.failAfter {
		return f.err
	}
	batch := make([]domain.ProcessedRow, len(rows))
	copy(batch, rows)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeRowStore) totalRows() int {
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

// fakeStorage serves a single object body.
type fakeStorage struct {
	body []byte
	err  error
}

func (f *fakeStorage) EnsureBucket(ctx context.Context) error { return nil }
func (f *fakeStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return nil
}
func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.body)), nil
}
func (f *fakeStorage) GetURL(key string) string                             { return "http://storage/" + key }
func (f *fakeStorage) Delete(ctx context.Context, key string) error         { return nil }
func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) { return true, nil }

func TestMarkProcessingPropagatesClaimError(t *testing.T) {
	store := &fakeJobStore{claimErr: errors.New("db down")}
	tracker := NewStatusTracker(store)

	_, err := tracker.MarkProcessing(context.Background(), 7)
	if err == nil {
		t.Fatal("MarkProcessing swallowed the claim error")
	}
}

func TestMarkProcessingReportsClaimOutcome(t *testing.T) {
	store := &fakeJobStore{claimed: true}
	tracker := NewStatusTracker(store)

	claimed, err := tracker.MarkProcessing(context.Background(), 7)
	if err != nil || !claimed {
		t.Fatalf("MarkProcessing = (%v, %v), want (true, nil)", claimed, err)
	}

	store.claimed = false
	claimed, err = tracker.MarkProcessing(context.Background(), 7)
	if err != nil || claimed {
		t.Fatalf("MarkProcessing = (%v, %v), want (false, nil)", claimed, err)
	}
}

func TestTerminalTransitionsSwallowFailures(t *testing.T) {
	store := &fakeJobStore{
		completedErr: errors.New("write failed"),
		failedErr:    errors.New("write failed"),
	}
	tracker := NewStatusTracker(store)

	// Neither call may panic or surface the store error.
	tracker.MarkCompleted(context.Background(), 7, 100)
	tracker.MarkFailed(context.Background(), 7, "boom", 40)

	if store.completedID != 7 || store.completedRecords != 100 {
		t.Errorf("MarkCompleted recorded (%d, %d), want (7, 100)", store.completedID, store.completedRecords)
	}
	if store.failedID != 7 || store.failedMsg != "boom" || store.failedRecords != 40 {
		t.Errorf("MarkFailed recorded (%d, %q, %d)", store.failedID, store.failedMsg, store.failedRecords)
	}
}

func TestStartedAtSetOnce(t *testing.T) {
	store := &fakeJobStore{claimed: true}
	tracker := NewStatusTracker(store)

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	calls := 0
	tracker.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Hour)
	}

	if _, err := tracker.MarkProcessing(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	first := *store.startedAt

	if _, err := tracker.MarkProcessing(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if !store.startedAt.Equal(first) {
		t.Errorf("startedAt moved from %v to %v on reclaim", first, *store.startedAt)
	}
}
