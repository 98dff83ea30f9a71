package strategy

import (
	"context"
	"time"

	"github.com/diviora/ingest/internal/logger"
)

// StatusTracker updates persisted job state with idempotent, best-effort
// semantics. Terminal-status writes are logged and swallowed on failure so
// that a status-tracking problem never masks or replaces the processing
// error that triggered the update.
type StatusTracker struct {
	jobs JobStore
	now  func() time.Time
}

// NewStatusTracker creates a tracker over the given job store.
func NewStatusTracker(jobs JobStore) *StatusTracker {
	return &StatusTracker{jobs: jobs, now: time.Now}
}

// MarkProcessing claims the job for this execution attempt. It returns
// false when another executor holds the job or it already completed; the
// caller skips execution in that case. Unlike the terminal transitions a
// claim error does propagate, because without a claim nothing may run.
func (t *StatusTracker) MarkProcessing(ctx context.Context, jobID uint) (bool, error) {
	claimed, err := t.jobs.ClaimProcessing(ctx, jobID, t.now())
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// MarkCompleted records a successful attempt. Failures are swallowed.
func (t *StatusTracker) MarkCompleted(ctx context.Context, jobID uint, records int) {
	if err := t.jobs.MarkCompleted(ctx, jobID, records, t.now()); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldJobID, jobID).
			Error("Failed to update job status to completed")
	}
}

// MarkFailed records a failed attempt with the best available message and
// the partial record count. Failures are swallowed.
func (t *StatusTracker) MarkFailed(ctx context.Context, jobID uint, errMsg string, records int) {
	if err := t.jobs.MarkFailed(ctx, jobID, errMsg, records, t.now()); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldJobID, jobID).
			Error("Failed to update job status to failed")
	}
}
