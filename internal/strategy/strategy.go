package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diviora/ingest/internal/domain"
)

// Strategy is the polymorphic unit of work for one source type. Execute
// streams source data in bounded batches, persists row records, and drives
// the job status lifecycle. A returned error has already been recorded on
// the job and propagates so the queue can apply its redelivery policy.
type Strategy interface {
	Execute(ctx context.Context, msg *domain.JobMessage) error
}

// UnsupportedSourceTypeError is raised when a message names a source type
// with no registered strategy. Retrying cannot change the type, so the
// dispatcher routes these to the dead-letter list.
type UnsupportedSourceTypeError struct {
	FileType string
}

func (e *UnsupportedSourceTypeError) Error() string {
	return fmt.Sprintf("no strategy registered for source type %q", e.FileType)
}

// Registry is a closed mapping from source-type discriminator to strategy.
// New source types are added by registering a new variant, never by
// modifying dispatch logic.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register binds a strategy to a source-type discriminator.
func (r *Registry) Register(fileType string, s Strategy) {
	r.strategies[strings.ToLower(fileType)] = s
}

// Resolve returns the strategy for a discriminator, matched exactly against
// the lower-cased value. Unknown types fail with UnsupportedSourceTypeError.
func (r *Registry) Resolve(fileType string) (Strategy, error) {
	s, ok := r.strategies[strings.ToLower(fileType)]
	if !ok {
		return nil, &UnsupportedSourceTypeError{FileType: fileType}
	}
	return s, nil
}

// JobStore is the slice of job persistence the strategies need.
type JobStore interface {
	ClaimProcessing(ctx context.Context, id uint, now time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id uint, records int, now time.Time) error
	MarkFailed(ctx context.Context, id uint, errMsg string, records int, now time.Time) error
}

// RowStore persists processed rows in append-only batches.
type RowStore interface {
	CreateBatch(ctx context.Context, rows []domain.ProcessedRow) error
}

// SourceStore resolves data source records by ID.
type SourceStore interface {
	GetByID(ctx context.Context, id uint) (*domain.DataSource, error)
}
