package repository

import (
	"context"
	"time"

	"github.com/diviora/ingest/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles ingestion job persistence.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *domain.IngestionJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id uint) (*domain.IngestionJob, error) {
	var job domain.IngestionJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListBySource lists jobs for a data source, newest first.
func (r *JobRepository) ListBySource(ctx context.Context, sourceID uint) ([]domain.IngestionJob, error) {
	var jobs []domain.IngestionJob
	err := r.db.WithContext(ctx).
		Where("data_source_id = ?", sourceID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClaimProcessing transitions a job to processing with compare-and-swap
// semantics: the update only succeeds when the current status is a claimable
// one, so two concurrent deliveries of the same job cannot both execute.
// StartedAt is set only if currently null; redelivery does not reset the
// clock. Returns false when another executor already holds the job.
func (r *JobRepository) ClaimProcessing(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.IngestionJob{}).
		Where("id = ? AND status IN ?", id, []domain.JobStatus{
			domain.JobStatusPending,
			domain.JobStatusQueued,
			domain.JobStatusFailed,
		}).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusProcessing,
			"started_at": gorm.Expr("COALESCE(started_at, ?)", now),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkCompleted records a successful attempt: RecordsProcessed holds the
// count of valid rows written for this attempt and the error message is
// cleared.
func (r *JobRepository) MarkCompleted(ctx context.Context, id uint, records int, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.IngestionJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            domain.JobStatusCompleted,
			"records_processed": records,
			"error_message":     nil,
			"completed_at":      now,
			"updated_at":        now,
		}).Error
}

// MarkFailed records a failed attempt, preserving the partial record count.
func (r *JobRepository) MarkFailed(ctx context.Context, id uint, errMsg string, records int, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.IngestionJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            domain.JobStatusFailed,
			"records_processed": records,
			"error_message":     errMsg,
			"completed_at":      now,
			"updated_at":        now,
		}).Error
}
