package repository

import (
	"context"

	"github.com/diviora/ingest/internal/domain"
	"gorm.io/gorm"
)

// ProcessedRowRepository handles append-only persistence of processed rows.
type ProcessedRowRepository struct {
	db *gorm.DB
}

// NewProcessedRowRepository creates a new ProcessedRowRepository.
func NewProcessedRowRepository(db *gorm.DB) *ProcessedRowRepository {
	return &ProcessedRowRepository{db: db}
}

// CreateBatch inserts a batch of rows in a single statement. Rows are never
// updated after insert; a retried job re-inserts from scratch.
func (r *ProcessedRowRepository) CreateBatch(ctx context.Context, rows []domain.ProcessedRow) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ListByJob returns one page of processed rows for a job, ordered by row
// number, together with the total count.
func (r *ProcessedRowRepository) ListByJob(ctx context.Context, jobID uint, page, limit int) ([]domain.ProcessedRow, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&domain.ProcessedRow{}).
		Where("job_id = ?", jobID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.ProcessedRow
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("row_number ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
