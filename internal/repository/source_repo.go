package repository

import (
	"context"

	"github.com/diviora/ingest/internal/domain"
	"gorm.io/gorm"
)

// DataSourceRepository handles data source persistence.
type DataSourceRepository struct {
	db *gorm.DB
}

// NewDataSourceRepository creates a new DataSourceRepository.
func NewDataSourceRepository(db *gorm.DB) *DataSourceRepository {
	return &DataSourceRepository{db: db}
}

// Create inserts a new data source record.
func (r *DataSourceRepository) Create(ctx context.Context, src *domain.DataSource) error {
	return r.db.WithContext(ctx).Create(src).Error
}

// GetByID retrieves a data source by its ID.
func (r *DataSourceRepository) GetByID(ctx context.Context, id uint) (*domain.DataSource, error) {
	var src domain.DataSource
	if err := r.db.WithContext(ctx).First(&src, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &src, nil
}

// List returns all data sources, newest first.
func (r *DataSourceRepository) List(ctx context.Context) ([]domain.DataSource, error) {
	var sources []domain.DataSource
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

// CreateWithJob creates a data source and its first ingestion job in one
// transaction, so a failed job insert never leaves an orphaned source.
func (r *DataSourceRepository) CreateWithJob(ctx context.Context, src *domain.DataSource, job *domain.IngestionJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(src).Error; err != nil {
			return err
		}
		job.DataSourceID = src.ID
		return tx.Create(job).Error
	})
}
