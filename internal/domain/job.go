package domain

import "time"

// JobStatus represents the lifecycle state of an ingestion job.
// Values include JobStatusPending, JobStatusQueued, JobStatusProcessing,
// JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status ends a processing attempt.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IngestionJob represents one bounded ingestion execution against a data
// source, tracked through the status lifecycle. A failed job may be
// redelivered and re-enter processing; StartedAt keeps the first attempt's
// clock and RecordsProcessed is recomputed from scratch on every attempt.
type IngestionJob struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	DataSourceID     uint       `gorm:"not null;index" json:"data_source_id"`
	Status           JobStatus  `gorm:"type:text;default:pending;index" json:"status"`
	RecordsProcessed int        `gorm:"default:0" json:"records_processed"`
	ErrorMessage     *string    `gorm:"type:text" json:"error_message,omitempty"`
	BlobStoragePath  string     `gorm:"type:text" json:"blob_storage_path,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IngestionJob.
func (IngestionJob) TableName() string {
	return "ingestion_jobs"
}
