package domain

import "time"

// ProcessedRow represents one normalized, JSON-serialized source row
// persisted against a job. Rows are write-once and append-only: they are
// created exclusively by a strategy during one job execution and never
// mutated or shared across jobs.
type ProcessedRow struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID          uint      `gorm:"not null;index:idx_processed_rows_job_row" json:"job_id"`
	RowNumber      int       `gorm:"not null;index:idx_processed_rows_job_row" json:"row_number"`
	Data           string    `gorm:"type:text;not null" json:"data"`
	SourceFileName string    `gorm:"type:text" json:"source_file_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for ProcessedRow.
func (ProcessedRow) TableName() string {
	return "processed_rows"
}
