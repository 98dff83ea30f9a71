package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/diviora/ingest/internal/domain"
	"github.com/diviora/ingest/internal/logger"
	"github.com/diviora/ingest/internal/queue"
	"github.com/diviora/ingest/internal/repository"
	"github.com/diviora/ingest/internal/storage"
)

// ErrSourceNotSQL is returned when a SQL-only operation targets a source of
// another type.
var ErrSourceNotSQL = errors.New("data source is not a SQL source")

// IngestionService is the producer side of the pipeline: it accepts
// uploads, registers data sources, creates jobs, and publishes job messages
// for the worker to consume.
type IngestionService struct {
	sources   *repository.DataSourceRepository
	jobs      *repository.JobRepository
	processed *repository.ProcessedRowRepository
	storage   storage.ObjectStorage
	queue     queue.Queue
	logger    *logger.Logger
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	sources *repository.DataSourceRepository,
	jobs *repository.JobRepository,
	processed *repository.ProcessedRowRepository,
	objectStorage storage.ObjectStorage,
	q queue.Queue,
	log *logger.Logger,
) *IngestionService {
	return &IngestionService{
		sources:   sources,
		jobs:      jobs,
		processed: processed,
		storage:   objectStorage,
		queue:     q,
		logger:    log,
	}
}

func (s *IngestionService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// UploadResult describes an accepted CSV upload.
type UploadResult struct {
	DataSource    *domain.DataSource    `json:"dataSource"`
	Job           *domain.IngestionJob  `json:"job"`
	CorrelationID string                `json:"correlationId"`
	BlobURL       string                `json:"blobUrl"`
}

// ProcessCSVUpload stores an uploaded CSV in blob storage, registers a data
// source and a queued job for it in one transaction, and publishes the job
// message. The job stays queued until the worker claims it.
func (s *IngestionService) ProcessCSVUpload(ctx context.Context, fileName string, data []byte) (*UploadResult, error) {
	if err := s.storage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}

	blobPath := fmt.Sprintf("csv-uploads/%d-%s", time.Now().UnixMilli(), fileName)
	if err := s.storage.Upload(ctx, blobPath, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		return nil, fmt.Errorf("failed to upload file to blob storage: %w", err)
	}

	blobURL := s.storage.GetURL(blobPath)

	src := &domain.DataSource{
		Name: "CSV Upload - " + fileName,
		Type: domain.SourceTypeCSV,
		Configuration: domain.SourceConfig{
			"fileName":   fileName,
			"fileSize":   len(data),
			"uploadedAt": time.Now().UTC().Format(time.RFC3339),
			"blobUrl":    blobURL,
			"blobPath":   blobPath,
		},
		IsActive: true,
	}
	job := &domain.IngestionJob{
		Status:          domain.JobStatusQueued,
		BlobStoragePath: blobPath,
	}

	if err := s.sources.CreateWithJob(ctx, src, job); err != nil {
		// The job row never existed; remove the orphaned blob
		if delErr := s.storage.Delete(ctx, blobPath); delErr != nil {
			s.log(ctx).WithError(delErr).WithField("blob_path", blobPath).Error("Failed to roll back blob upload")
		}
		return nil, fmt.Errorf("failed to create data source and job: %w", err)
	}

	correlationID, err := s.queue.Publish(ctx, &domain.JobMessage{
		JobID:        job.ID,
		DataSourceID: src.ID,
		FileName:     fileName,
		BlobPath:     blobPath,
		FileType:     string(domain.SourceTypeCSV),
		Metadata: map[string]interface{}{
			"fileSize": len(data),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldJobID:         job.ID,
		logger.FieldDataSourceID:  src.ID,
		logger.FieldCorrelationID: correlationID,
	}).Info("CSV upload queued for processing")

	return &UploadResult{
		DataSource:    src,
		Job:           job,
		CorrelationID: correlationID,
		BlobURL:       blobURL,
	}, nil
}

// TriggerIngestion creates a job for an existing data source and, for SQL
// sources, publishes the job message. API sources are registered but not
// yet ingestible; their job stays pending.
func (s *IngestionService) TriggerIngestion(ctx context.Context, sourceID uint) (*domain.IngestionJob, error) {
	src, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load data source %d: %w", sourceID, err)
	}

	job := &domain.IngestionJob{
		DataSourceID: src.ID,
		Status:       domain.JobStatusPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if src.Type != domain.SourceTypeSQL {
		return job, nil
	}

	tableName := src.Configuration.GetString("tableName")
	if tableName == "" {
		tableName = "Unknown_Table"
	}

	metadata := map[string]interface{}{}
	if mapping, ok := src.Configuration["columnMapping"]; ok {
		metadata["columnMapping"] = mapping
	}

	correlationID, err := s.queue.Publish(ctx, &domain.JobMessage{
		JobID:        job.ID,
		DataSourceID: src.ID,
		FileName:     tableName,
		FileType:     string(domain.SourceTypeSQL),
		Metadata:     metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldJobID:         job.ID,
		logger.FieldDataSourceID:  src.ID,
		logger.FieldCorrelationID: correlationID,
		"table":                   tableName,
	}).Info("SQL ingestion queued")

	return job, nil
}

// CreateDataSource registers a new data source.
func (s *IngestionService) CreateDataSource(ctx context.Context, src *domain.DataSource) error {
	return s.sources.Create(ctx, src)
}

// ListDataSources lists registered data sources.
func (s *IngestionService) ListDataSources(ctx context.Context) ([]domain.DataSource, error) {
	return s.sources.List(ctx)
}

// GetJob returns one job by ID.
func (s *IngestionService) GetJob(ctx context.Context, jobID uint) (*domain.IngestionJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListJobsForSource lists jobs for a data source, newest first.
func (s *IngestionService) ListJobsForSource(ctx context.Context, sourceID uint) ([]domain.IngestionJob, error) {
	return s.jobs.ListBySource(ctx, sourceID)
}

// ProcessedDataPage is one page of processed rows with the stored JSON
// decoded for the response.
type ProcessedDataPage struct {
	Data       []ProcessedDataItem `json:"data"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	Total      int64               `json:"total"`
	TotalPages int64               `json:"totalPages"`
}

type ProcessedDataItem struct {
	ID        uint                   `json:"id"`
	RowNumber int                    `json:"rowNumber"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"createdAt"`
}

// GetProcessedData returns one page of a job's processed rows, ordered by
// row number.
func (s *IngestionService) GetProcessedData(ctx context.Context, jobID uint, page, limit int) (*ProcessedDataPage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, total, err := s.processed.ListByJob(ctx, jobID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed rows: %w", err)
	}

	items := make([]ProcessedDataItem, 0, len(rows))
	for _, row := range rows {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			// Stored data is always written as valid JSON; treat anything
			// else as corruption worth surfacing
			return nil, fmt.Errorf("stored row %d is not valid JSON: %w", row.ID, err)
		}
		items = append(items, ProcessedDataItem{
			ID:        row.ID,
			RowNumber: row.RowNumber,
			Data:      data,
			CreatedAt: row.CreatedAt,
		})
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &ProcessedDataPage{
		Data:       items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// DownloadOriginalFile streams back the originally uploaded blob for a job
// together with its original file name.
func (s *IngestionService) DownloadOriginalFile(ctx context.Context, jobID uint) (string, []byte, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load job %d: %w", jobID, err)
	}
	if job.BlobStoragePath == "" {
		return "", nil, fmt.Errorf("job %d has no stored file", jobID)
	}

	reader, err := s.storage.Download(ctx, job.BlobStoragePath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read blob: %w", err)
	}

	fileName := ""
	if src, err := s.sources.GetByID(ctx, job.DataSourceID); err == nil {
		fileName = src.Configuration.GetString("fileName")
	}
	if fileName == "" {
		fileName = job.BlobStoragePath
	}
	return fileName, data, nil
}

// DiscoverTables connects to a SQL data source and lists its base tables,
// classifying credential and connectivity failures into friendly messages.
func (s *IngestionService) DiscoverTables(ctx context.Context, sourceID uint) ([]string, error) {
	src, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load data source %d: %w", sourceID, err)
	}
	if src.Type != domain.SourceTypeSQL {
		return nil, ErrSourceNotSQL
	}

	conn := src.SQLConnection()
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(conn.Username, conn.Password),
		Host:   fmt.Sprintf("%s:%d", conn.Host, conn.Port),
	}
	q := url.Values{}
	q.Set("database", conn.Database)
	q.Set("encrypt", "disable")
	q.Set("trustServerCertificate", "true")
	u.RawQuery = q.Encode()

	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open source connection: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'")
	if err != nil {
		return nil, classifyDiscoveryError(err, conn)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDiscoveryError(err, conn)
	}
	return tables, nil
}

func classifyDiscoveryError(err error, conn domain.SQLConnectionConfig) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "login failed") || strings.Contains(msg, "login error"):
		return fmt.Errorf("login failed: invalid credentials for user '%s'", conn.Username)
	case strings.Contains(msg, "unable to open tcp connection") || strings.Contains(msg, "no such host") || strings.Contains(msg, "connection refused"):
		return fmt.Errorf("connection failed: could not reach host '%s'", conn.Host)
	default:
		return fmt.Errorf("database error: %w", err)
	}
}
