package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/diviora/ingest/internal/domain"
	"github.com/diviora/ingest/internal/logger"
	"github.com/diviora/ingest/internal/processor"
	"github.com/diviora/ingest/internal/storage"
)

// DefaultBatchSize bounds how many processed rows accumulate before a
// flush. Large enough to amortize round-trips, small enough to bound peak
// memory and transaction size.
const DefaultBatchSize = 1000

// CSVStrategy ingests an uploaded CSV file: download from blob storage,
// parse/validate/normalize, and bulk-persist the surviving rows.
type CSVStrategy struct {
	storage   storage.ObjectStorage
	processor *processor.CSVProcessor
	rows      RowStore
	tracker   *StatusTracker
	batchSize int
}

// NewCSVStrategy creates a CSV ingestion strategy. batchSize <= 0 selects
// the default.
func NewCSVStrategy(objectStorage storage.ObjectStorage, rows RowStore, tracker *StatusTracker, batchSize int) *CSVStrategy {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &CSVStrategy{
		storage:   objectStorage,
		processor: processor.NewCSVProcessor(),
		rows:      rows,
		tracker:   tracker,
		batchSize: batchSize,
	}
}

// Execute runs one CSV ingestion attempt for the given job message.
func (s *CSVStrategy) Execute(ctx context.Context, msg *domain.JobMessage) error {
	log := logger.FromContext(ctx)

	claimed, err := s.tracker.MarkProcessing(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to claim job %d: %w", msg.JobID, err)
	}
	if !claimed {
		log.WithField(logger.FieldJobID, msg.JobID).Warn("Job not claimable, skipping duplicate delivery")
		return nil
	}

	log.WithFields(logger.Fields{
		logger.FieldJobID: msg.JobID,
		"file_name":       msg.FileName,
		"blob_path":       msg.BlobPath,
	}).Info("Starting CSV ingestion")

	reader, err := s.storage.Download(ctx, msg.BlobPath)
	if err != nil {
		return s.fail(ctx, msg.JobID, 0, fmt.Errorf("failed to download blob %s: %w", msg.BlobPath, err))
	}
	defer reader.Close()

	buf, err := io.ReadAll(reader)
	if err != nil {
		return s.fail(ctx, msg.JobID, 0, fmt.Errorf("failed to read blob %s: %w", msg.BlobPath, err))
	}

	result := s.processor.Process(buf, msg.FileName)
	if result.ValidRows == 0 {
		detail := "no valid rows"
		if len(result.Errors) > 0 {
			detail = strings.Join(result.Errors, "; ")
		}
		return s.fail(ctx, msg.JobID, 0, fmt.Errorf("CSV processing produced no valid rows: %s", detail))
	}

	inserted := 0
	batch := make([]domain.ProcessedRow, 0, s.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.rows.CreateBatch(ctx, batch); err != nil {
			return err
		}
		inserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, row := range result.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return s.fail(ctx, msg.JobID, inserted, fmt.Errorf("failed to serialize row: %w", err))
		}

		rowNumber, _ := row[processor.FieldRowNumber].(int)
		batch = append(batch, domain.ProcessedRow{
			JobID:          msg.JobID,
			RowNumber:      rowNumber,
			Data:           string(data),
			SourceFileName: msg.FileName,
			CreatedAt:      time.Now().UTC(),
		})

		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return s.fail(ctx, msg.JobID, inserted, fmt.Errorf("failed to persist row batch: %w", err))
			}
		}
	}

	if err := flush(); err != nil {
		return s.fail(ctx, msg.JobID, inserted, fmt.Errorf("failed to persist row batch: %w", err))
	}

	s.tracker.MarkCompleted(ctx, msg.JobID, inserted)

	log.WithFields(logger.Fields{
		logger.FieldJobID: msg.JobID,
		"valid_rows":      result.ValidRows,
		"invalid_rows":    result.InvalidRows,
		"errors":          len(result.Errors),
	}).Info("CSV ingestion completed")
	return nil
}

// fail records the failure on the job and re-raises the error so the queue
// layer applies its redelivery policy.
func (s *CSVStrategy) fail(ctx context.Context, jobID uint, records int, err error) error {
	s.tracker.MarkFailed(ctx, jobID, err.Error(), records)
	return err
}
