package strategy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/diviora/ingest/internal/domain"
	"github.com/diviora/ingest/internal/logger"
)

// SQLStrategy ingests a table from a remote SQL Server source. Connection
// settings are resolved from the DataSource record at execution time, not
// carried in the job message, so credentials never transit the queue and
// cannot go stale there.
type SQLStrategy struct {
	sources   SourceStore
	rows      RowStore
	tracker   *StatusTracker
	resolver  HostResolver
	batchSize int
	open      func(dsn string) (*sql.DB, error)
}

// NewSQLStrategy creates a SQL ingestion strategy.
func NewSQLStrategy(sources SourceStore, rows RowStore, tracker *StatusTracker, resolver HostResolver, batchSize int) *SQLStrategy {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if resolver == nil {
		resolver = MapHostResolver(nil)
	}
	return &SQLStrategy{
		sources:   sources,
		rows:      rows,
		tracker:   tracker,
		resolver:  resolver,
		batchSize: batchSize,
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("sqlserver", dsn)
		},
	}
}

// Execute runs one SQL table ingestion attempt. Rows stream through a
// server-side cursor; nothing is materialized beyond one batch.
func (s *SQLStrategy) Execute(ctx context.Context, msg *domain.JobMessage) error {
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
		logger.FieldJobID:        msg.JobID,
		logger.FieldDataSourceID: msg.DataSourceID,
		"table":                  msg.FileName,
	}).Info("Starting SQL ingestion")

	src, err := s.sources.GetByID(ctx, msg.DataSourceID)
	if err != nil {
		return s.fail(ctx, msg.JobID, 0, fmt.Errorf("failed to load data source %d: %w", msg.DataSourceID, err))
	}

	conn := src.SQLConnection()
	if conn.Host == "" || conn.Database == "" {
		return s.fail(ctx, msg.JobID, 0, fmt.Errorf("data source %d has incomplete connection configuration", src.ID))
	}
	conn.Host = s.resolver.Resolve(conn.Host)

	db, err := s.open(buildDSN(conn))
	if err != nil {
		return s.fail(ctx, msg.JobID, 0, fmt.Errorf("failed to open source connection: %w", err))
	}
	defer db.Close()

	query := BuildSelectQuery(msg.FileName, msg.ColumnMappings())

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return s.fail(ctx, msg.JobID, 0, fmt.Errorf("failed to query source table %s: %w", msg.FileName, err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return s.fail(ctx, msg.JobID, 0, fmt.Errorf("failed to read result columns: %w", err))
	}

	sourceName := "SQL_TABLE_" + msg.FileName
	total := 0
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

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return s.fail(ctx, msg.JobID, inserted, fmt.Errorf("failed to scan source row: %w", err))
		}
		total++

		data, err := json.Marshal(rowToRecord(columns, values))
		if err != nil {
			return s.fail(ctx, msg.JobID, inserted, fmt.Errorf("failed to serialize row %d: %w", total, err))
		}

		batch = append(batch, domain.ProcessedRow{
			JobID:          msg.JobID,
			RowNumber:      total,
			Data:           string(data),
			SourceFileName: sourceName,
			CreatedAt:      time.Now().UTC(),
		})

		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return s.fail(ctx, msg.JobID, inserted, fmt.Errorf("failed to persist row batch: %w", err))
			}
		}
	}
	if err := rows.Err(); err != nil {
		return s.fail(ctx, msg.JobID, inserted, fmt.Errorf("source row stream failed: %w", err))
	}

	if err := flush(); err != nil {
		return s.fail(ctx, msg.JobID, inserted, fmt.Errorf("failed to persist row batch: %w", err))
	}

	s.tracker.MarkCompleted(ctx, msg.JobID, inserted)

	log.WithFields(logger.Fields{
		logger.FieldJobID: msg.JobID,
		"table":           msg.FileName,
		"rows":            total,
	}).Info("SQL ingestion completed")
	return nil
}

func (s *SQLStrategy) fail(ctx context.Context, jobID uint, records int, err error) error {
	s.tracker.MarkFailed(ctx, jobID, err.Error(), records)
	return err
}

// buildDSN builds a sqlserver connection URL from source configuration.
func buildDSN(c domain.SQLConnectionConfig) string {
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
	}
	q := url.Values{}
	q.Set("database", c.Database)
	q.Set("encrypt", "disable")
	q.Set("trustServerCertificate", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// rowToRecord converts one scanned row into a JSON-encodable map. Driver
// byte slices become strings and timestamps become RFC3339; everything else
// the driver produced already encodes cleanly.
func rowToRecord(columns []string, values []interface{}) map[string]interface{} {
	record := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		switch v := values[i].(type) {
		case []byte:
			record[col] = string(v)
		case time.Time:
			record[col] = v.UTC().Format(time.RFC3339)
		default:
			record[col] = v
		}
	}
	return record
}
