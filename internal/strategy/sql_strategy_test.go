package strategy

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diviora/ingest/internal/domain"
)

type fakeSourceStore struct {
	source *domain.DataSource
	err    error
}

func (f *fakeSourceStore) GetByID(ctx context.Context, id uint) (*domain.DataSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.source, nil
}

func sqlMessage() *domain.JobMessage {
	return &domain.JobMessage{
		JobID:        9,
		DataSourceID: 4,
		FileName:     "Customers",
		FileType:     "sql",
	}
}

func TestSQLStrategySkipsUnclaimableJob(t *testing.T) {
	store := &fakeJobStore{claimed: false}
	sources := &fakeSourceStore{err: errors.New("must not be called")}
	s := NewSQLStrategy(sources, &fakeRowStore{}, NewStatusTracker(store), nil, 0)

	if err := s.Execute(context.Background(), sqlMessage()); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
}

func TestSQLStrategyMissingSourceMarksFailed(t *testing.T) {
	store := &fakeJobStore{claimed: true}
	sources := &fakeSourceStore{err: errors.New("record not found")}
	s := NewSQLStrategy(sources, &fakeRowStore{}, NewStatusTracker(store), nil, 0)

	err := s.Execute(context.Background(), sqlMessage())
	if err == nil {
		t.Fatal("Execute succeeded despite missing source")
	}
	if store.failedID != 9 {
		t.Error("MarkFailed not recorded")
	}
}

func TestSQLStrategyIncompleteConfigMarksFailed(t *testing.T) {
	store := &fakeJobStore{claimed: true}
	sources := &fakeSourceStore{source: &domain.DataSource{
		ID:   4,
		Type: domain.SourceTypeSQL,
		Configuration: domain.SourceConfig{
			"host": "db.example.com",
			// database missing
		},
	}}
	s := NewSQLStrategy(sources, &fakeRowStore{}, NewStatusTracker(store), nil, 0)

	err := s.Execute(context.Background(), sqlMessage())
	if err == nil {
		t.Fatal("Execute succeeded despite incomplete connection configuration")
	}
	if !strings.Contains(store.failedMsg, "incomplete connection configuration") {
		t.Errorf("failure message = %q", store.failedMsg)
	}
}

func TestSQLStrategyResolvesHostBeforeConnecting(t *testing.T) {
	store := &fakeJobStore{claimed: true}
	sources := &fakeSourceStore{source: &domain.DataSource{
		ID:   4,
		Type: domain.SourceTypeSQL,
		Configuration: domain.SourceConfig{
			"host":     "sqlserver",
			"port":     1433,
			"database": "Sales",
			"username": "reader",
			"password": "secret",
		},
	}}

	resolver := MapHostResolver{"sqlserver": "203.0.113.10"}
	s := NewSQLStrategy(sources, &fakeRowStore{}, NewStatusTracker(store), resolver, 0)

	var gotDSN string
	s.open = func(dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return nil, errors.New("stop here")
	}

	if err := s.Execute(context.Background(), sqlMessage()); err == nil {
		t.Fatal("Execute succeeded, want injected open failure")
	}
	if !strings.Contains(gotDSN, "203.0.113.10:1433") {
		t.Errorf("DSN %q does not carry the resolved host", gotDSN)
	}
	if !strings.Contains(gotDSN, "database=Sales") {
		t.Errorf("DSN %q does not carry the database", gotDSN)
	}
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(domain.SQLConnectionConfig{
		Host:     "db.example.com",
		Port:     1433,
		Database: "Sales",
		Username: "reader",
		Password: "p@ss/word",
	})

	if !strings.HasPrefix(dsn, "sqlserver://") {
		t.Errorf("DSN %q missing scheme", dsn)
	}
	if !strings.Contains(dsn, "db.example.com:1433") {
		t.Errorf("DSN %q missing host", dsn)
	}
	if !strings.Contains(dsn, "database=Sales") {
		t.Errorf("DSN %q missing database", dsn)
	}
	if !strings.Contains(dsn, "encrypt=disable") {
		t.Errorf("DSN %q missing encrypt setting", dsn)
	}
	if strings.Contains(dsn, "p@ss/word") {
		t.Errorf("DSN %q carries unescaped password", dsn)
	}
}

func TestRowToRecord(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	columns := []string{"id", "name", "payload", "created_at", "deleted_at"}
	values := []interface{}{int64(1), "Alice", []byte("blob"), ts, nil}

	record := rowToRecord(columns, values)

	if record["id"] != int64(1) {
		t.Errorf("id = %#v", record["id"])
	}
	if record["payload"] != "blob" {
		t.Errorf("payload = %#v, want byte slice as string", record["payload"])
	}
	if record["created_at"] != "2024-03-15T09:30:00Z" {
		t.Errorf("created_at = %#v, want UTC RFC3339", record["created_at"])
	}
	if v, ok := record["deleted_at"]; !ok || v != nil {
		t.Errorf("deleted_at = %#v, want explicit nil", v)
	}
}
