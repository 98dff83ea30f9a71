package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SourceType represents the type of data source.
// Values include SourceTypeCSV, SourceTypeSQL, and SourceTypeAPI.
type SourceType string

const (
	SourceTypeCSV SourceType = "csv"
	SourceTypeSQL SourceType = "sql"
	SourceTypeAPI SourceType = "api"
)

// SourceConfig is a custom type for storing JSON configuration in the
// database. Its schema varies by source type and is parsed lazily by the
// strategy that needs it.
type SourceConfig map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (c SourceConfig) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (c *SourceConfig) Scan(value interface{}) error {
	if value == nil {
		*c = SourceConfig{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan SourceConfig")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, c)
}

// GetString returns a string-valued config key or "" when absent.
func (c SourceConfig) GetString(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// GetInt returns an int-valued config key or 0 when absent. JSON numbers
// decode as float64, so both forms are accepted.
func (c SourceConfig) GetInt(key string) int {
	switch v := c[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// DataSource represents a configured origin of data: an uploaded file or an
// external database connection. It owns zero or more ingestion jobs.
type DataSource struct {
	ID            uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string       `gorm:"type:text;not null" json:"name"`
	Type          SourceType   `gorm:"type:text;not null" json:"type"`
	Configuration SourceConfig `gorm:"type:text" json:"configuration"`
	IsActive      bool         `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName returns the database table name for DataSource.
func (DataSource) TableName() string {
	return "data_sources"
}

// SQLConnectionConfig holds connection settings for a remote SQL source,
// extracted from a DataSource configuration blob.
type SQLConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// SQLConnection extracts the remote database connection settings from the
// configuration blob. Missing keys come back zero-valued; the strategy
// validates before dialing.
func (d *DataSource) SQLConnection() SQLConnectionConfig {
	cfg := d.Configuration
	port := cfg.GetInt("port")
	if port == 0 {
		port = 1433
	}
	return SQLConnectionConfig{
		Host:     cfg.GetString("host"),
		Port:     port,
		Database: cfg.GetString("database"),
		Username: cfg.GetString("username"),
		Password: cfg.GetString("password"),
	}
}
