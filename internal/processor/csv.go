package processor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

// Synthetic fields attached to every retained row.
const (
	FieldRowNumber   = "_rowNumber"
	FieldProcessedAt = "_processedAt"
)

// defaultCriticalColumns invalidate a row when their value is missing.
// Matched case-insensitively as substrings of the header name.
var defaultCriticalColumns = []string{"id", "name", "email"}

// Result is the outcome of processing one CSV buffer. It always accounts
// for every data row: TotalRows = ValidRows + InvalidRows, with fully-empty
// rows excluded from all three.
type Result struct {
	TotalRows   int                      `json:"totalRows"`
	ValidRows   int                      `json:"validRows"`
	InvalidRows int                      `json:"invalidRows"`
	Columns     []string                 `json:"columns"`
	Rows        []map[string]interface{} `json:"rows"`
	Errors      []string                 `json:"errors"`
}

// CSVProcessor parses, validates, and normalizes uploaded CSV buffers.
type CSVProcessor struct {
	criticalColumns []string
	now             func() time.Time
}

// NewCSVProcessor creates a processor with the default critical-column set.
func NewCSVProcessor() *CSVProcessor {
	return &CSVProcessor{
		criticalColumns: defaultCriticalColumns,
		now:             time.Now,
	}
}

// Process parses a CSV buffer into validated, normalized row records.
// The first row is the header; every retained row is tagged with its
// 1-based position (header occupies row 1) and a processing timestamp.
//
// No error escapes as a Go error: parse and validation failures are folded
// into Result.Errors with zeroed counts, and the caller decides whether an
// empty result fails the job.
func (p *CSVProcessor) Process(buf []byte, fileName string) *Result {
	result := &Result{Columns: []string{}, Rows: []map[string]interface{}{}, Errors: []string{}}

	// Strip UTF-8 BOM before parsing
	buf = bytes.TrimPrefix(buf, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(buf))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("CSV parsing error: %v", err))
		return result
	}

	if len(records) < 2 {
		result.Errors = append(result.Errors, "CSV parsing error: CSV file is empty or has no valid data rows")
		return result
	}

	columns := make([]string, len(records[0]))
	for i, col := range records[0] {
		columns[i] = strings.TrimSpace(col)
	}
	result.Columns = columns

	processedAt := p.now().UTC().Format(time.RFC3339)

	for i, record := range records[1:] {
		// Header occupies row 1, so the first data row is row 2.
		rowNumber := i + 2

		if isEmptyRecord(record) {
			continue
		}
		result.TotalRows++

		cleaned := make(map[string]interface{}, len(columns)+2)
		valid := true

		for colIdx, column := range columns {
			var value string
			if colIdx < len(record) {
				value = record[colIdx]
			}

			normalized := Normalize(value)
			cleaned[column] = normalized

			if p.isCriticalColumn(column) && (normalized == nil || normalized == "") {
				result.Errors = append(result.Errors,
					fmt.Sprintf("Row %d: Missing required value for column '%s'", rowNumber, column))
				valid = false
			}
		}

		if valid {
			cleaned[FieldRowNumber] = rowNumber
			cleaned[FieldProcessedAt] = processedAt
			result.Rows = append(result.Rows, cleaned)
		}
	}

	if result.TotalRows == 0 {
		empty := &Result{Columns: []string{}, Rows: []map[string]interface{}{}, Errors: []string{}}
		empty.Errors = append(empty.Errors, "CSV parsing error: CSV file is empty or has no valid data rows")
		return empty
	}

	result.ValidRows = len(result.Rows)
	result.InvalidRows = result.TotalRows - result.ValidRows
	return result
}

// isEmptyRecord reports whether every field trims to empty. Such rows are
// skipped silently and count as neither valid nor invalid.
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func (p *CSVProcessor) isCriticalColumn(column string) bool {
	lower := strings.ToLower(column)
	for _, critical := range p.criticalColumns {
		if strings.Contains(lower, critical) {
			return true
		}
	}
	return false
}
