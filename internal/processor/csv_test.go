package processor

import (
	"strings"
	"testing"
	"time"
)

func newTestProcessor() *CSVProcessor {
	p := NewCSVProcessor()
	p.now = func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func TestProcessMixedValidity(t *testing.T) {
	csvData := strings.Join([]string{
		"id,name,email,age",
		"1,Alice,alice@example.com,30",
		",Bob,bob@example.com,25",
		"3,Charlie,charlie@example.com,",
	}, "\n")

	result := newTestProcessor().Process([]byte(csvData), "people.csv")

	if result.TotalRows != 3 {
		t.Errorf("TotalRows = %d, want 3", result.TotalRows)
	}
	if result.ValidRows != 2 {
		t.Errorf("ValidRows = %d, want 2", result.ValidRows)
	}
	if result.InvalidRows != 1 {
		t.Errorf("InvalidRows = %d, want 1", result.InvalidRows)
	}
	if result.TotalRows != result.ValidRows+result.InvalidRows {
		t.Errorf("TotalRows %d != ValidRows %d + InvalidRows %d",
			result.TotalRows, result.ValidRows, result.InvalidRows)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", result.Errors)
	}
	want := "Row 3: Missing required value for column 'id'"
	if result.Errors[0] != want {
		t.Errorf("Errors[0] = %q, want %q", result.Errors[0], want)
	}

	// The invalid row leaves no trace in Rows.
	for _, row := range result.Rows {
		if row["name"] == "Bob" {
			t.Error("invalid row was retained")
		}
	}
}

func TestProcessSyntheticFields(t *testing.T) {
	csvData := "id,name,email\n1,Alice,alice@example.com\n2,Bob,bob@example.com"

	result := newTestProcessor().Process([]byte(csvData), "people.csv")

	if len(result.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(result.Rows))
	}

	// Header is row 1; data rows number from 2.
	if got := result.Rows[0][FieldRowNumber]; got != 2 {
		t.Errorf("first row %s = %v, want 2", FieldRowNumber, got)
	}
	if got := result.Rows[1][FieldRowNumber]; got != 3 {
		t.Errorf("second row %s = %v, want 3", FieldRowNumber, got)
	}
	if got := result.Rows[0][FieldProcessedAt]; got != "2024-03-15T12:00:00Z" {
		t.Errorf("%s = %v, want fixed timestamp", FieldProcessedAt, got)
	}
}

func TestProcessNormalizesValues(t *testing.T) {
	csvData := "id,name,email,score,active,joined\n1,Alice,alice@example.com,87.5,true,2024-01-01"

	result := newTestProcessor().Process([]byte(csvData), "people.csv")

	if len(result.Rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(result.Rows))
	}
	row := result.Rows[0]
	if row["id"] != float64(1) {
		t.Errorf("id = %#v, want float64(1)", row["id"])
	}
	if row["score"] != 87.5 {
		t.Errorf("score = %#v, want 87.5", row["score"])
	}
	if row["active"] != true {
		t.Errorf("active = %#v, want true", row["active"])
	}
	if row["joined"] != "2024-01-01T00:00:00Z" {
		t.Errorf("joined = %#v, want canonical date", row["joined"])
	}
}

func TestProcessSkipsEmptyRows(t *testing.T) {
	csvData := strings.Join([]string{
		"id,name,email",
		"1,Alice,alice@example.com",
		",,",
		"   , , ",
		"2,Bob,bob@example.com",
	}, "\n")

	result := newTestProcessor().Process([]byte(csvData), "people.csv")

	if result.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2 (empty rows excluded)", result.TotalRows)
	}
	if result.ValidRows != 2 {
		t.Errorf("ValidRows = %d, want 2", result.ValidRows)
	}
	if result.InvalidRows != 0 {
		t.Errorf("InvalidRows = %d, want 0", result.InvalidRows)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}
}

func TestProcessDegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty buffer", ""},
		{"header only", "id,name,email"},
		{"header and empty rows", "id,name,email\n,,\n,,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestProcessor().Process([]byte(tt.data), "empty.csv")

			if result.TotalRows != 0 || result.ValidRows != 0 || result.InvalidRows != 0 {
				t.Errorf("counts = %d/%d/%d, want all zero",
					result.TotalRows, result.ValidRows, result.InvalidRows)
			}
			if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "empty or has no valid data rows") {
				t.Errorf("Errors = %v, want single empty-file error", result.Errors)
			}
			if result.Rows == nil || result.Columns == nil {
				t.Error("Rows and Columns must be non-nil empty slices")
			}
		})
	}
}

func TestProcessStripsBOM(t *testing.T) {
	csvData := "\xEF\xBB\xBFid,name,email\n1,Alice,alice@example.com"

	result := newTestProcessor().Process([]byte(csvData), "people.csv")

	if len(result.Columns) == 0 || result.Columns[0] != "id" {
		t.Errorf("Columns = %v, want first column %q", result.Columns, "id")
	}
	if result.ValidRows != 1 {
		t.Errorf("ValidRows = %d, want 1", result.ValidRows)
	}
}

func TestProcessShortRecordInvalidatesCriticalColumn(t *testing.T) {
	// The email column is missing entirely from the second data row.
	csvData := "id,name,email\n1,Alice,alice@example.com\n2,Bob"

	result := newTestProcessor().Process([]byte(csvData), "people.csv")

	if result.ValidRows != 1 {
		t.Errorf("ValidRows = %d, want 1", result.ValidRows)
	}
	if result.InvalidRows != 1 {
		t.Errorf("InvalidRows = %d, want 1", result.InvalidRows)
	}
	want := "Row 3: Missing required value for column 'email'"
	found := false
	for _, e := range result.Errors {
		if e == want {
			found = true
		}
	}
	if !found {
		t.Errorf("Errors = %v, want %q", result.Errors, want)
	}
}

func TestIsCriticalColumnSubstringMatch(t *testing.T) {
	p := NewCSVProcessor()
	tests := []struct {
		column string
		want   bool
	}{
		{"id", true},
		{"ID", true},
		{"user_id", true},
		{"Name", true},
		{"customerEmail", true},
		{"age", false},
		{"score", false},
	}
	for _, tt := range tests {
		if got := p.isCriticalColumn(tt.column); got != tt.want {
			t.Errorf("isCriticalColumn(%q) = %v, want %v", tt.column, got, tt.want)
		}
	}
}
