package strategy

import (
	"testing"

	"github.com/diviora/ingest/internal/domain"
)

func TestBuildSelectQuery(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		mappings []domain.ColumnMapping
		want     string
	}{
		{
			name:  "no mapping selects everything",
			table: "Customers",
			want:  "SELECT * FROM Customers",
		},
		{
			name:  "empty mapping selects everything",
			table: "Customers",
			mappings: []domain.ColumnMapping{},
			want:  "SELECT * FROM Customers",
		},
		{
			name:  "single mapping",
			table: "Customers",
			mappings: []domain.ColumnMapping{
				{Source: "cust_name", Target: "name"},
			},
			want: "SELECT [cust_name] AS [name] FROM Customers",
		},
		{
			name:  "mapping order preserved",
			table: "Orders",
			mappings: []domain.ColumnMapping{
				{Source: "order_id", Target: "id"},
				{Source: "order_total", Target: "total"},
				{Source: "placed_at", Target: "createdAt"},
			},
			want: "SELECT [order_id] AS [id], [order_total] AS [total], [placed_at] AS [createdAt] FROM Orders",
		},
		{
			name:  "brackets stripped from identifiers",
			table: "Customers",
			mappings: []domain.ColumnMapping{
				{Source: "[cust]name]", Target: "na[me"},
			},
			want: "SELECT [custname] AS [name] FROM Customers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSelectQuery(tt.table, tt.mappings)
			if got != tt.want {
				t.Errorf("BuildSelectQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapHostResolver(t *testing.T) {
	resolver := MapHostResolver{"sqlserver": "203.0.113.10"}

	if got := resolver.Resolve("sqlserver"); got != "203.0.113.10" {
		t.Errorf("Resolve(sqlserver) = %q, want override", got)
	}
	if got := resolver.Resolve("db.example.com"); got != "db.example.com" {
		t.Errorf("Resolve(db.example.com) = %q, want passthrough", got)
	}

	var nilResolver MapHostResolver
	if got := nilResolver.Resolve("host"); got != "host" {
		t.Errorf("nil resolver Resolve(host) = %q, want passthrough", got)
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	csv := &stubStrategy{}
	registry.Register("CSV", csv)

	got, err := registry.Resolve("csv")
	if err != nil {
		t.Fatalf("Resolve(csv) error: %v", err)
	}
	if got != csv {
		t.Error("Resolve(csv) returned wrong strategy")
	}

	// Case-insensitive on both sides.
	if _, err := registry.Resolve("Csv"); err != nil {
		t.Errorf("Resolve(Csv) error: %v", err)
	}
}

func TestRegistryResolveUnsupported(t *testing.T) {
	registry := NewRegistry()
	registry.Register("csv", &stubStrategy{})

	_, err := registry.Resolve("xml")
	if err == nil {
		t.Fatal("Resolve(xml) succeeded, want error")
	}
	unsupported, ok := err.(*UnsupportedSourceTypeError)
	if !ok {
		t.Fatalf("error type = %T, want *UnsupportedSourceTypeError", err)
	}
	if unsupported.FileType != "xml" {
		t.Errorf("FileType = %q, want xml", unsupported.FileType)
	}
}
