package strategy

import (
	"fmt"
	"strings"

	"github.com/diviora/ingest/internal/domain"
)

// BuildSelectQuery builds the projection query for a remote table. Without
// a mapping it selects everything; with one it projects source columns onto
// target names in mapping order.
//
// Identifiers are bracket-quoted with embedded brackets stripped rather than
// escaped, and the table name is interpolated as-is. This mirrors upstream
// behavior and is a known weakness, not injection-proofing: table names must
// come from trusted configuration, never from user input.
func BuildSelectQuery(table string, mappings []domain.ColumnMapping) string {
	if len(mappings) == 0 {
		return fmt.Sprintf("SELECT * FROM %s", table)
	}

	parts := make([]string, 0, len(mappings))
	for _, m := range mappings {
		parts = append(parts, fmt.Sprintf("[%s] AS [%s]", stripBrackets(m.Source), stripBrackets(m.Target)))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(parts, ", "), table)
}

func stripBrackets(identifier string) string {
	identifier = strings.ReplaceAll(identifier, "[", "")
	return strings.ReplaceAll(identifier, "]", "")
}
