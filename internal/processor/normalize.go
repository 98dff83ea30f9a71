package processor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numericPattern = regexp.MustCompile(`^-?\d*\.?\d+$`)
	isoDatePrefix  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// dateLayouts are tried in order when a value carries an ISO date prefix.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a raw parsed cell value into a typed value: nil,
// float64, bool, canonical ISO-8601 date string, or the trimmed string.
// It is total: every input maps to exactly one output and nothing panics.
//
// The check order is significant and must not be reordered: numeric before
// boolean before date. "2024" is a number, not a year.
func Normalize(raw string) interface{} {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if numericPattern.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
		return trimmed
	}

	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}

	if isoDatePrefix.MatchString(trimmed) {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
		return trimmed
	}

	return trimmed
}
