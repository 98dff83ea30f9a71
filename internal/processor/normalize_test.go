package processor

import (
	"reflect"
	"strconv"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  interface{}
	}{
		{"empty string", "", nil},
		{"whitespace only", "   \t ", nil},
		{"integer", "42", float64(42)},
		{"negative integer", "-7", float64(-7)},
		{"decimal", "3.14", 3.14},
		{"leading dot decimal", ".5", 0.5},
		{"negative decimal", "-0.25", -0.25},
		{"padded number", "  19 ", float64(19)},
		{"true lowercase", "true", true},
		{"true mixed case", "TrUe", true},
		{"false uppercase", "FALSE", false},
		{"date only", "2024-03-15", "2024-03-15T00:00:00Z"},
		{"datetime T separator", "2024-03-15T10:30:00", "2024-03-15T10:30:00Z"},
		{"datetime space separator", "2024-03-15 10:30:00", "2024-03-15T10:30:00Z"},
		{"rfc3339 with offset", "2024-03-15T10:30:00+02:00", "2024-03-15T08:30:00Z"},
		{"date prefix but unparseable", "2024-03-15junk", "2024-03-15junk"},
		{"plain string", "hello", "hello"},
		{"padded string", "  hello  ", "hello"},
		{"not quite numeric", "1.2.3", "1.2.3"},
		{"thousands separator stays string", "1,200", "1,200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

// A bare year is a number, never a date: the numeric check runs first.
func TestNormalizeOrderTieBreaks(t *testing.T) {
	if got := Normalize("2024"); got != float64(2024) {
		t.Errorf("Normalize(\"2024\") = %#v, want float64(2024)", got)
	}
}

// Formatting a normalized numeric and normalizing again must not change it.
func TestNormalizeNumericIdempotent(t *testing.T) {
	for _, input := range []string{"42", "-7", "3.5", "0.125"} {
		first, ok := Normalize(input).(float64)
		if !ok {
			t.Fatalf("Normalize(%q) did not produce float64", input)
		}
		second := Normalize(strconv.FormatFloat(first, 'f', -1, 64))
		if second != first {
			t.Errorf("round trip of %q: %v != %v", input, second, first)
		}
	}
}
