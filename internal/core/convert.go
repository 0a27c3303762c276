package core

// convert.go coerces spreadsheet cell values to the types the ledger needs.
//
// Cells arrive as whatever the sheet decoder produced: nil for an empty
// cell, strings for text, numbers for numeric cells and time.Time for cells
// the decoder recognised as dates. Everything except time.Time is coerced
// to its canonical text form before parsing, so "12", int64(12) and
// float64(12) all read as the integer 12.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// cellAt returns the cell at position i, or nil if the row is shorter.
func cellAt(row RawRow, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

// CellText renders a cell in its canonical text form. Nil renders as "".
func CellText(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(DateLayout)
	default:
		return fmt.Sprint(v)
	}
}

// isBlank reports whether a cell is nil or whitespace-only text.
func isBlank(cell any) bool {
	return strings.TrimSpace(CellText(cell)) == ""
}

// CleanCell trims whitespace and strips the Excel formula text prefix
// (="...") that some exports wrap around identifiers.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// cellDate resolves the date column. Cells already typed as dates bypass
// the text parser.
func cellDate(cell any) (time.Time, bool) {
	if t, ok := cell.(time.Time); ok {
		if t.IsZero() {
			return time.Time{}, false
		}
		return dateOnly(t), true
	}
	return ParseDate(CellText(cell))
}

// cellInt parses an integer cell. Integral floats are accepted because
// spreadsheet numbers are stored as floats. Values must fit the 32-bit
// quantity columns.
func cellInt(cell any) (int, error) {
	switch v := cell.(type) {
	case int:
		return int32Range(int64(v))
	case int64:
		return int32Range(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) ||
			v < math.MinInt32 || v > math.MaxInt32 {
			return 0, fmt.Errorf("invalid integer %v", v)
		}
		return int(v), nil
	}
	s := strings.TrimSpace(CellText(cell))
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return int(n), nil
}

func int32Range(n int64) (int, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("integer %d out of range", n)
	}
	return int(n), nil
}

// optionalText returns the trimmed text of a cell, or nil when the cell is
// absent or blank.
func optionalText(cell any) *string {
	s := CleanCell(CellText(cell))
	if s == "" {
		return nil
	}
	return &s
}
