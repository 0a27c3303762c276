package core

// sheet.go turns an uploaded workbook or CSV file into RawRows.
//
// Decoding rules shared by both formats:
//   - the first row is the header and is skipped
//   - empty cells become nil
//   - rows whose first cell is empty are dropped (trailing blank rows);
//     whitespace is not empty and reaches the validator
//
// XLSX cells are read raw. A numeric cell in the date column whose style
// carries a date number format is an Excel serial date and is converted to
// time.Time; every other cell stays text so that "20250820" typed as a
// number still reaches the date parser as YYYYMMDD.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptySheet is returned when the file has no header row.
var ErrEmptySheet = errors.New("empty file")

// ErrInvalidSheet wraps decoder failures for files that cannot be read.
var ErrInvalidSheet = errors.New("unreadable sheet")

// ErrFileTooLarge is returned when a file exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// SheetFormat identifies an uploaded file's format.
type SheetFormat string

const (
	FormatXLSX SheetFormat = "xlsx"
	FormatCSV  SheetFormat = "csv"
)

// FormatFromName derives the sheet format from a file name's extension.
func FormatFromName(name string) (SheetFormat, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch SheetFormat(ext) {
	case FormatXLSX, FormatCSV:
		return SheetFormat(ext), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// DecodeSheet reads every data row from r. The caller owns r and closes it.
func DecodeSheet(name string, r io.Reader) ([]RawRow, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return decodeXLSX(r)
	default:
		return decodeCSV(r)
	}
}

func decodeCSV(r io.Reader) ([]RawRow, error) {
	cr := csv.NewReader(NewSheetTextReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %w", ErrInvalidSheet, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptySheet
	}

	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := textRow(rec)
		if keepRow(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func decodeXLSX(r io.Reader) ([]RawRow, error) {
	opts := excelize.Options{RawCellValue: true}
	f, err := excelize.OpenReader(r, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xlsx: %w", ErrInvalidSheet, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return nil, ErrEmptySheet
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	iter, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrInvalidSheet, sheet, err)
	}
	defer iter.Close()

	var rows []RawRow
	sheetRow := 0
	for iter.Next() {
		sheetRow++
		cols, err := iter.Columns(opts)
		if err != nil {
			return nil, fmt.Errorf("%w: read row %d: %w", ErrInvalidSheet, sheetRow, err)
		}
		if sheetRow == 1 {
			continue
		}

		row := textRow(cols)
		if len(row) > ColDate && row[ColDate] != nil {
			if t, ok := xlsxSerialDate(f, sheet, sheetRow, CellText(row[ColDate]), date1904); ok {
				row[ColDate] = t
			}
		}
		if keepRow(row) {
			rows = append(rows, row)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrInvalidSheet, sheet, err)
	}
	if sheetRow == 0 {
		return nil, ErrEmptySheet
	}
	return rows, nil
}

// xlsxSerialDate converts a raw numeric date-column value when the cell is
// formatted as a date.
func xlsxSerialDate(f *excelize.File, sheet string, sheetRow int, raw string, date1904 bool) (any, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial <= 0 {
		return nil, false
	}
	axis, err := excelize.CoordinatesToCellName(ColDate+1, sheetRow)
	if err != nil {
		return nil, false
	}
	styleID, err := f.GetCellStyle(sheet, axis)
	if err != nil || styleID == 0 {
		return nil, false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || !isDateNumFmt(style) {
		return nil, false
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return nil, false
	}
	return dateOnly(t), true
}

// isDateNumFmt reports whether a cell style formats numbers as dates.
func isDateNumFmt(style *excelize.Style) bool {
	if style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return customFmtIsDate(*style.CustomNumFmt)
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 17, n == 22:
		return true
	case n >= 27 && n <= 36, n >= 50 && n <= 58:
		return true
	}
	return false
}

// customFmtIsDate looks for day or year tokens outside quoted literals.
func customFmtIsDate(format string) bool {
	inQuote := false
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == 'd' || r == 'y':
			return true
		}
	}
	return false
}

func textRow(cells []string) RawRow {
	row := make(RawRow, len(cells))
	for i, c := range cells {
		if c == "" {
			continue
		}
		row[i] = c
	}
	return row
}

// keepRow drops rows whose first cell is empty. A whitespace-only first cell
// is kept so that validation reports it.
func keepRow(row RawRow) bool {
	return len(row) > 0 && CellText(row[ColDate]) != ""
}
