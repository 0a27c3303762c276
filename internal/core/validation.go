package core

// validation.go checks raw sheet rows before anything touches storage.
//
// Validation is exhaustive: every row is checked and every problem in a row
// is reported, so a user can fix the whole sheet in one pass. Only a row
// that is too short to contain a date and SKU stops early, since none of
// the other checks mean anything without them.

// headerRows is the number of sheet rows before the first data row.
const headerRows = 1

// minRowCells is the number of leading cells every row must carry.
const minRowCells = 2

// quantityChecks lists the optional integer columns and their messages.
var quantityChecks = []struct {
	col     int
	field   string
	message string
}{
	{ColInbound, "inbound_quantity", "inbound quantity must be an integer"},
	{ColOutbound, "outbound_quantity", "outbound quantity must be an integer"},
	{ColBalance, "inventory_balance", "inventory balance must be an integer"},
}

// RowValidator validates ledger rows.
type RowValidator struct{}

// NewRowValidator creates a validator.
func NewRowValidator() *RowValidator {
	return &RowValidator{}
}

// RowNumber converts a zero-based data row index to its sheet row number.
func RowNumber(idx int) int {
	return idx + headerRows + 1
}

// Validate checks every row and returns all problems in row order.
// An empty result means the batch may proceed.
func (v *RowValidator) Validate(rows []RawRow) []RowError {
	var errs []RowError
	for i, row := range rows {
		errs = append(errs, v.ValidateRow(RowNumber(i), row)...)
	}
	return errs
}

// ValidateRow checks a single row, reporting it under rowNum.
func (v *RowValidator) ValidateRow(rowNum int, row RawRow) []RowError {
	if len(row) < minRowCells {
		return []RowError{{
			Row:     rowNum,
			Kind:    ErrStructural,
			Message: "incomplete row, at least date and SKU are required",
		}}
	}

	var errs []RowError

	if isBlank(row[ColDate]) {
		errs = append(errs, RowError{
			Row:     rowNum,
			Kind:    ErrStructural,
			Field:   "date",
			Message: "date must not be empty",
		})
	} else if _, ok := cellDate(row[ColDate]); !ok {
		errs = append(errs, RowError{
			Row:     rowNum,
			Kind:    ErrFormat,
			Field:   "date",
			Message: "invalid date format, supported formats: " + SupportedDateFormats,
		})
	}

	if CleanCell(CellText(row[ColSKU])) == "" {
		errs = append(errs, RowError{
			Row:     rowNum,
			Kind:    ErrStructural,
			Field:   "sku",
			Message: "SKU must not be empty",
		})
	}

	for _, qc := range quantityChecks {
		cell := cellAt(row, qc.col)
		if isBlank(cell) {
			continue
		}
		if _, err := cellInt(cell); err != nil {
			errs = append(errs, RowError{
				Row:     rowNum,
				Kind:    ErrFormat,
				Field:   qc.field,
				Message: qc.message,
			})
		}
	}

	return errs
}
