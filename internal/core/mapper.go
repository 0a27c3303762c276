package core

import (
	"errors"
	"fmt"
)

// errUnmappable is returned by MapRow for rows it cannot convert.
var errUnmappable = errors.New("row cannot be mapped")

// RecordMapper converts validated rows into typed records.
type RecordMapper struct{}

// NewRecordMapper creates a mapper.
func NewRecordMapper() *RecordMapper {
	return &RecordMapper{}
}

// MapRow converts one row. The row is expected to have passed RowValidator;
// an error here means the row should be dropped from the batch, not that
// the batch failed.
//
// Optional text cells map to nil when absent or blank. Quantity cells map to
// 0 only when absent (nil); any other value must parse as an integer.
func (m *RecordMapper) MapRow(row RawRow) (InventoryRecord, error) {
	if len(row) < minRowCells {
		return InventoryRecord{}, fmt.Errorf("%w: %d cells", errUnmappable, len(row))
	}

	date, ok := cellDate(row[ColDate])
	if !ok {
		return InventoryRecord{}, fmt.Errorf("%w: date %q", errUnmappable, CellText(row[ColDate]))
	}

	rec := InventoryRecord{
		Date:        date,
		SKU:         CleanCell(CellText(row[ColSKU])),
		ProductName: optionalText(cellAt(row, ColProductName)),
		Supplier:    optionalText(cellAt(row, ColSupplier)),
		Operator:    optionalText(cellAt(row, ColOperator)),
		Remarks:     optionalText(cellAt(row, ColRemarks)),
	}

	var err error
	if rec.InboundQuantity, err = quantity(row, ColInbound); err != nil {
		return InventoryRecord{}, err
	}
	if rec.OutboundQuantity, err = quantity(row, ColOutbound); err != nil {
		return InventoryRecord{}, err
	}
	if rec.InventoryBalance, err = quantity(row, ColBalance); err != nil {
		return InventoryRecord{}, err
	}

	return rec, nil
}

func quantity(row RawRow, col int) (int, error) {
	cell := cellAt(row, col)
	if cell == nil {
		return 0, nil
	}
	n, err := cellInt(cell)
	if err != nil {
		return 0, fmt.Errorf("%w: column %d: %v", errUnmappable, col+1, err)
	}
	return n, nil
}
