package database

import (
	"testing"
	"time"

	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestRecordFilter(t *testing.T) {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    core.RecordFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no filter",
			filter:    core.RecordFilter{},
			wantWhere: "",
			wantArgs:  nil,
		},
		{
			name:      "date range",
			filter:    core.RecordFilter{StartDate: &start, EndDate: &end},
			wantWhere: " WHERE date >= $1 AND date <= $2",
			wantArgs:  []any{start, end},
		},
		{
			name:      "sku and supplier",
			filter:    core.RecordFilter{SKU: "A-1", Supplier: "Acme"},
			wantWhere: " WHERE sku = $1 AND supplier = $2",
			wantArgs:  []any{"A-1", "Acme"},
		},
		{
			name: "everything in fixed order",
			filter: core.RecordFilter{
				ProductNameLike: "bolt",
				Supplier:        "Acme",
				SKU:             "A-1",
				EndDate:         &end,
				StartDate:       &start,
			},
			wantWhere: ` WHERE date >= $1 AND date <= $2 AND sku = $3 AND supplier = $4 AND product_name ILIKE $5 ESCAPE '\'`,
			wantArgs:  []any{start, end, "A-1", "Acme", "%bolt%"},
		},
		{
			name:      "like wildcards are literal",
			filter:    core.RecordFilter{ProductNameLike: `50%_off\`},
			wantWhere: ` WHERE product_name ILIKE $1 ESCAPE '\'`,
			wantArgs:  []any{`%50\%\_off\\%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := recordFilter(tt.filter).build()
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestWhereBuilderNextArg(t *testing.T) {
	wb := recordFilter(core.RecordFilter{SKU: "A", Supplier: "B"})
	assert.Equal(t, 3, wb.nextArg())

	assert.Equal(t, 1, (&whereBuilder{}).nextArg())
}
