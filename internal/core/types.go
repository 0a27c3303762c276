package core

import (
	"context"
	"encoding/json"
	"time"
)

// RawRow is one spreadsheet row as ordered primitive cell values.
// Cells are nil, string, int, int64, float64, bool or time.Time.
type RawRow []any

// Column positions within a ledger sheet row.
const (
	ColDate = iota
	ColSKU
	ColProductName
	ColInbound
	ColOutbound
	ColBalance
	ColSupplier
	ColOperator
	ColRemarks
)

// SheetHeaders are the expected header labels, in column order.
var SheetHeaders = []string{
	"date", "sku", "product_name",
	"inbound_quantity", "outbound_quantity", "inventory_balance",
	"supplier", "operator", "remarks",
}

// InventoryRecord is one ledger entry as persisted.
// Optional text fields are nil when absent.
type InventoryRecord struct {
	ID               int64     `json:"id"`
	Date             time.Time `json:"-"`
	SKU              string    `json:"sku"`
	ProductName      *string   `json:"product_name"`
	InboundQuantity  int       `json:"inbound_quantity"`
	OutboundQuantity int       `json:"outbound_quantity"`
	InventoryBalance int       `json:"inventory_balance"`
	Supplier         *string   `json:"supplier"`
	Operator         *string   `json:"operator"`
	Remarks          *string   `json:"remarks"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

// Key returns the record's composite (date, sku) key.
func (r InventoryRecord) Key() Key {
	return Key{Date: r.Date, SKU: r.SKU}
}

// MarshalJSON renders dates as YYYY-MM-DD and timestamps as
// YYYY-MM-DD HH:MM:SS; zero timestamps render as null.
func (r InventoryRecord) MarshalJSON() ([]byte, error) {
	type plain InventoryRecord
	return json.Marshal(struct {
		plain
		Date      string  `json:"date"`
		CreatedAt *string `json:"created_at"`
		UpdatedAt *string `json:"updated_at"`
	}{
		plain:     plain(r),
		Date:      r.Date.Format(DateLayout),
		CreatedAt: formatTimestamp(r.CreatedAt),
		UpdatedAt: formatTimestamp(r.UpdatedAt),
	})
}

func formatTimestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(TimestampLayout)
	return &s
}

// Key is the composite (date, sku) key that identifies a ledger entry.
type Key struct {
	Date time.Time
	SKU  string
}

// String renders the key the way duplicate diagnostics report it.
func (k Key) String() string {
	return "SKU: " + k.SKU + ", date: " + k.Date.Format(DateLayout)
}

// DateLayout is the canonical calendar date rendering.
const DateLayout = "2006-01-02"

// TimestampLayout is the rendering used for created_at/updated_at.
const TimestampLayout = "2006-01-02 15:04:05"

// KeyLookup reports whether a composite key already exists in storage.
type KeyLookup interface {
	Exists(ctx context.Context, key Key) (bool, error)
}

// BatchKeyLookup is an optional KeyLookup extension that resolves many keys
// in one round trip. It returns the subset of keys that already exist.
type BatchKeyLookup interface {
	ExistingKeys(ctx context.Context, keys []Key) ([]Key, error)
}

// BatchInserter commits records all-or-nothing.
// It returns an error (and writes nothing) on any uniqueness violation.
type BatchInserter interface {
	InsertBatch(ctx context.Context, records []InventoryRecord) (int, error)
}

// LedgerStore is the storage capability the import pipeline needs.
type LedgerStore interface {
	KeyLookup
	BatchInserter
}

// RecordFilter narrows the read queries. Zero values mean "no filter".
type RecordFilter struct {
	StartDate       *time.Time
	EndDate         *time.Time
	SKU             string
	Supplier        string
	ProductNameLike string
}

// RecordPage is one page of ledger entries.
type RecordPage struct {
	Items   []InventoryRecord `json:"items"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
	Pages   int               `json:"pages"`
}

// DailyBalance is the summed inventory balance for one date.
type DailyBalance struct {
	Date    time.Time
	Balance int64
}

// QueryStore serves the pass-through read queries.
type QueryStore interface {
	ListRecords(ctx context.Context, filter RecordFilter, limit, offset int) ([]InventoryRecord, int64, error)
	ListSuppliers(ctx context.Context) ([]string, error)
	DailyBalances(ctx context.Context, filter RecordFilter) ([]DailyBalance, error)
}

// HistoryStore persists import attempts.
type HistoryStore interface {
	RecordImport(ctx context.Context, batch ImportBatch) error
	ListImports(ctx context.Context, limit int) ([]ImportBatch, error)
	PurgeImports(ctx context.Context, olderThan time.Time) (int64, error)
}

// Store is everything the Service needs from persistent storage.
type Store interface {
	LedgerStore
	QueryStore
	HistoryStore
}
