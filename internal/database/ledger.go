package database

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/jackc/pgx/v5"
)

var (
	_ core.Store          = (*Store)(nil)
	_ core.BatchKeyLookup = (*Store)(nil)
	_ core.Pinger         = (*Store)(nil)
)

// insertColumns is the COPY column order used by InsertBatch.
var insertColumns = []string{
	"date", "sku", "product_name",
	"inbound_quantity", "outbound_quantity", "inventory_balance",
	"supplier", "operator", "remarks",
}

// Exists reports whether a ledger entry with key is stored.
func (s *Store) Exists(ctx context.Context, key core.Key) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM inventory_data WHERE date = $1 AND sku = $2)`,
		key.Date, key.SKU,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check key %s: %w", key, err)
	}
	return exists, nil
}

// ExistingKeys returns the stored subset of keys in one round trip.
func (s *Store) ExistingKeys(ctx context.Context, keys []core.Key) ([]core.Key, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	dates := make([]time.Time, len(keys))
	skus := make([]string, len(keys))
	for i, k := range keys {
		dates[i] = k.Date
		skus[i] = k.SKU
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT d.date, d.sku
		FROM inventory_data d
		JOIN unnest($1::date[], $2::text[]) AS k(date, sku)
		  ON d.date = k.date AND d.sku = k.sku`,
		dates, skus,
	)
	if err != nil {
		return nil, fmt.Errorf("check existing keys: %w", err)
	}

	existing, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Key, error) {
		var k core.Key
		err := row.Scan(&k.Date, &k.SKU)
		return k, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan existing keys: %w", err)
	}
	return existing, nil
}

// InsertBatch copies records in one transaction. Any failure, including a
// unique violation on (date, sku), rolls the whole batch back.
func (s *Store) InsertBatch(ctx context.Context, records []core.InventoryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"inventory_data"},
		insertColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{
				r.Date, r.SKU, r.ProductName,
				r.InboundQuantity, r.OutboundQuantity, r.InventoryBalance,
				r.Supplier, r.Operator, r.Remarks,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy ledger rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit ledger rows: %w", err)
	}
	return int(n), nil
}
