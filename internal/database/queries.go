package database

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, date, sku, product_name,
	inbound_quantity, outbound_quantity, inventory_balance,
	supplier, operator, remarks, created_at, updated_at`

// ListRecords returns one page of matching entries, newest date first, and
// the total match count.
func (s *Store) ListRecords(ctx context.Context, filter core.RecordFilter, limit, offset int) ([]core.InventoryRecord, int64, error) {
	wb := recordFilter(filter)
	where, args := wb.build()

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM inventory_data"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	argIdx := wb.nextArg()
	query := fmt.Sprintf(
		"SELECT %s FROM inventory_data%s ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d",
		recordColumns, where, argIdx, argIdx+1,
	)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, 0, fmt.Errorf("scan records: %w", err)
	}
	return records, total, nil
}

func scanRecord(row pgx.CollectableRow) (core.InventoryRecord, error) {
	var r core.InventoryRecord
	err := row.Scan(
		&r.ID, &r.Date, &r.SKU, &r.ProductName,
		&r.InboundQuantity, &r.OutboundQuantity, &r.InventoryBalance,
		&r.Supplier, &r.Operator, &r.Remarks, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// ListSuppliers returns the distinct non-empty suppliers in sort order.
func (s *Store) ListSuppliers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT supplier
		FROM inventory_data
		WHERE supplier IS NOT NULL AND supplier <> ''
		ORDER BY supplier`)
	if err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	suppliers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan suppliers: %w", err)
	}
	return suppliers, nil
}

// DailyBalances sums inventory_balance per date, oldest first.
func (s *Store) DailyBalances(ctx context.Context, filter core.RecordFilter) ([]core.DailyBalance, error) {
	where, args := recordFilter(filter).build()

	rows, err := s.pool.Query(ctx,
		"SELECT date, COALESCE(SUM(inventory_balance), 0)::bigint FROM inventory_data"+
			where+" GROUP BY date ORDER BY date",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query daily balances: %w", err)
	}
	balances, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.DailyBalance, error) {
		var b core.DailyBalance
		err := row.Scan(&b.Date, &b.Balance)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan daily balances: %w", err)
	}
	return balances, nil
}
