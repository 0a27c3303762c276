package database

import (
	"context"
	"fmt"
	"time"
)

// ResetTimeout bounds a Reset call.
const ResetTimeout = 30 * time.Second

// resetStatements empties the ledger and its import history.
var resetStatements = []string{
	"TRUNCATE inventory_data RESTART IDENTITY",
	"TRUNCATE import_batches",
}

// Reset deletes every ledger entry and import history row.
// This is destructive; callers confirm with the operator first.
func (s *Store) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range resetStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
