package database

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RecordImport stores one import attempt.
func (s *Store) RecordImport(ctx context.Context, b core.ImportBatch) error {
	diagnostics := b.Diagnostics
	if diagnostics == nil {
		diagnostics = []string{}
	}
	clientIP := pgtype.Text{String: b.ClientIP, Valid: b.ClientIP != ""}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_batches
			(id, file_name, status, stage, row_count, inserted, skipped,
			 diagnostics, duration_ms, client_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pgtype.UUID{Bytes: b.ID, Valid: true},
		b.FileName, string(b.Status), string(b.Stage),
		b.RowCount, b.Inserted, b.Skipped,
		diagnostics, b.DurationMS, clientIP, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record import %s: %w", b.ID, err)
	}
	return nil
}

// ListImports returns the newest import attempts first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]core.ImportBatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name, status, stage, row_count, inserted, skipped,
		       diagnostics, duration_ms, client_ip, created_at
		FROM import_batches
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}

	batches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ImportBatch, error) {
		var (
			b        core.ImportBatch
			id       pgtype.UUID
			status   string
			stage    string
			clientIP pgtype.Text
		)
		err := row.Scan(&id, &b.FileName, &status, &stage, &b.RowCount, &b.Inserted, &b.Skipped,
			&b.Diagnostics, &b.DurationMS, &clientIP, &b.CreatedAt)
		b.ID = uuid.UUID(id.Bytes)
		b.Status = core.ImportStatus(status)
		b.Stage = core.ImportStage(stage)
		b.ClientIP = clientIP.String
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan imports: %w", err)
	}
	return batches, nil
}

// PurgeImports deletes history created before olderThan.
func (s *Store) PurgeImports(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_batches WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge imports: %w", err)
	}
	return tag.RowsAffected(), nil
}
