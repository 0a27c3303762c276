package core

// pipeline.go orchestrates a whole-sheet import.
//
// The flow is all-or-nothing:
//
//	Received -> Validating -> DuplicateChecking -> Committing -> Done
//
// Validation and duplicate failures reject the batch before any write. A
// (date, sku) listed twice in one sheet is a duplicate too.
// Commit runs as one transaction, so a storage failure (including a unique
// violation from a concurrent import that raced past the duplicate check)
// leaves nothing behind.
//
// The only rows dropped without failing the batch are rows the mapper
// cannot convert after validation passed. They are counted in
// ImportResult.Skipped.

import (
	"context"
	"fmt"
	"log/slog"
)

// ImportResult is the outcome of a successful import.
type ImportResult struct {
	TotalRows   int   `json:"total_rows"`
	Inserted    int   `json:"inserted"`
	Skipped     int   `json:"skipped"`
	SkippedRows []int `json:"skipped_rows,omitempty"`
}

// ImportPipeline validates, de-duplicates, maps and commits sheet rows.
type ImportPipeline struct {
	store     LedgerStore
	validator *RowValidator
	guard     *DuplicateGuard
	mapper    *RecordMapper
	logger    *slog.Logger
	onStage   func(ImportStage)
}

// PipelineOption configures an ImportPipeline.
type PipelineOption func(*ImportPipeline)

// WithPipelineLogger sets the logger used for skipped-row warnings.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *ImportPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithStageHook registers a callback invoked on every stage transition.
func WithStageHook(fn func(ImportStage)) PipelineOption {
	return func(p *ImportPipeline) {
		p.onStage = fn
	}
}

// NewImportPipeline creates a pipeline over store.
func NewImportPipeline(store LedgerStore, opts ...PipelineOption) *ImportPipeline {
	p := &ImportPipeline{
		store:     store,
		validator: NewRowValidator(),
		guard:     NewDuplicateGuard(store),
		mapper:    NewRecordMapper(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Import runs the full pipeline over rows. Rows must already exclude the
// header and blank trailing rows.
//
// On rejection or failure the returned error is an *ImportError and nothing
// was written.
func (p *ImportPipeline) Import(ctx context.Context, rows []RawRow) (ImportResult, error) {
	result := ImportResult{TotalRows: len(rows)}
	p.stage(StageReceived)

	p.stage(StageValidating)
	if rowErrs := p.validator.Validate(rows); len(rowErrs) > 0 {
		diags := make([]string, len(rowErrs))
		for i, re := range rowErrs {
			diags[i] = re.Error()
		}
		return result, &ImportError{
			Stage:       StageValidating,
			Diagnostics: diags,
			RowErrors:   rowErrs,
			Err:         ErrValidation,
		}
	}

	if len(rows) == 0 {
		p.stage(StageDone)
		return result, nil
	}

	p.stage(StageDuplicateChecking)
	keys := make([]Key, 0, len(rows))
	for _, row := range rows {
		date, _ := cellDate(row[ColDate])
		keys = append(keys, Key{Date: date, SKU: CleanCell(CellText(row[ColSKU]))})
	}
	if repeats, diags := repeatedKeys(keys); len(repeats) > 0 {
		return result, &ImportError{
			Stage:       StageDuplicateChecking,
			Diagnostics: diags,
			Conflicts:   repeats,
			Err:         ErrRepeatedKey,
		}
	}
	conflicts, err := p.guard.Check(ctx, keys)
	if err != nil {
		return result, &ImportError{Stage: StageDuplicateChecking, Err: err}
	}
	if len(conflicts) > 0 {
		diags := make([]string, len(conflicts))
		for i, k := range conflicts {
			diags[i] = k.String()
		}
		return result, &ImportError{
			Stage:       StageDuplicateChecking,
			Diagnostics: diags,
			Conflicts:   conflicts,
			Err:         ErrDuplicate,
		}
	}

	p.stage(StageCommitting)
	records := make([]InventoryRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := p.mapper.MapRow(row)
		if err != nil {
			result.Skipped++
			result.SkippedRows = append(result.SkippedRows, RowNumber(i))
			p.logger.Warn("skipping unmappable row",
				"row", RowNumber(i),
				"error", err,
			)
			continue
		}
		records = append(records, rec)
	}

	if len(records) > 0 {
		inserted, err := p.store.InsertBatch(ctx, records)
		if err != nil {
			return ImportResult{TotalRows: len(rows)}, &ImportError{
				Stage:       StageCommitting,
				Diagnostics: []string{"commit failed, no rows were imported"},
				Err:         wrapStorage("insert batch", err),
			}
		}
		result.Inserted = inserted
	}

	p.stage(StageDone)
	return result, nil
}

// repeatedKeys finds keys that occur more than once in the batch. Each
// repeat is reported at its own row with the row it repeats.
func repeatedKeys(keys []Key) ([]Key, []string) {
	first := make(map[Key]int, len(keys))
	var repeats []Key
	var diags []string
	for i, k := range keys {
		nk := normalizeKey(k)
		if prev, ok := first[nk]; ok {
			repeats = append(repeats, k)
			diags = append(diags, fmt.Sprintf("row %d: %s repeats row %d", RowNumber(i), k, RowNumber(prev)))
			continue
		}
		first[nk] = i
	}
	return repeats, diags
}

func (p *ImportPipeline) stage(s ImportStage) {
	if p.onStage != nil {
		p.onStage(s)
	}
}
