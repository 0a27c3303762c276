package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/ledger/internal/config"
	"github.com/JonMunkholm/ledger/internal/logging"
	"github.com/google/uuid"
)

// historyWriteTimeout bounds the best-effort history write after an import.
const historyWriteTimeout = 5 * time.Second

// Import history listing bounds.
const (
	defaultImportListLimit = 20
	maxImportListLimit     = 100
)

// ImportObserver receives import outcomes, typically for metrics.
type ImportObserver interface {
	ObserveImport(status, stage string, inserted, skipped int, elapsed time.Duration)
	SetImportsInFlight(n int)
}

// Pinger is implemented by stores that can report their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service provides the ledger business logic to the HTTP server and CLI.
type Service struct {
	store    Store
	limiter  *ImportLimiter
	observer ImportObserver

	allowed     map[string]bool
	maxFileSize int64
	timeout     time.Duration

	defaultPageSize int
	maxPageSize     int
}

// Option configures a Service.
type Option func(*Service)

// WithObserver reports import outcomes to o.
func WithObserver(o ImportObserver) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithImportLimiter replaces the limiter built from config.
func WithImportLimiter(l *ImportLimiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// NewService creates a Service over store using cfg's upload and query
// settings.
func NewService(store Store, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:           store,
		limiter:         NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		allowed:         make(map[string]bool, len(cfg.Upload.AllowedExtensions)),
		maxFileSize:     cfg.Upload.MaxFileSize,
		timeout:         cfg.Upload.Timeout,
		defaultPageSize: cfg.Query.DefaultPageSize,
		maxPageSize:     cfg.Query.MaxPageSize,
	}
	for _, ext := range cfg.Upload.AllowedExtensions {
		s.allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportReceipt identifies a finished import and its result.
type ImportReceipt struct {
	ImportID uuid.UUID `json:"import_id"`
	ImportResult
}

// ImportFile decodes the named sheet from r and imports it all-or-nothing.
// The receipt carries the import ID even when the import fails.
func (s *Service) ImportFile(ctx context.Context, fileName string, r io.Reader) (ImportReceipt, error) {
	receipt := ImportReceipt{ImportID: uuid.New()}
	log := logging.WithFields(ctx, "import_id", receipt.ImportID.String(), "file", fileName)

	if err := s.checkExtension(fileName); err != nil {
		return receipt, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warn("import slot unavailable", "error", err, "active", s.limiter.Active())
		return receipt, err
	}
	s.reportInFlight()
	defer func() {
		s.limiter.Release()
		s.reportInFlight()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	log.Info("import started")

	result, err := s.runImport(ctx, fileName, r, log)
	receipt.ImportResult = result
	elapsed := time.Since(start)

	batch := newImportBatch(receipt.ImportID, fileName, result, err, elapsed)
	batch.ClientIP = ClientIPFromContext(ctx)
	s.recordHistory(ctx, batch, log)
	if s.observer != nil {
		s.observer.ObserveImport(string(batch.Status), string(batch.Stage), batch.Inserted, batch.Skipped, elapsed)
	}

	switch batch.Status {
	case ImportSucceeded:
		log.Info("import completed",
			"rows", result.TotalRows,
			"inserted", result.Inserted,
			"skipped", result.Skipped,
			"duration_ms", elapsed.Milliseconds(),
		)
	case ImportRejected:
		log.Info("import rejected",
			"stage", batch.Stage,
			"diagnostics", len(batch.Diagnostics),
			"duration_ms", elapsed.Milliseconds(),
		)
	default:
		log.Error("import failed",
			"stage", batch.Stage,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return receipt, err
}

func (s *Service) runImport(ctx context.Context, fileName string, r io.Reader, log *slog.Logger) (ImportResult, error) {
	rows, err := s.decode(fileName, r)
	if err != nil {
		return ImportResult{}, err
	}
	log.Debug("sheet decoded", "rows", len(rows))

	pipeline := NewImportPipeline(s.store,
		WithPipelineLogger(log),
		WithStageHook(func(st ImportStage) {
			log.Debug("import stage", "stage", st)
		}),
	)
	return pipeline.Import(ctx, rows)
}

// ValidationReport is the outcome of a dry run.
type ValidationReport struct {
	TotalRows int        `json:"total_rows"`
	Errors    []RowError `json:"errors,omitempty"`
}

// Valid reports whether the sheet would pass validation.
func (r ValidationReport) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateFile decodes and validates the named sheet without touching
// storage.
func (s *Service) ValidateFile(ctx context.Context, fileName string, r io.Reader) (ValidationReport, error) {
	if err := s.checkExtension(fileName); err != nil {
		return ValidationReport{}, err
	}
	rows, err := s.decode(fileName, r)
	if err != nil {
		return ValidationReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return ValidationReport{}, err
	}
	return ValidationReport{
		TotalRows: len(rows),
		Errors:    NewRowValidator().Validate(rows),
	}, nil
}

// decode reads at most maxFileSize bytes and decodes them.
func (s *Service) decode(fileName string, r io.Reader) ([]RawRow, error) {
	limit := s.maxFileSize
	if limit <= 0 {
		limit = 1 << 62
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
	}
	if len(data) == 0 {
		return nil, ErrEmptySheet
	}
	return DecodeSheet(fileName, bytes.NewReader(data))
}

func (s *Service) checkExtension(fileName string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" || !s.allowed[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
	return nil
}

// recordHistory writes the import's history entry. Failures are logged and
// otherwise ignored.
func (s *Service) recordHistory(ctx context.Context, batch ImportBatch, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	if err := s.store.RecordImport(ctx, batch); err != nil {
		log.Warn("failed to record import history", "error", err)
	}
}

func (s *Service) reportInFlight() {
	if s.observer != nil {
		s.observer.SetImportsInFlight(s.limiter.Active())
	}
}

// ListRecords returns one page of ledger entries, newest first.
// page is 1-based; perPage is clamped to the configured bounds.
func (s *Service) ListRecords(ctx context.Context, filter RecordFilter, page, perPage int) (RecordPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = s.defaultPageSize
	}
	if s.maxPageSize > 0 && perPage > s.maxPageSize {
		perPage = s.maxPageSize
	}

	items, total, err := s.store.ListRecords(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		return RecordPage{}, fmt.Errorf("list records: %w", err)
	}
	if items == nil {
		items = []InventoryRecord{}
	}

	return RecordPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pageCount(total, perPage),
	}, nil
}

func pageCount(total int64, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// ListSuppliers returns the distinct non-empty suppliers, sorted.
func (s *Service) ListSuppliers(ctx context.Context) ([]string, error) {
	suppliers, err := s.store.ListSuppliers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	if suppliers == nil {
		suppliers = []string{}
	}
	return suppliers, nil
}

// DailyBalances returns the summed inventory balance per date, ascending.
// Only the date range, SKU and supplier filters apply.
func (s *Service) DailyBalances(ctx context.Context, filter RecordFilter) ([]DailyBalance, error) {
	filter.ProductNameLike = ""
	balances, err := s.store.DailyBalances(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("daily balances: %w", err)
	}
	return balances, nil
}

// ListImports returns the most recent import attempts, newest first.
func (s *Service) ListImports(ctx context.Context, limit int) ([]ImportBatch, error) {
	if limit < 1 {
		limit = defaultImportListLimit
	}
	if limit > maxImportListLimit {
		limit = maxImportListLimit
	}
	batches, err := s.store.ListImports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	if batches == nil {
		batches = []ImportBatch{}
	}
	return batches, nil
}

// PurgeHistory deletes import history older than retention.
func (s *Service) PurgeHistory(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, errors.New("retention must be positive")
	}
	n, err := s.store.PurgeImports(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge import history: %w", err)
	}
	return n, nil
}

// Health checks storage connectivity when the store supports it.
func (s *Service) Health(ctx context.Context) error {
	if p, ok := s.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ImportLimiterStatus reports limiter usage.
type ImportLimiterStatus struct {
	Active   int `json:"active"`
	Capacity int `json:"capacity"`
}

// ImportLimiterStatus returns the current import slot usage.
func (s *Service) ImportLimiterStatus() ImportLimiterStatus {
	return ImportLimiterStatus{
		Active:   s.limiter.Active(),
		Capacity: s.limiter.Capacity(),
	}
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
