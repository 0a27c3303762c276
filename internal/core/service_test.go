package core_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ledger/internal/config"
	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/JonMunkholm/ledger/internal/storetest"
)

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			MaxFileSize:       1 << 20,
			AllowedExtensions: []string{"xlsx", "csv"},
			MaxConcurrent:     2,
			MaxWaitTime:       time.Second,
			Timeout:           time.Minute,
		},
		Query: config.QueryConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
	}
}

type importObservation struct {
	status, stage     string
	inserted, skipped int
}

type fakeObserver struct {
	mu       sync.Mutex
	imports  []importObservation
	inFlight []int
	purged   chan int64
}

func (o *fakeObserver) ObserveImport(status, stage string, inserted, skipped int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.imports = append(o.imports, importObservation{status, stage, inserted, skipped})
}

func (o *fakeObserver) SetImportsInFlight(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = append(o.inFlight, n)
}

func (o *fakeObserver) ObserveHistoryPurge(n int64) {
	o.purged <- n
}

const header = "date,sku,product_name,inbound_quantity,outbound_quantity,inventory_balance,supplier,operator,remarks\n"

func TestService_ImportFile(t *testing.T) {
	store := storetest.New()
	obs := &fakeObserver{}
	svc := core.NewService(store, testConfig(), core.WithObserver(obs))

	ctx := core.ContextWithClientIP(context.Background(), "203.0.113.9")
	csv := header +
		"2025/1/5,SKU1,Bolt,10,0,10,Acme,,\n" +
		"2025-1-6,SKU2,Nut,5,1,4,,,\n"

	receipt, err := svc.ImportFile(ctx, "ledger.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, receipt.ImportID)
	assert.Equal(t, 2, receipt.Inserted)
	assert.Len(t, store.Records(), 2)

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, receipt.ImportID, history[0].ID)
	assert.Equal(t, core.ImportSucceeded, history[0].Status)
	assert.Equal(t, core.StageDone, history[0].Stage)
	assert.Equal(t, "ledger.csv", history[0].FileName)
	assert.Equal(t, "203.0.113.9", history[0].ClientIP)
	assert.Equal(t, 2, history[0].RowCount)

	require.Len(t, obs.imports, 1)
	assert.Equal(t, importObservation{"succeeded", "done", 2, 0}, obs.imports[0])
	assert.Equal(t, []int{1, 0}, obs.inFlight)
}

func TestService_ImportFileRejections(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		body       string
		target     error
		wantStage  core.ImportStage
		wantStatus core.ImportStatus
	}{
		{
			name:       "validation",
			file:       "ledger.csv",
			body:       header + "2025-01-01,\n",
			target:     core.ErrValidation,
			wantStage:  core.StageValidating,
			wantStatus: core.ImportRejected,
		},
		{
			name:       "duplicate",
			file:       "ledger.csv",
			body:       header + "2025-01-01,SEEDED\n",
			target:     core.ErrDuplicate,
			wantStage:  core.StageDuplicateChecking,
			wantStatus: core.ImportRejected,
		},
		{
			name:       "empty file",
			file:       "ledger.csv",
			body:       "",
			target:     core.ErrEmptySheet,
			wantStage:  core.StageReceived,
			wantStatus: core.ImportRejected,
		},
		{
			name:       "broken workbook",
			file:       "ledger.xlsx",
			body:       "not a zip",
			target:     core.ErrInvalidSheet,
			wantStage:  core.StageReceived,
			wantStatus: core.ImportRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storetest.New()
			store.Seed(core.InventoryRecord{Date: date(2025, 1, 1), SKU: "SEEDED"})
			obs := &fakeObserver{}
			svc := core.NewService(store, testConfig(), core.WithObserver(obs))

			_, err := svc.ImportFile(context.Background(), tt.file, strings.NewReader(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Len(t, store.Records(), 1)

			history := store.History()
			require.Len(t, history, 1)
			assert.Equal(t, tt.wantStatus, history[0].Status)
			assert.Equal(t, tt.wantStage, history[0].Stage)
			assert.NotEmpty(t, history[0].Diagnostics)

			require.Len(t, obs.imports, 1)
			assert.Equal(t, string(tt.wantStatus), obs.imports[0].status)
		})
	}
}

func TestService_ImportFileUnsupportedExtension(t *testing.T) {
	store := storetest.New()
	svc := core.NewService(store, testConfig())

	_, err := svc.ImportFile(context.Background(), "ledger.xls", strings.NewReader(header))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Empty(t, store.History(), "unsupported files are refused before an import starts")
}

func TestService_ImportFileTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	store := storetest.New()
	svc := core.NewService(store, cfg)

	body := header + strings.Repeat("2025-01-01,SKU1\n", 10)
	_, err := svc.ImportFile(context.Background(), "ledger.csv", strings.NewReader(body))
	assert.ErrorIs(t, err, core.ErrFileTooLarge)
	assert.Equal(t, "FILE001", core.MapError(err).Code)
	assert.Empty(t, store.Records())
}

func TestService_HistoryFailureDoesNotFailImport(t *testing.T) {
	store := storetest.New()
	store.HistoryErr = errors.New("history table missing")
	svc := core.NewService(store, testConfig())

	receipt, err := svc.ImportFile(context.Background(), "ledger.csv",
		strings.NewReader(header+"2025-01-01,SKU1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Inserted)
}

func TestService_ImportFileSaturated(t *testing.T) {
	store := storetest.New()
	limiter := core.NewImportLimiter(1, 20*time.Millisecond)
	svc := core.NewService(store, testConfig(), core.WithImportLimiter(limiter))

	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	_, err := svc.ImportFile(context.Background(), "ledger.csv",
		strings.NewReader(header+"2025-01-01,SKU1\n"))
	assert.ErrorIs(t, err, core.ErrTooManyImports)
	assert.Empty(t, store.Records())
	assert.Equal(t, core.ImportLimiterStatus{Active: 1, Capacity: 1}, svc.ImportLimiterStatus())
}

func TestService_ValidateFile(t *testing.T) {
	store := storetest.New()
	svc := core.NewService(store, testConfig())

	report, err := svc.ValidateFile(context.Background(), "ledger.csv", strings.NewReader(
		header+"2025-01-01,SKU1\n2025-01-02,,,x\n"))
	require.NoError(t, err)
	assert.False(t, report.Valid())
	assert.Equal(t, 2, report.TotalRows)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 3, report.Errors[0].Row)

	report, err = svc.ValidateFile(context.Background(), "ledger.csv", strings.NewReader(
		header+"2025-01-01,SKU1\n"))
	require.NoError(t, err)
	assert.True(t, report.Valid())

	assert.Zero(t, store.ExistsCalls)
	assert.Zero(t, store.InsertCalls)
	assert.Empty(t, store.History())
}

func seedPaging(store *storetest.MemStore) {
	acme, other := "Acme", "Other"
	bolt, nut := "Hex Bolt", "Nut"
	for d := 1; d <= 25; d++ {
		rec := core.InventoryRecord{
			Date:             date(2025, 1, d),
			SKU:              "SKU1",
			ProductName:      &bolt,
			InventoryBalance: d,
			Supplier:         &acme,
		}
		if d%5 == 0 {
			rec.Supplier = &other
			rec.ProductName = &nut
		}
		store.Seed(rec)
	}
	store.Seed(core.InventoryRecord{Date: date(2025, 1, 1), SKU: "SKU2", InventoryBalance: 100})
}

func TestService_ListRecords(t *testing.T) {
	store := storetest.New()
	seedPaging(store)
	svc := core.NewService(store, testConfig())
	ctx := context.Background()

	page, err := svc.ListRecords(ctx, core.RecordFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(26), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PerPage)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 20)
	assert.Equal(t, date(2025, 1, 25), page.Items[0].Date, "newest first")

	page, err = svc.ListRecords(ctx, core.RecordFilter{}, 2, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, page.PerPage, "page size is capped")
	assert.Empty(t, page.Items)

	start, end := date(2025, 1, 10), date(2025, 1, 20)
	page, err = svc.ListRecords(ctx, core.RecordFilter{
		StartDate:       &start,
		EndDate:         &end,
		Supplier:        "Acme",
		ProductNameLike: "bolt",
	}, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(8), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Items, 5)

	page, err = svc.ListRecords(ctx, core.RecordFilter{SKU: "missing"}, 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Zero(t, page.Pages)
}

func TestService_SuppliersAndBalances(t *testing.T) {
	store := storetest.New()
	seedPaging(store)
	svc := core.NewService(store, testConfig())
	ctx := context.Background()

	suppliers, err := svc.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Other"}, suppliers)

	end := date(2025, 1, 2)
	balances, err := svc.DailyBalances(ctx, core.RecordFilter{EndDate: &end, ProductNameLike: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, []core.DailyBalance{
		{Date: date(2025, 1, 1), Balance: 101},
		{Date: date(2025, 1, 2), Balance: 2},
	}, balances)
}

func TestService_QueryErrors(t *testing.T) {
	store := storetest.New()
	store.QueryErr = errors.New("connection reset by peer")
	svc := core.NewService(store, testConfig())
	ctx := context.Background()

	_, err := svc.ListRecords(ctx, core.RecordFilter{}, 1, 10)
	assert.ErrorContains(t, err, "list records")
	_, err = svc.ListSuppliers(ctx)
	assert.ErrorContains(t, err, "list suppliers")
	_, err = svc.DailyBalances(ctx, core.RecordFilter{})
	assert.ErrorContains(t, err, "daily balances")
}

func TestService_ImportHistory(t *testing.T) {
	store := storetest.New()
	svc := core.NewService(store, testConfig())
	ctx := context.Background()

	for _, body := range []string{
		header + "2025-01-01,A\n",
		header + "2025-01-01,A\n",
		header + "2025-01-02,\n",
	} {
		_, _ = svc.ImportFile(ctx, "ledger.csv", bytes.NewReader([]byte(body)))
	}

	batches, err := svc.ListImports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, core.StageValidating, batches[0].Stage, "newest first")
	assert.Equal(t, core.StageDuplicateChecking, batches[1].Stage)
	assert.Equal(t, core.ImportSucceeded, batches[2].Status)

	batches, err = svc.ListImports(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	purged, err := svc.PurgeHistory(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	_, err = svc.PurgeHistory(ctx, 0)
	assert.Error(t, err)
}

func TestService_HistoryScheduler(t *testing.T) {
	store := storetest.New()
	svc := core.NewService(store, testConfig())
	_, _ = svc.ImportFile(context.Background(), "ledger.csv", strings.NewReader(header+"2025-01-01,A\n"))
	require.Len(t, store.History(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	obs := &fakeObserver{purged: make(chan int64, 1)}
	done := make(chan error, 1)
	go func() {
		// A non-positive retention is refused, so nothing is purged.
		done <- svc.StartHistoryScheduler(ctx, core.HistoryRetention{RetentionDays: -1, Schedule: "@daily"}, obs)
	}()

	select {
	case n := <-obs.purged:
		t.Fatalf("negative retention should not purge, purged %d", n)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	require.NoError(t, <-done)
	assert.Len(t, store.History(), 1)
}

func TestService_HistorySchedulerPurges(t *testing.T) {
	store := storetest.New()
	svc := core.NewService(store, testConfig())
	_, _ = svc.ImportFile(context.Background(), "ledger.csv", strings.NewReader(header+"2025-01-01,A\n"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := &fakeObserver{purged: make(chan int64, 1)}
	done := make(chan error, 1)
	go func() {
		done <- svc.StartHistoryScheduler(ctx, core.HistoryRetention{RetentionDays: 30, Schedule: "0 3 * * *"}, obs)
	}()

	select {
	case n := <-obs.purged:
		assert.Zero(t, n, "fresh entries are kept")
	case <-time.After(5 * time.Second):
		t.Fatal("initial purge did not run")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Len(t, store.History(), 1)
}

func TestService_HistorySchedulerBadSpec(t *testing.T) {
	svc := core.NewService(storetest.New(), testConfig())
	err := svc.StartHistoryScheduler(context.Background(), core.HistoryRetention{RetentionDays: 1, Schedule: "not a schedule"}, nil)
	assert.Error(t, err)
}

func TestService_Health(t *testing.T) {
	svc := core.NewService(storetest.New(), testConfig())
	assert.NoError(t, svc.Health(context.Background()))
}
