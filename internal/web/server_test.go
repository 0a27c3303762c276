package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ledger/internal/config"
	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/JonMunkholm/ledger/internal/metrics"
	"github.com/JonMunkholm/ledger/internal/storetest"
)

const sheetHeader = "date,sku,product_name,inbound_quantity,outbound_quantity,inventory_balance,supplier,operator,remarks\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Upload: config.UploadConfig{
			MaxFileSize:       1 << 20,
			AllowedExtensions: []string{"xlsx", "csv"},
			MaxConcurrent:     2,
			MaxWaitTime:       time.Second,
			Timeout:           time.Minute,
		},
		Query:    config.QueryConfig{DefaultPageSize: 20, MaxPageSize: 100},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

type testEnv struct {
	server  *Server
	store   *storetest.MemStore
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, cfg *config.Config, opts ...core.Option) *testEnv {
	t.Helper()
	store := storetest.New()
	m := metrics.New()
	opts = append(opts, core.WithObserver(m))
	srv := NewServer(core.NewService(store, cfg, opts...), cfg, m)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{server: srv, store: store, metrics: m}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func uploadRequest(t *testing.T, path, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "192.0.2.10:51234"
	return req
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestUpload_Success(t *testing.T) {
	env := newTestEnv(t, testConfig())
	sheet := sheetHeader +
		"2025/1/5,SKU1,Bolt,10,0,10,Acme,,\n" +
		"2025-1-6,SKU2,Nut,5,1,4,,,\n"

	rec := env.do(uploadRequest(t, "/api/upload", "ledger.csv", sheet))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var receipt core.ImportReceipt
	resp := decodeEnvelope(t, rec, &receipt)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "imported 2 records", resp.Message)
	assert.Equal(t, 2, receipt.Inserted)
	assert.Equal(t, 2, receipt.TotalRows)

	history := env.store.History()
	require.Len(t, history, 1)
	assert.Equal(t, receipt.ImportID, history[0].ID)
	assert.Equal(t, "192.0.2.10", history[0].ClientIP)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ImportsTotal.WithLabelValues("succeeded", "done")))
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		sheet      string
		wantStatus int
		wantCode   string
		wantStage  string
		wantErrors []string
	}{
		{
			name:       "validation",
			file:       "ledger.csv",
			sheet:      sheetHeader + "2025-01-01,\n2025-13-01,SKU2,,abc\n",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL000",
			wantStage:  "validating",
			wantErrors: []string{
				"row 2: SKU must not be empty",
				"row 3: invalid date format, supported formats: " + core.SupportedDateFormats,
				"row 3: inbound quantity must be an integer",
			},
		},
		{
			name:       "duplicate",
			file:       "ledger.csv",
			sheet:      sheetHeader + "2025-01-02,NEW\n2025-01-01,SEEDED\n",
			wantStatus: http.StatusBadRequest,
			wantCode:   "DUP001",
			wantStage:  "duplicate_checking",
			wantErrors: []string{"SKU: SEEDED, date: 2025-01-01"},
		},
		{
			name:       "unsupported extension",
			file:       "ledger.xls",
			sheet:      sheetHeader,
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE006",
		},
		{
			name:       "empty file",
			file:       "ledger.csv",
			sheet:      "",
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testConfig())
			env.store.Seed(core.InventoryRecord{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), SKU: "SEEDED"})

			rec := env.do(uploadRequest(t, "/api/upload", tt.file, tt.sheet))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, tt.wantStage, resp.Stage)
			assert.Equal(t, tt.wantErrors, resp.Errors)
			if tt.wantStage != "" {
				assert.NotEmpty(t, resp.ImportID)
			}
			assert.Len(t, env.store.Records(), 1, "nothing new is committed")
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 128
	env := newTestEnv(t, cfg)

	sheet := sheetHeader + strings.Repeat("2025-01-01,SKU1\n", 20)
	rec := env.do(uploadRequest(t, "/api/upload", "ledger.csv", sheet))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)

	huge := strings.Repeat("x", multipartOverhead+256)
	rec = env.do(uploadRequest(t, "/api/upload", "ledger.csv", huge))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestUpload_NoFile(t *testing.T) {
	env := newTestEnv(t, testConfig())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("plain")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)
}

func TestUpload_Saturated(t *testing.T) {
	limiter := core.NewImportLimiter(1, 10*time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	env := newTestEnv(t, testConfig(), core.WithImportLimiter(limiter))
	rec := env.do(uploadRequest(t, "/api/upload", "ledger.csv", sheetHeader+"2025-01-01,A\n"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UPL002", decodeError(t, rec).Code)
}

func TestUpload_RepeatedKey(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(uploadRequest(t, "/api/upload", "ledger.csv", sheetHeader+"2025-01-01,A\n2025-01-02,B\n2025/1/1,A\n"))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	resp := decodeError(t, rec)
	assert.Equal(t, "DUP002", resp.Code)
	assert.Equal(t, "duplicate_checking", resp.Stage)
	assert.Equal(t, []string{"row 4: SKU: A, date: 2025-01-01 repeats row 2"}, resp.Errors)
	assert.Empty(t, env.store.Records())
}

func TestUpload_StorageFailure(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.store.InsertErr = storetest.ErrUniqueViolation

	rec := env.do(uploadRequest(t, "/api/upload", "ledger.csv", sheetHeader+"2025-01-01,A\n"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "DB001", resp.Code)
	assert.Equal(t, "committing", resp.Stage)
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(uploadRequest(t, "/api/validate", "ledger.csv", sheetHeader+"2025-01-01,A\n2025-01-02,\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report core.ValidationReport
	resp := decodeEnvelope(t, rec, &report)
	assert.Equal(t, "sheet is invalid", resp.Message)
	assert.Equal(t, 2, report.TotalRows)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 3, report.Errors[0].Row)
	assert.ErrorIs(t, report.Errors[0], core.ErrStructural)
	assert.Contains(t, rec.Body.String(),
		`{"row":3,"kind":"structural","field":"sku","message":"SKU must not be empty"}`)
	assert.Empty(t, env.store.History())
}

func seedRecords(store *storetest.MemStore) {
	acme, bolt := "Acme", "Hex Bolt"
	for d := 1; d <= 30; d++ {
		store.Seed(core.InventoryRecord{
			Date:             time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC),
			SKU:              "SKU1",
			ProductName:      &bolt,
			InventoryBalance: 10,
			Supplier:         &acme,
		})
	}
	store.Seed(core.InventoryRecord{Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), SKU: "SKU2", InventoryBalance: 5})
}

func TestData(t *testing.T) {
	env := newTestEnv(t, testConfig())
	seedRecords(env.store)

	var page core.RecordPage
	rec := env.get("/api/data")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeEnvelope(t, rec, &page)
	assert.Equal(t, int64(31), page.Total)
	assert.Equal(t, 20, page.PerPage)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Items, 20)

	var items []map[string]any
	raw := decodeEnvelope(t, rec, nil)
	var pageJSON struct {
		Items json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(raw.Data, &pageJSON))
	require.NoError(t, json.Unmarshal(pageJSON.Items, &items))
	assert.Equal(t, "2025-06-30", items[0]["date"])
	assert.Equal(t, "Hex Bolt", items[0]["product_name"])

	rec = env.get("/api/data?start_date=2025-06-10&end_date=2025-06-12&supplier=Acme&product_name_like=hex&page=1&per_page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeEnvelope(t, rec, &page)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Items, 2)

	rec = env.get("/api/data?start_date=not-a-date&per_page=abc&sku=SKU2")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeEnvelope(t, rec, &page)
	assert.Equal(t, int64(1), page.Total, "malformed filters are ignored")
	assert.Equal(t, 20, page.PerPage)
}

func TestSuppliersAndChart(t *testing.T) {
	env := newTestEnv(t, testConfig())
	seedRecords(env.store)

	var suppliers []string
	rec := env.get("/api/suppliers")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeEnvelope(t, rec, &suppliers)
	assert.Equal(t, []string{"Acme"}, suppliers)

	var chart chartData
	rec = env.get("/api/chart-data?end_date=2025-06-02")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeEnvelope(t, rec, &chart)
	assert.Equal(t, []string{"2025-06-01", "2025-06-02"}, chart.Dates)
	assert.Equal(t, []int64{15, 10}, chart.Balances)

	rec = env.get("/api/chart-data?sku=missing")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":200,"data":{"dates":[],"balances":[]}}`, rec.Body.String())
}

func TestQueryFailure(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.store.QueryErr = context.DeadlineExceeded

	rec := env.get("/api/data")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "UPL005", decodeError(t, rec).Code)
}

func TestImports(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.do(uploadRequest(t, "/api/upload", "a.csv", sheetHeader+"2025-01-01,A\n"))
	env.do(uploadRequest(t, "/api/upload", "b.csv", sheetHeader+"2025-01-01,A\n"))

	var batches []core.ImportBatch
	rec := env.get("/api/imports?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeEnvelope(t, rec, &batches)
	require.Len(t, batches, 2)
	assert.Equal(t, "b.csv", batches[0].FileName)
	assert.Equal(t, core.ImportRejected, batches[0].Status)
	assert.Equal(t, []string{"SKU: A, date: 2025-01-01"}, batches[0].Diagnostics)
	assert.Equal(t, core.ImportSucceeded, batches[1].Status)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"capacity":2`)

	env.get("/api/suppliers")
	rec = env.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ledger_http_requests_total{method="GET",path="/api/suppliers",status="200"} 1`)
}

func TestPages(t *testing.T) {
	env := newTestEnv(t, testConfig())
	supplier := "<Acme & Sons>"
	env.store.Seed(core.InventoryRecord{Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), SKU: "A", Supplier: &supplier})

	rec := env.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "&lt;Acme &amp; Sons&gt;")
	assert.NotContains(t, rec.Body.String(), supplier)

	rec = env.get("/upload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inventory_balance")
	assert.Contains(t, rec.Body.String(), `accept=".xlsx,.csv"`)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.get("/healthz")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	cfg := testConfig()
	cfg.Security.EnableCSP = false
	rec = newTestEnv(t, cfg).get("/healthz")
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	env := newTestEnv(t, cfg)

	assert.Equal(t, http.StatusOK, env.get("/api/suppliers").Code)
	assert.Equal(t, http.StatusOK, env.get("/api/suppliers").Code)
	rec := env.get("/api/suppliers")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)

	// Another client has its own budget; uploads have a stricter one.
	env2 := newTestEnv(t, cfg)
	assert.Equal(t, http.StatusOK, env2.do(uploadRequest(t, "/api/upload", "a.csv", sheetHeader+"2025-01-01,A\n")).Code)
	assert.Equal(t, http.StatusTooManyRequests, env2.do(uploadRequest(t, "/api/upload", "b.csv", sheetHeader+"2025-01-02,A\n")).Code)
}

func TestRateLimiterWindow(t *testing.T) {
	s := &Server{}
	rl := s.newRateLimiter(1, 20*time.Millisecond)
	defer rl.stop()

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.allow("a"), "a new window refills the budget")
}

func TestImportErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{&core.ImportError{Stage: core.StageValidating, Err: core.ErrValidation}, http.StatusBadRequest},
		{&core.ImportError{Stage: core.StageDuplicateChecking, Err: core.ErrDuplicate}, http.StatusBadRequest},
		{core.ErrUnsupportedFormat, http.StatusBadRequest},
		{core.ErrEmptySheet, http.StatusBadRequest},
		{core.ErrInvalidSheet, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&core.ImportError{Stage: core.StageCommitting, Err: core.ErrStorage}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, importErrorStatus(tt.err), "%v", tt.err)
	}
}
