package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/ledger/internal/core"
)

// healthTimeout bounds the storage ping behind /healthz.
const healthTimeout = 2 * time.Second

// handleData returns one filtered page of ledger entries.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	perPage := parseIntParam(r, "per_page", s.cfg.Query.DefaultPageSize)

	result, err := s.service.ListRecords(r.Context(), parseRecordFilter(r), page, perPage)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, "", result)
}

// handleSuppliers returns the distinct supplier names.
func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.service.ListSuppliers(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, "", suppliers)
}

// chartData is the daily balance series as parallel arrays.
type chartData struct {
	Dates    []string `json:"dates"`
	Balances []int64  `json:"balances"`
}

// handleChartData returns the summed inventory balance per date.
// The product name filter does not apply to the chart.
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	balances, err := s.service.DailyBalances(r.Context(), parseRecordFilter(r))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	data := chartData{
		Dates:    make([]string, len(balances)),
		Balances: make([]int64, len(balances)),
	}
	for i, b := range balances {
		data.Dates[i] = b.Date.Format(core.DateLayout)
		data.Balances[i] = b.Balance
	}
	writeJSON(w, "", data)
}

// handleImports returns the most recent import attempts.
func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListImports(r.Context(), parseIntParam(r, "limit", 0))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, "", batches)
}

type healthStatus struct {
	Status  string                   `json:"status"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

// handleHealth reports storage connectivity and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := healthStatus{Status: "ok", Imports: s.service.ImportLimiterStatus()}
	if err := s.service.Health(ctx); err != nil {
		respondError(w, r.WithContext(ctx), err, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, "", status)
}
