package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/ledger/internal/core"
)

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseDateParam parses a YYYY-MM-DD query parameter. Malformed values are
// ignored rather than rejected.
func parseDateParam(r *http.Request, name string) *time.Time {
	val := strings.TrimSpace(r.URL.Query().Get(name))
	if val == "" {
		return nil
	}
	t, err := time.Parse(core.DateLayout, val)
	if err != nil {
		return nil
	}
	return &t
}

// parseRecordFilter reads the shared read API filters.
func parseRecordFilter(r *http.Request) core.RecordFilter {
	q := r.URL.Query()
	return core.RecordFilter{
		StartDate:       parseDateParam(r, "start_date"),
		EndDate:         parseDateParam(r, "end_date"),
		SKU:             strings.TrimSpace(q.Get("sku")),
		Supplier:        strings.TrimSpace(q.Get("supplier")),
		ProductNameLike: strings.TrimSpace(q.Get("product_name_like")),
	}
}
