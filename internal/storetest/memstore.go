// Package storetest provides an in-memory core.Store for tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/ledger/internal/core"
)

// ErrUniqueViolation mimics the database's unique constraint failure.
var ErrUniqueViolation = errors.New(`duplicate key value violates unique constraint "uq_date_sku"`)

// MemStore keeps ledger entries and import history in memory.
// Its zero value is not usable; call New.
type MemStore struct {
	mu      sync.Mutex
	records []core.InventoryRecord
	keys    map[core.Key]bool
	history []core.ImportBatch
	nextID  int64

	// Failure injection. A non-nil error is returned by the matching call.
	LookupErr  error
	InsertErr  error
	QueryErr   error
	HistoryErr error

	// BeforeInsert runs inside InsertBatch before uniqueness is checked,
	// letting tests simulate a concurrent writer.
	BeforeInsert func()

	ExistsCalls int
	InsertCalls int
}

// New returns an empty store.
func New() *MemStore {
	return &MemStore{keys: make(map[core.Key]bool)}
}

func normalize(k core.Key) core.Key {
	y, m, d := k.Date.Date()
	return core.Key{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), SKU: k.SKU}
}

// Seed inserts records directly, bypassing failure injection.
func (s *MemStore) Seed(records ...core.InventoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.insertLocked(r)
	}
}

func (s *MemStore) insertLocked(r core.InventoryRecord) {
	s.nextID++
	r.ID = s.nextID
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	s.records = append(s.records, r)
	s.keys[normalize(r.Key())] = true
}

// Records returns a copy of every stored entry in insertion order.
func (s *MemStore) Records() []core.InventoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.InventoryRecord(nil), s.records...)
}

// History returns a copy of the recorded import attempts.
func (s *MemStore) History() []core.ImportBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ImportBatch(nil), s.history...)
}

// Exists implements core.KeyLookup.
func (s *MemStore) Exists(_ context.Context, key core.Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExistsCalls++
	if s.LookupErr != nil {
		return false, s.LookupErr
	}
	return s.keys[normalize(key)], nil
}

// InsertBatch implements core.BatchInserter all-or-nothing.
func (s *MemStore) InsertBatch(_ context.Context, records []core.InventoryRecord) (int, error) {
	if s.BeforeInsert != nil {
		s.BeforeInsert()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.InsertCalls++
	if s.InsertErr != nil {
		return 0, s.InsertErr
	}

	seen := make(map[core.Key]bool, len(records))
	for _, r := range records {
		k := normalize(r.Key())
		if s.keys[k] || seen[k] {
			return 0, fmt.Errorf("%w: %s", ErrUniqueViolation, k)
		}
		seen[k] = true
	}
	for _, r := range records {
		s.insertLocked(r)
	}
	return len(records), nil
}

func matches(r core.InventoryRecord, f core.RecordFilter) bool {
	if f.StartDate != nil && r.Date.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && r.Date.After(*f.EndDate) {
		return false
	}
	if f.SKU != "" && r.SKU != f.SKU {
		return false
	}
	if f.Supplier != "" && (r.Supplier == nil || *r.Supplier != f.Supplier) {
		return false
	}
	if f.ProductNameLike != "" {
		if r.ProductName == nil ||
			!strings.Contains(strings.ToLower(*r.ProductName), strings.ToLower(f.ProductNameLike)) {
			return false
		}
	}
	return true
}

// ListRecords implements core.QueryStore.
func (s *MemStore) ListRecords(_ context.Context, f core.RecordFilter, limit, offset int) ([]core.InventoryRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, 0, s.QueryErr
	}

	var out []core.InventoryRecord
	for _, r := range s.records {
		if matches(r, f) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})

	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// ListSuppliers implements core.QueryStore.
func (s *MemStore) ListSuppliers(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}

	seen := map[string]bool{}
	var out []string
	for _, r := range s.records {
		if r.Supplier == nil || *r.Supplier == "" || seen[*r.Supplier] {
			continue
		}
		seen[*r.Supplier] = true
		out = append(out, *r.Supplier)
	}
	sort.Strings(out)
	return out, nil
}

// DailyBalances implements core.QueryStore.
func (s *MemStore) DailyBalances(_ context.Context, f core.RecordFilter) ([]core.DailyBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}

	sums := map[time.Time]int64{}
	for _, r := range s.records {
		if matches(r, f) {
			sums[r.Date] += int64(r.InventoryBalance)
		}
	}
	out := make([]core.DailyBalance, 0, len(sums))
	for d, b := range sums {
		out = append(out, core.DailyBalance{Date: d, Balance: b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// RecordImport implements core.HistoryStore.
func (s *MemStore) RecordImport(_ context.Context, b core.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return s.HistoryErr
	}
	s.history = append(s.history, b)
	return nil
}

// ListImports implements core.HistoryStore, newest first.
func (s *MemStore) ListImports(_ context.Context, limit int) ([]core.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return nil, s.HistoryErr
	}
	out := make([]core.ImportBatch, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

// PurgeImports implements core.HistoryStore.
func (s *MemStore) PurgeImports(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return 0, s.HistoryErr
	}
	kept := s.history[:0]
	var purged int64
	for _, b := range s.history {
		if b.CreatedAt.Before(olderThan) {
			purged++
			continue
		}
		kept = append(kept, b)
	}
	s.history = kept
	return purged, nil
}
