package store

import (
	"context"
	"sync"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

// ErrNotFound is returned when no forecast history matches.
var ErrNotFound = forecast.ErrNotFound

// MemoryHistory is a concurrency-safe in-memory forecast history, ordered by
// generation time.
type MemoryHistory struct {
	mu      sync.RWMutex
	records []forecast.HistoryRecord

	// retention configuration
	maxHistory int           // max number of records kept
	maxAge     time.Duration // optional max age, measured on GeneratedAt
	now        func() time.Time
}

// NewMemoryHistory creates a new MemoryHistory with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryHistory(maxHistory int, maxAge time.Duration) *MemoryHistory {
	return &MemoryHistory{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Record appends a record and enforces retention.
func (h *MemoryHistory) Record(_ context.Context, rec forecast.HistoryRecord) error {
	rec.Forecast.Signals = append([]forecast.Signal(nil), rec.Forecast.Signals...)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)

	// Enforce retention by count.
	if h.maxHistory > 0 && len(h.records) > h.maxHistory {
		over := len(h.records) - h.maxHistory
		h.records = h.records[over:]
	}

	// Enforce retention by age.
	if h.maxAge > 0 {
		cutoff := h.now().Add(-h.maxAge)
		i := 0
		for ; i < len(h.records); i++ {
			if !h.records[i].Forecast.GeneratedAt.Before(cutoff) {
				break
			}
		}
		h.records = h.records[i:]
	}
	return nil
}

// Latest returns the most recent record.
func (h *MemoryHistory) Latest(_ context.Context) (forecast.HistoryRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.records) == 0 {
		return forecast.HistoryRecord{}, ErrNotFound
	}
	return h.records[len(h.records)-1], nil
}

// Range returns all records generated between from and to (inclusive).
func (h *MemoryHistory) Range(_ context.Context, from, to time.Time) ([]forecast.HistoryRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []forecast.HistoryRecord
	for _, rec := range h.records {
		ts := rec.Forecast.GeneratedAt
		if !ts.Before(from) && !ts.After(to) {
			result = append(result, rec)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
