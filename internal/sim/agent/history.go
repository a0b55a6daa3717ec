// File: internal/sim/agent/history.go
package agent

import (
	"sync"
	"time"
)

// DefaultHistoryCapacity bounds the decision history; the oldest record is
// trimmed when the cap is exceeded.
const DefaultHistoryCapacity = 16

// Decision records one completed act step: what was considered, what was
// chosen and why, and how it turned out.
type Decision struct {
	ID              string
	Cycle           int
	Context         string
	Options         []string
	Chosen          string
	Rationale       string
	Confidence      float64
	ExpectedOutcome string
	ActualOutcome   string
	Success         bool
	Timestamp       time.Time
}

// History is an agent's bounded decision log. Appends happen only from the
// owning loop, but snapshots may be taken from any goroutine, so access is
// serialized. A record is visible either complete or not at all.
type History struct {
	mu       sync.RWMutex
	capacity int
	records  []Decision
}

// NewHistory creates a history with the given capacity (or the default when
// capacity <= 0).
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Append stores a fully-built record, trimming the oldest on overflow.
func (h *History) Append(d Decision) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, d)
	if len(h.records) > h.capacity {
		copy(h.records, h.records[1:])
		h.records = h.records[:len(h.records)-1]
	}
}

// Recent returns up to n of the latest records, oldest first.
func (h *History) Recent(n int) []Decision {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := len(h.records) - n
	if start < 0 {
		start = 0
	}
	out := make([]Decision, len(h.records)-start)
	copy(out, h.records[start:])
	return out
}

// Len reports the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Snapshot returns a copy of all records.
func (h *History) Snapshot() []Decision {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Decision, len(h.records))
	copy(out, h.records)
	return out
}
