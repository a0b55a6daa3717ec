// File: internal/sim/memory/memory.go
//
// Package memory implements an agent's layered memory: a bounded short-term
// buffer, unbounded long-term retention for important items, and episodic and
// semantic specializations that share the same importance/decay rules.
package memory

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// ShortTermCapacity is the hard cap on the short-term buffer.
	ShortTermCapacity = 50
	// ShortTermRetained is how many items survive a prune, ranked by importance.
	ShortTermRetained = 30
	// LongTermThreshold is the importance above which an item is also copied
	// into long-term memory.
	LongTermThreshold = 0.7
)

// Kind distinguishes the memory layers an item can live in.
type Kind string

const (
	KindShortTerm Kind = "short_term"
	KindLongTerm  Kind = "long_term"
	KindEpisodic  Kind = "episodic"
	KindSemantic  Kind = "semantic"
)

// Item is a single memory entry. Associations are weak references to related
// item IDs; deleting an item never touches its associates.
type Item struct {
	ID           string
	Kind         Kind
	Content      string
	Timestamp    time.Time
	Importance   float64 // [0,1]
	DecayRate    float64 // fraction of importance lost per minute
	Associations []string

	// Episodic metadata: what happened and who was involved.
	Event        string
	Participants []string

	// Semantic metadata: a relationship between two entities.
	Subject  string
	Relation string
	Object   string
}

// EffectiveImportance applies exponential decay to the stored importance.
func (it Item) EffectiveImportance(now time.Time) float64 {
	if it.DecayRate <= 0 {
		return it.Importance
	}
	age := now.Sub(it.Timestamp).Minutes()
	if age <= 0 {
		return it.Importance
	}
	return it.Importance * math.Exp(-it.DecayRate*age)
}

// Store is one agent's memory. The agent's loop goroutine writes to it while
// external observers read it, so all access goes through an internal lock;
// readers always get copies.
type Store struct {
	mu        sync.RWMutex
	shortTerm []Item
	longTerm  []Item
}

// NewStore creates an empty memory store.
func NewStore() *Store {
	return &Store{}
}

// Add records an item in short-term memory, assigning an ID and timestamp if
// missing. Items over the long-term threshold are also copied into long-term
// memory. When the short-term buffer exceeds its cap it is pruned down to the
// most important entries.
func (s *Store) Add(it Item) Item {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.Timestamp.IsZero() {
		it.Timestamp = time.Now().UTC()
	}
	if it.Kind == "" {
		it.Kind = KindShortTerm
	}
	it.Importance = clamp01(it.Importance)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortTerm = append(s.shortTerm, it)
	if len(s.shortTerm) > ShortTermCapacity {
		s.prune()
	}

	if it.Importance > LongTermThreshold {
		lt := it
		lt.Kind = KindLongTerm
		s.longTerm = append(s.longTerm, lt)
	}
	return it
}

// prune keeps the ShortTermRetained highest-importance items, preserving
// their relative recency order. Callers must hold mu.
func (s *Store) prune() {
	type ranked struct {
		idx  int
		item Item
	}
	rankedItems := make([]ranked, len(s.shortTerm))
	for i, it := range s.shortTerm {
		rankedItems[i] = ranked{idx: i, item: it}
	}
	sort.SliceStable(rankedItems, func(i, j int) bool {
		return rankedItems[i].item.Importance > rankedItems[j].item.Importance
	})
	rankedItems = rankedItems[:ShortTermRetained]
	sort.Slice(rankedItems, func(i, j int) bool { return rankedItems[i].idx < rankedItems[j].idx })

	kept := make([]Item, 0, ShortTermRetained)
	for _, r := range rankedItems {
		kept = append(kept, r.item)
	}
	s.shortTerm = kept
}

// Recall returns up to n items ranked by decayed importance across both
// layers, most important first.
func (s *Store) Recall(n int, now time.Time) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]Item, 0, len(s.shortTerm)+len(s.longTerm))
	all = append(all, s.shortTerm...)
	all = append(all, s.longTerm...)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].EffectiveImportance(now) > all[j].EffectiveImportance(now)
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// ShortTermLen reports the short-term buffer size.
func (s *Store) ShortTermLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shortTerm)
}

// LongTermLen reports the long-term store size.
func (s *Store) LongTermLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.longTerm)
}

// Snapshot returns copies of both layers, safe to hand to other goroutines.
func (s *Store) Snapshot() (shortTerm, longTerm []Item) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shortTerm = make([]Item, len(s.shortTerm))
	copy(shortTerm, s.shortTerm)
	longTerm = make([]Item, len(s.longTerm))
	copy(longTerm, s.longTerm)
	return shortTerm, longTerm
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
