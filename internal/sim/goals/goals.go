// File: internal/sim/goals/goals.go
//
// Package goals implements the prioritized, progress-tracked objective set
// that drives an agent's deliberation.
package goals

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Type classifies where a goal came from.
type Type string

const (
	TypePrimary   Type = "primary"
	TypeSecondary Type = "secondary"
	TypeEmergent  Type = "emergent"
)

// Status is a goal's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPaused    Status = "paused"
)

// Goal is one objective. Progress is monotone while active and completion is
// irreversible.
type Goal struct {
	ID          string
	Type        Type
	Description string
	Priority    int     // 1-10
	Progress    float64 // [0,1]
	Status      Status
	Subgoals    []Goal
}

// Set holds an agent's goals. Like the memory store it is written by the
// agent loop and read by external observers, so it locks internally and hands
// out copies.
type Set struct {
	mu    sync.RWMutex
	goals []Goal
}

// NewSet creates a goal set from template goals, assigning IDs and activating
// each one.
func NewSet(templates ...Goal) *Set {
	s := &Set{goals: make([]Goal, 0, len(templates))}
	for _, g := range templates {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if g.Status == "" {
			g.Status = StatusActive
		}
		if g.Priority < 1 {
			g.Priority = 1
		}
		if g.Priority > 10 {
			g.Priority = 10
		}
		s.goals = append(s.goals, g)
	}
	return s
}

// Add appends a new goal (typically emergent) to the set.
func (s *Set) Add(g Goal) Goal {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = StatusActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, g)
	return g
}

// Advance increases a goal's progress by delta. Progress never decreases and
// is clamped to 1; the first time it reaches 1 the goal completes, for good.
// It returns the updated goal and whether this call completed it.
func (s *Set) Advance(id string, delta float64) (Goal, bool) {
	if delta < 0 {
		delta = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		g := &s.goals[i]
		if g.ID != id || g.Status != StatusActive {
			continue
		}
		g.Progress += delta
		if g.Progress >= 1 {
			g.Progress = 1
			g.Status = StatusCompleted
			return *g, true
		}
		return *g, false
	}
	return Goal{}, false
}

// Fail marks an active goal failed.
func (s *Set) Fail(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id && s.goals[i].Status == StatusActive {
			s.goals[i].Status = StatusFailed
			return
		}
	}
}

// SetPriority re-ranks one goal, clamped to the 1-10 band.
func (s *Set) SetPriority(id string, priority int) {
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals[i].Priority = priority
			return
		}
	}
}

// Reprioritize applies fn to every active goal's priority. Used by the
// deliberation step to apply persona-specific ranking rules.
func (s *Set) Reprioritize(fn func(Goal) int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].Status != StatusActive {
			continue
		}
		p := fn(s.goals[i])
		if p < 1 {
			p = 1
		}
		if p > 10 {
			p = 10
		}
		s.goals[i].Priority = p
	}
}

// TopActive returns up to n active goals ordered by descending priority.
// These are the agent's current intentions.
func (s *Set) TopActive(n int) []Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := make([]Goal, 0, len(s.goals))
	for _, g := range s.goals {
		if g.Status == StatusActive {
			active = append(active, g)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority > active[j].Priority })
	if n < len(active) {
		active = active[:n]
	}
	return active
}

// Find returns the first goal whose description matches, whatever its
// status. Callers that care about liveness check Status themselves.
func (s *Set) Find(description string) (Goal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.goals {
		if g.Description == description {
			return g, true
		}
	}
	return Goal{}, false
}

// CompletedCount tallies completed goals by description.
func (s *Set) CompletedCount() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, g := range s.goals {
		if g.Status == StatusCompleted {
			counts[g.Description]++
		}
	}
	return counts
}

// Snapshot returns a copy of all goals.
func (s *Set) Snapshot() []Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Goal, len(s.goals))
	copy(out, s.goals)
	return out
}
