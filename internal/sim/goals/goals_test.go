// File: internal/sim/goals/goals_test.go
package goals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSet() *Set {
	return NewSet(
		Goal{Type: TypePrimary, Description: "detect_threats", Priority: 7},
		Goal{Type: TypeSecondary, Description: "educate_users", Priority: 4},
	)
}

func TestNewSet_ActivatesAndAssignsIDs(t *testing.T) {
	s := newTestSet()

	for _, g := range s.Snapshot() {
		assert.NotEmpty(t, g.ID)
		assert.Equal(t, StatusActive, g.Status)
		assert.Zero(t, g.Progress)
	}
}

func TestNewSet_ClampsPriority(t *testing.T) {
	s := NewSet(
		Goal{Description: "low", Priority: -3},
		Goal{Description: "high", Priority: 99},
	)

	goals := s.Snapshot()
	assert.Equal(t, 1, goals[0].Priority)
	assert.Equal(t, 10, goals[1].Priority)
}

// TestSet_AdvanceMonotone verifies progress never decreases while active: a
// negative delta is treated as zero.
func TestSet_AdvanceMonotone(t *testing.T) {
	s := newTestSet()
	id := s.Snapshot()[0].ID

	g, completed := s.Advance(id, 0.4)
	assert.False(t, completed)
	assert.Equal(t, 0.4, g.Progress)

	g, completed = s.Advance(id, -0.5)
	assert.False(t, completed)
	assert.Equal(t, 0.4, g.Progress, "negative delta must not reduce progress")
}

// TestSet_CompleteExactlyOnce verifies the status flips to completed the
// first time progress reaches 1, and never flips again.
func TestSet_CompleteExactlyOnce(t *testing.T) {
	s := newTestSet()
	id := s.Snapshot()[0].ID

	g, completed := s.Advance(id, 0.7)
	require.False(t, completed)
	require.Equal(t, StatusActive, g.Status)

	g, completed = s.Advance(id, 0.7)
	assert.True(t, completed)
	assert.Equal(t, StatusCompleted, g.Status)
	assert.Equal(t, 1.0, g.Progress, "progress clamps at 1")

	// A completed goal is inert: no second completion signal, no movement.
	g, completed = s.Advance(id, 0.5)
	assert.False(t, completed)
	assert.Zero(t, g.ID, "completed goals are not advanced")

	counts := s.CompletedCount()
	assert.Equal(t, 1, counts["detect_threats"])
}

func TestSet_FailOnlyActive(t *testing.T) {
	s := newTestSet()
	id := s.Snapshot()[0].ID

	s.Advance(id, 1.0)
	s.Fail(id)

	g, ok := s.Find("detect_threats")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, g.Status, "completion is irreversible")
}

// TestSet_FindIgnoresStatus pins the lookup contract: Find matches on
// description alone, so callers see completed and failed goals too.
func TestSet_FindIgnoresStatus(t *testing.T) {
	s := newTestSet()
	s.Fail(s.Snapshot()[0].ID)

	g, ok := s.Find("detect_threats")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, g.Status)

	_, ok = s.Find("no such goal")
	assert.False(t, ok)
}

func TestSet_TopActiveOrdersByPriority(t *testing.T) {
	s := NewSet(
		Goal{Description: "low", Priority: 2},
		Goal{Description: "high", Priority: 9},
		Goal{Description: "mid", Priority: 5},
	)

	top := s.TopActive(2)
	require.Len(t, top, 2)
	assert.Equal(t, "high", top[0].Description)
	assert.Equal(t, "mid", top[1].Description)

	// Completed goals drop out of the intention list.
	s.Advance(top[0].ID, 1.0)
	top = s.TopActive(3)
	require.Len(t, top, 2)
	assert.Equal(t, "mid", top[0].Description)
}

func TestSet_ReprioritizeSkipsInactive(t *testing.T) {
	s := newTestSet()
	done := s.Snapshot()[0]
	s.Advance(done.ID, 1.0)

	s.Reprioritize(func(Goal) int { return 10 })

	goals := s.Snapshot()
	assert.Equal(t, done.Priority, goals[0].Priority, "completed goals keep their priority")
	assert.Equal(t, 10, goals[1].Priority)
}

func TestSet_ReprioritizeClamps(t *testing.T) {
	s := newTestSet()
	s.Reprioritize(func(Goal) int { return 42 })
	for _, g := range s.Snapshot() {
		assert.Equal(t, 10, g.Priority)
	}
}

func TestSet_AddEmergentGoal(t *testing.T) {
	s := newTestSet()
	g := s.Add(Goal{Type: TypeEmergent, Description: "respond_to_campaign", Priority: 6})

	assert.NotEmpty(t, g.ID)
	assert.Equal(t, StatusActive, g.Status)
	assert.Len(t, s.Snapshot(), 3)
}
