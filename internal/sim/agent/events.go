// File: internal/sim/agent/events.go
package agent

import (
	"time"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
)

// EventType classifies simulation events emitted by an agent's loop.
type EventType string

const (
	EventAgentStarted   EventType = "agent_started"
	EventCycleCompleted EventType = "cycle_completed"
	EventActionTaken    EventType = "action_taken"
	EventGoalCompleted  EventType = "goal_completed"
	EventAgentError     EventType = "agent_error"
)

// Event is one typed simulation event. The orchestrator consumes these over
// a channel to tally cycles, interactions, completed goals and errors.
type Event struct {
	Type           EventType
	AgentID        string
	PersonaName    string
	Category       persona.Category
	Cycle          int
	Action         string
	ActionCategory string
	Reasoning      string
	Confidence     float64
	Goal           string
	Err            string
	Timestamp      time.Time
}
