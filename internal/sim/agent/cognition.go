// File: internal/sim/agent/cognition.go
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/environment"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/goals"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// AgentView is how one agent sees another. Trust, threat and value scores are
// filled in by the observer's cognition, not by the environment.
type AgentView struct {
	Info         environment.AgentInfo
	Relationship string
	Trust        float64
	ThreatLevel  float64
	ValueLevel   float64
}

// PerceivedThreat is a danger an agent has noticed.
type PerceivedThreat struct {
	Source      string
	ThreatType  string
	Description string
	Severity    float64
	Confidence  float64
}

// PerceivedOpportunity is an opening an agent has noticed.
type PerceivedOpportunity struct {
	TargetID    string
	Kind        string
	Description string
	Value       float64
}

// Perception is a snapshot of the world as one agent sees it. It is replaced
// wholesale every perceive step; there is no incremental merge.
type Perception struct {
	State         environment.State
	VisibleAgents []AgentView
	RecentEvents  []environment.Event
	Threats       []PerceivedThreat
	Opportunities []PerceivedOpportunity
	Timestamp     time.Time
}

// ActionSpec is one entry in the menu offered to the reasoning oracle.
// Category feeds the behavioral-diversity metric; Goal and Progress tie the
// action to the objective it advances.
type ActionSpec struct {
	Name        string
	Category    string
	Description string
	Goal        string
	Progress    float64
}

// Cognition is the persona-specific quarter of an agent: perception
// specialization, goal templates and ranking rules, the action vocabulary,
// and message handling. The generic Agent owns the loop, memory, goals and
// mailbox and delegates these four concerns.
type Cognition interface {
	// GoalTemplates builds the initial goal set for a persona.
	GoalTemplates(p persona.Persona) []goals.Goal

	// Perceive builds a fresh perception snapshot, possibly consulting the
	// oracle for per-event or per-candidate judgment.
	Perceive(ctx context.Context, a *Agent) Perception

	// Reprioritize applies type-specific ranking rules to the agent's goals
	// in light of the current perception.
	Reprioritize(a *Agent, p Perception)

	// ActionMenu is the fixed action vocabulary offered to the oracle. The
	// first entry doubles as the safe default on oracle failure.
	ActionMenu(p Perception) []ActionSpec

	// Execute performs the chosen action against the environment and returns
	// a short outcome description.
	Execute(ctx context.Context, a *Agent, action ActionSpec, p Perception) (string, error)

	// HandleMessage reacts to one inbound message.
	HandleMessage(ctx context.Context, a *Agent, msg messaging.Message)
}

// decisionContext summarizes the deliberation inputs handed to the oracle.
type decisionContext struct {
	cycle         int
	intentions    []goals.Goal
	threats       int
	opportunities int
	securityLevel float64
	lastOutcomes  []string
	memories      []string
}

// render formats the context for the oracle's user prompt.
func (dc decisionContext) render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Cycle %d. Security level %.2f. Perceived threats: %d. Perceived opportunities: %d.\n",
		dc.cycle, dc.securityLevel, dc.threats, dc.opportunities)

	sb.WriteString("Current intentions (highest priority first):\n")
	for _, g := range dc.intentions {
		fmt.Fprintf(&sb, "- %s (priority %d, progress %.2f)\n", g.Description, g.Priority, g.Progress)
	}
	if len(dc.lastOutcomes) > 0 {
		sb.WriteString("Recent outcomes:\n")
		for _, o := range dc.lastOutcomes {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
	}
	if len(dc.memories) > 0 {
		sb.WriteString("Salient memories:\n")
		for _, m := range dc.memories {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}
	return sb.String()
}

// renderMenu formats an action menu for the oracle's prompt.
func renderMenu(menu []ActionSpec) string {
	var sb strings.Builder
	for _, item := range menu {
		fmt.Fprintf(&sb, "- %s: %s\n", item.Name, item.Description)
	}
	return sb.String()
}

// personaPrompt describes the persona the oracle should embody.
func personaPrompt(p persona.Persona) string {
	return fmt.Sprintf(
		"You roleplay %s, a %s (%s). Motivation: %s. Traits on a 1-5 scale: technical expertise %.0f, privacy concern %.0f, risk tolerance %.0f, security awareness %.0f. Behavioral patterns: %s.",
		p.Name, p.Category, p.Subtype, p.Motivation,
		p.Skills.TechnicalExpertise, p.Skills.PrivacyConcern, p.Skills.RiskTolerance, p.Skills.SecurityAwareness,
		strings.Join(p.BehavioralTraits, ", "))
}

// chooseAction asks the oracle to pick from the menu, falling back to the
// first menu entry on any failure or out-of-menu answer.
func chooseAction(ctx context.Context, client oracle.Client, p persona.Persona, dc decisionContext, menu []ActionSpec) (ActionSpec, oracle.ActionChoice) {
	fallback := menu[0]
	fallbackChoice := oracle.ActionChoice{
		Action:     fallback.Name,
		Reasoning:  "fallback: oracle unavailable or answer unusable",
		Confidence: 0.3,
	}

	req := oracle.GenerationRequest{
		Site: oracle.SiteActionChoice,
		SystemPrompt: personaPrompt(p) +
			"\nChoose exactly one action from the menu. Respond ONLY with a JSON object: {\"action\": \"...\", \"reasoning\": \"...\", \"confidence\": 0.0-1.0}.",
		UserPrompt: dc.render() + "\nAction menu:\n" + renderMenu(menu),
		Options:    oracle.GenerationOptions{ForceJSONFormat: true, Temperature: 0.4},
	}

	response, err := client.Generate(ctx, req)
	if err != nil {
		return fallback, fallbackChoice
	}
	var choice oracle.ActionChoice
	if err := oracle.DecodeJSON(response, &choice); err != nil {
		return fallback, fallbackChoice
	}

	for _, item := range menu {
		if strings.EqualFold(item.Name, choice.Action) {
			if choice.Confidence <= 0 || choice.Confidence > 1 {
				choice.Confidence = 0.5
			}
			return item, choice
		}
	}
	return fallback, fallbackChoice
}
