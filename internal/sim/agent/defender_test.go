// File: internal/sim/agent/defender_test.go
package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/environment"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/goals"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// newDefenderAgent wires a real defender agent against a fresh environment.
func newDefenderAgent(t *testing.T, client *oracle.ScriptedClient) (*Agent, *DefenderCognition, *environment.Environment) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	env := environment.New(testSimConfig(), client, persona.Scenario{Title: "unit"}, logger)
	cog := NewDefenderCognition(logger)
	a := New(testPersona("d1", persona.CategoryDefender), cog, env, client, testSimConfig(), nil, logger)
	require.NoError(t, env.RegisterAgent(a))
	return a, cog, env
}

func TestDefender_GoalTemplates(t *testing.T) {
	cog := NewDefenderCognition(zaptest.NewLogger(t))

	defender := cog.GoalTemplates(testPersona("d1", persona.CategoryDefender))
	descriptions := make([]string, 0, len(defender))
	for _, g := range defender {
		descriptions = append(descriptions, g.Description)
	}
	assert.Contains(t, descriptions, "maintain_security_posture")
	assert.Contains(t, descriptions, "detect_threats")

	// Ordinary users get the quiet template.
	user := cog.GoalTemplates(testPersona("u1", persona.CategoryUser))
	descriptions = descriptions[:0]
	for _, g := range user {
		descriptions = append(descriptions, g.Description)
	}
	assert.Contains(t, descriptions, "complete_daily_work")
	assert.NotContains(t, descriptions, "detect_threats")
}

func TestDefender_PerceiveFlagsThreats(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	client.Override(oracle.SiteThreatAnalysis, func(oracle.GenerationRequest) (string, error) {
		return `{"is_threat": true, "threat_type": "phishing", "severity": 0.8, "confidence": 0.9, "description": "credential lure"}`, nil
	})
	a, cog, env := newDefenderAgent(t, client)

	env.RaiseAlert("environment", "suspicious mail burst", 0.8)
	env.RecordAction("a9", "mass mailing to staff", 0.9)

	p := cog.Perceive(context.Background(), a)

	require.NotEmpty(t, p.Threats)
	assert.Equal(t, "phishing", p.Threats[0].ThreatType)

	// Seeing threats is detection progress.
	g, ok := a.goals.Find("detect_threats")
	require.True(t, ok)
	assert.Greater(t, g.Progress, 0.0)
}

func TestDefender_JudgeThreatFallbackKeepsSuspicion(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	client.Override(oracle.SiteThreatAnalysis, func(oracle.GenerationRequest) (string, error) {
		return "", errors.New("oracle down")
	})
	a, cog, _ := newDefenderAgent(t, client)

	threat := cog.judgeThreat(context.Background(), a, environment.Event{
		Type: environment.EventThreatEmerged, Actor: "a9", Description: "odd traffic", Severity: 0.6,
	})

	assert.Equal(t, "unclassified", threat.ThreatType)
	assert.Equal(t, 0.3, threat.Confidence, "oracle failure keeps the event as a low-confidence threat")
}

func TestDefender_CorroborationRaisesConfidence(t *testing.T) {
	cog := NewDefenderCognition(zaptest.NewLogger(t))

	first := cog.corroborate(PerceivedThreat{Source: "a9", ThreatType: "phishing", Severity: 0.5, Confidence: 0.4})
	second := cog.corroborate(PerceivedThreat{Source: "a9", ThreatType: "phishing", Severity: 0.3, Confidence: 0.4})

	assert.Greater(t, second.Confidence, first.Confidence)
	assert.Equal(t, 0.5, second.Severity, "the model keeps the higher observed severity")
}

func TestDefender_MenuLeadsWithInvestigate(t *testing.T) {
	cog := NewDefenderCognition(zaptest.NewLogger(t))
	menu := cog.ActionMenu(Perception{})

	require.NotEmpty(t, menu)
	assert.Equal(t, "investigate", menu[0].Name, "the safe default must lead the menu")
}

func TestDefender_ExecuteWarnBroadcasts(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	a, cog, env := newDefenderAgent(t, client)
	peer := newFakeMember("u1")
	require.NoError(t, env.RegisterAgent(peer))

	p := Perception{Threats: []PerceivedThreat{{ThreatType: "phishing", Severity: 0.8, Confidence: 0.9, Description: "lure"}}}
	outcome, err := cog.Execute(context.Background(), a, ActionSpec{Name: "warn_colleagues"}, p)
	require.NoError(t, err)
	assert.Contains(t, outcome, "phishing")

	require.Equal(t, 1, peer.inboxLen())
	msg := peer.inbox()[0]
	assert.Equal(t, messaging.TypeWarning, msg.Type)
	assert.True(t, msg.Broadcast)
}

func TestDefender_ExecuteCountermeasure(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	a, cog, env := newDefenderAgent(t, client)

	p := Perception{Threats: []PerceivedThreat{{ThreatType: "phishing", Severity: 0.7, Confidence: 0.8}}}
	_, err := cog.Execute(context.Background(), a, ActionSpec{Name: "implement_countermeasure"}, p)
	require.NoError(t, err)

	state := env.StateSnapshot()
	assert.Len(t, state.Incidents, 1)
}

func TestDefender_ExecuteUnknownAction(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	a, cog, _ := newDefenderAgent(t, client)

	_, err := cog.Execute(context.Background(), a, ActionSpec{Name: "moonwalk"}, Perception{})
	assert.Error(t, err)
}

func TestDefender_HandleThreatMessage(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	a, cog, env := newDefenderAgent(t, client)

	msg := messaging.New("a9", []string{"d1"}, messaging.ThreatPayload{
		ThreatType: "phishing", Severity: 0.7, Details: "confirm your password",
	})
	cog.HandleMessage(context.Background(), a, msg)

	// Hostile contact raises an alert and feeds the threat model.
	state := env.StateSnapshot()
	require.Len(t, state.Alerts, 1)
	assert.Contains(t, state.Alerts[0].Message, "a9")

	g, ok := a.goals.Find("detect_threats")
	require.True(t, ok)
	assert.Greater(t, g.Progress, 0.0)

	model, ok := cog.threatModel["a9"]
	require.True(t, ok)
	assert.Equal(t, "phishing", model.ThreatType)
}

func TestDefender_HandleProposalAccepts(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	a, cog, env := newDefenderAgent(t, client)
	peer := newFakeMember("d2")
	require.NoError(t, env.RegisterAgent(peer))

	msg := messaging.New("d2", []string{"d1"}, messaging.ProposePayload{Proposal: "joint review"})
	cog.HandleMessage(context.Background(), a, msg)

	require.Equal(t, 1, peer.inboxLen())
	reply := peer.inbox()[0]
	assert.Equal(t, messaging.TypeAccept, reply.Type)
	assert.Equal(t, msg.ID, reply.ConversationID)
}

func TestDefender_ReprioritizeUnderPressure(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	a, cog, _ := newDefenderAgent(t, client)

	cog.Reprioritize(a, Perception{
		State:   environment.State{SecurityLevel: 0.3},
		Threats: []PerceivedThreat{{ThreatType: "phishing", Confidence: 0.8}},
	})

	var investigate, educate goals.Goal
	for _, g := range a.Goals() {
		switch g.Description {
		case "investigate_incidents":
			investigate = g
		case "educate_users":
			educate = g
		}
	}
	assert.Equal(t, 9, investigate.Priority)
	assert.Equal(t, 2, educate.Priority)
}
