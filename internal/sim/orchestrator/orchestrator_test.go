// File: internal/sim/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/config"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

func testSimConfig() config.SimulationConfig {
	return config.SimulationConfig{
		SimulationDuration:        time.Minute,
		MaxAgentCycles:            4,
		EnvironmentUpdateInterval: 50 * time.Millisecond,
		TerminationPollInterval:   10 * time.Millisecond,
		MessagePassingEnabled:     true,
		LearningEnabled:           true,
	}
}

// Top expertise keeps the cycle delay short so runs finish quickly.
func testPersona(id string, cat persona.Category) persona.Persona {
	return persona.Persona{
		ID:         id,
		Name:       id,
		Category:   cat,
		Subtype:    "generic",
		Skills:     persona.SkillVector{TechnicalExpertise: 5, PrivacyConcern: 3, RiskTolerance: 3, SecurityAwareness: 4},
		Motivation: "test motivation",
	}
}

func newTestManager(t *testing.T, cfg config.SimulationConfig) (*SimulationManager, *oracle.ScriptedClient) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	client := oracle.NewScriptedClient(logger)
	scenario := persona.Scenario{Title: "e2e", Steps: []string{"recon", "attack", "respond"}}
	return NewSimulationManager(cfg, client, scenario, logger), client
}

func TestCreateAgents_RejectsUnknownCategory(t *testing.T) {
	m, _ := newTestManager(t, testSimConfig())

	p := testPersona("x1", "saboteur")
	err := m.CreateAgents([]persona.Persona{p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
	assert.Empty(t, m.agents)
}

func TestCreateAgents_RejectsDuplicateIDs(t *testing.T) {
	m, _ := newTestManager(t, testSimConfig())

	err := m.CreateAgents([]persona.Persona{
		testPersona("d1", persona.CategoryDefender),
		testPersona("d1", persona.CategoryDefender),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRun_NoAgentsFails(t *testing.T) {
	m, _ := newTestManager(t, testSimConfig())

	result := m.Run(context.Background())
	assert.False(t, result.Success)
	assert.Equal(t, ErrCodeNoAgents, result.ErrorCode)
	assert.NotEmpty(t, result.Error)
}

// TestRun_EndToEnd drives a full run with one defender and one adversary. The
// oracle is scripted so the adversary always chooses phishing; the defender's
// menu has no such action and falls back to investigation. The lure must land
// in the interaction log and move the defender's detection goal.
func TestRun_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, client := newTestManager(t, testSimConfig())
	client.Override(oracle.SiteActionChoice, func(oracle.GenerationRequest) (string, error) {
		return `{"action": "phishing", "reasoning": "the target looks receptive", "confidence": 0.9}`, nil
	})

	require.NoError(t, m.CreateAgents([]persona.Persona{
		testPersona("d1", persona.CategoryDefender),
		func() persona.Persona {
			p := testPersona("a1", persona.CategoryAdversary)
			p.Subtype = "phisher"
			return p
		}(),
	}))

	result := m.Run(context.Background())

	require.True(t, result.Success, "run failed: %s", result.Error)
	assert.Equal(t, CauseMaxCycles, result.TerminationCause)
	assert.GreaterOrEqual(t, result.Metrics.TotalCycles, 1)
	assert.NotEmpty(t, result.Outputs)

	threats := 0
	for _, msg := range result.Interactions {
		if msg.Type == messaging.TypeThreat {
			threats++
		}
	}
	assert.Greater(t, threats, 0, "the phishing lure must appear in the interaction log")

	var defenderProgress float64
	for _, a := range m.agents {
		if a.ID() != "d1" {
			continue
		}
		for _, g := range a.Goals() {
			if g.Description == "detect_threats" {
				defenderProgress = g.Progress
			}
		}
	}
	assert.Greater(t, defenderProgress, 0.0, "the defender must register the received threat")

	// Outputs are ordered and every agent shows up.
	for i := 1; i < len(result.Outputs); i++ {
		assert.False(t, result.Outputs[i].Timestamp.Before(result.Outputs[i-1].Timestamp))
	}
	actors := make(map[string]bool)
	for _, o := range result.Outputs {
		actors[o.AgentID] = true
	}
	assert.True(t, actors["d1"])
	assert.True(t, actors["a1"])

	assert.Contains(t, result.Metrics.PersonaFidelity, "d1")
	assert.Contains(t, result.Metrics.PersonaFidelity, "a1")
	assert.NotEmpty(t, result.Metrics.SecurityLevelSeries)
}

func TestRun_TerminatesOnMaxCycles(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testSimConfig()
	cfg.MaxAgentCycles = 1

	m, _ := newTestManager(t, cfg)
	require.NoError(t, m.CreateAgents([]persona.Persona{testPersona("d1", persona.CategoryDefender)}))

	result := m.Run(context.Background())
	require.True(t, result.Success, "run failed: %s", result.Error)
	assert.Equal(t, CauseMaxCycles, result.TerminationCause)
}

func TestRun_TerminatesOnMaxDuration(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testSimConfig()
	cfg.MaxAgentCycles = 0
	cfg.SimulationDuration = 60 * time.Millisecond

	m, _ := newTestManager(t, cfg)
	require.NoError(t, m.CreateAgents([]persona.Persona{testPersona("d1", persona.CategoryDefender)}))

	start := time.Now()
	result := m.Run(context.Background())
	require.True(t, result.Success, "run failed: %s", result.Error)
	assert.Equal(t, CauseMaxDuration, result.TerminationCause)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_CancelledContextStopsGracefully(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testSimConfig()
	cfg.MaxAgentCycles = 0

	m, _ := newTestManager(t, cfg)
	require.NoError(t, m.CreateAgents([]persona.Persona{testPersona("d1", persona.CategoryDefender)}))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	result := m.Run(ctx)
	assert.True(t, result.Success, "cancellation is a graceful stop, not a failure")
	assert.Equal(t, CauseCancelled, result.TerminationCause)
}
