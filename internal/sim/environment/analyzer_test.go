// File: internal/sim/environment/analyzer_test.go
package environment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

func analyzerWindow() []messaging.Message {
	return []messaging.Message{
		messaging.New("a1", []string{"u1"}, messaging.RequestPayload{Action: "share credentials", Reason: "audit"}),
		messaging.New("a2", []string{"u1"}, messaging.RequestPayload{Action: "confirm account", Reason: "audit"}),
		messaging.NewBroadcast("d1", messaging.WarningPayload{Subject: "phishing", Severity: 0.8}),
	}
}

func TestAnalyzer_RequiresTwoMessages(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	a := NewBehaviorAnalyzer(client, zaptest.NewLogger(t))

	_, detected := a.Scan(context.Background(), analyzerWindow()[:1], nil)
	assert.False(t, detected)
	assert.Zero(t, client.Calls(oracle.SiteBehaviorVerdict), "a single message is never a pattern; no oracle call made")
}

func TestAnalyzer_PositiveVerdict(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	client.Override(oracle.SiteBehaviorVerdict, func(oracle.GenerationRequest) (string, error) {
		return `{"detected": true, "behavior_type": "social_engineering_chain", "description": "coordinated pretexting of u1", "participants": ["a1", "a2"], "strength": 0.8, "impact": "credential exposure risk"}`, nil
	})
	a := NewBehaviorAnalyzer(client, zaptest.NewLogger(t))

	behavior, detected := a.Scan(context.Background(), analyzerWindow(), []AgentInfo{{ID: "a1"}, {ID: "a2"}, {ID: "u1"}})
	require.True(t, detected)
	assert.NotEmpty(t, behavior.ID)
	assert.Equal(t, "social_engineering_chain", behavior.Type)
	assert.Equal(t, []string{"a1", "a2"}, behavior.Participants)
	assert.Equal(t, 0.8, behavior.Strength)
	assert.False(t, behavior.DetectedAt.IsZero())
}

func TestAnalyzer_StrengthClamped(t *testing.T) {
	client := oracle.NewScriptedClient(zaptest.NewLogger(t))
	client.Override(oracle.SiteBehaviorVerdict, func(oracle.GenerationRequest) (string, error) {
		return `{"detected": true, "behavior_type": "trust_cascade", "strength": 7.5}`, nil
	})
	a := NewBehaviorAnalyzer(client, zaptest.NewLogger(t))

	behavior, detected := a.Scan(context.Background(), analyzerWindow(), nil)
	require.True(t, detected)
	assert.Equal(t, 1.0, behavior.Strength)
}

// TestAnalyzer_NegativeFallback covers the failure modes that must all read
// as "no pattern": oracle error, garbage response, and a verdict without a
// behavior type.
func TestAnalyzer_NegativeFallback(t *testing.T) {
	tests := []struct {
		name   string
		script oracle.ScriptFunc
	}{
		{"oracle error", func(oracle.GenerationRequest) (string, error) { return "", errors.New("timeout") }},
		{"garbage response", func(oracle.GenerationRequest) (string, error) { return "definitely not json", nil }},
		{"detected without type", func(oracle.GenerationRequest) (string, error) { return `{"detected": true}`, nil }},
		{"explicit negative", func(oracle.GenerationRequest) (string, error) { return `{"detected": false}`, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := oracle.NewScriptedClient(zaptest.NewLogger(t))
			client.Override(oracle.SiteBehaviorVerdict, tt.script)
			a := NewBehaviorAnalyzer(client, zaptest.NewLogger(t))

			_, detected := a.Scan(context.Background(), analyzerWindow(), nil)
			assert.False(t, detected)
		})
	}
}
