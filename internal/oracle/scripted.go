// File: internal/oracle/scripted.go
package oracle

import (
	"context"
	"fmt"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// ScriptFunc produces a canned response body for a request.
type ScriptFunc func(req GenerationRequest) (string, error)

// ScriptedClient is a deterministic, in-process oracle. It backs offline runs
// and tests, and doubles as documentation of the default judgment each call
// site receives when the real oracle is unreachable.
type ScriptedClient struct {
	logger *zap.Logger

	mu      sync.RWMutex
	scripts map[Site]ScriptFunc
	calls   map[Site]int
}

// NewScriptedClient creates a scripted oracle with neutral default responses
// for every known call site.
func NewScriptedClient(logger *zap.Logger) *ScriptedClient {
	c := &ScriptedClient{
		logger:  logger.Named("scripted_oracle"),
		scripts: make(map[Site]ScriptFunc),
		calls:   make(map[Site]int),
	}

	c.scripts[SiteThreatAnalysis] = staticJSON(ThreatJudgment{
		IsThreat: false, Confidence: 0.5, Description: "no indicators of compromise",
	})
	c.scripts[SiteTargetAnalysis] = staticJSON(TargetProfile{
		Value: 0.3, Susceptibility: 0.3, RecommendedPlay: "observe", Rationale: "insufficient intelligence",
	})
	c.scripts[SiteActionChoice] = func(req GenerationRequest) (string, error) {
		// Echo no action; callers fall back to the first menu entry.
		return `{"action": "", "reasoning": "scripted default", "confidence": 0.5}`, nil
	}
	c.scripts[SiteBehaviorVerdict] = staticJSON(BehaviorVerdict{Detected: false})
	c.scripts[SiteThreatSynthesis] = staticJSON(SynthesizedThreat{
		ThreatType: "phishing", Severity: 0.4, Vector: "email", Description: "credential phishing campaign",
	})
	c.scripts[SiteTraitAssessment] = staticJSON(TraitAssessment{
		TechnicalExpertise: 3, PrivacyConcern: 3, RiskTolerance: 3, SecurityAwareness: 3,
	})
	return c
}

// Override replaces the script for one call site. Used by tests and scenario
// authors to pin specific oracle behavior.
func (c *ScriptedClient) Override(site Site, fn ScriptFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[site] = fn
}

// Calls reports how many requests a call site has received.
func (c *ScriptedClient) Calls(site Site) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[site]
}

// Generate returns the scripted response for the request's call site.
func (c *ScriptedClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.calls[req.Site]++
	fn, ok := c.scripts[req.Site]
	c.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("no script registered for oracle site %q", req.Site)
	}
	return fn(req)
}

// staticJSON wraps a fixed response value as a ScriptFunc.
func staticJSON(v any) ScriptFunc {
	return func(GenerationRequest) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal scripted response: %w", err)
		}
		return string(data), nil
	}
}

var _ Client = (*ScriptedClient)(nil)
