// File: internal/sim/orchestrator/metrics.go
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
)

// Metrics aggregates what happened over one simulation run.
type Metrics struct {
	TotalCycles         int                `json:"total_cycles"`
	TotalInteractions   int                `json:"total_interactions"`
	BehaviorsDetected   int                `json:"behaviors_detected"`
	ThreatsGenerated    int                `json:"threats_generated"`
	IncidentsOpened     int                `json:"incidents_opened"`
	AverageActivityRate float64            `json:"average_activity_rate"`
	SecurityLevelSeries []float64          `json:"security_level_series"`
	GoalCompletions     map[string]int     `json:"goal_completions"`
	BehavioralDiversity float64            `json:"behavioral_diversity"`
	VulnerabilityScore  float64            `json:"vulnerability_score"`
	PersonaFidelity     map[string]float64 `json:"persona_fidelity"`
}

// actionStep is one persona's action-category choice in one cycle. The
// diversity metric groups these by cycle.
type actionStep struct {
	Cycle    int
	AgentID  string
	Category string
}

// behavioralDiversity is the mean Shannon entropy (in bits) of the
// action-category distribution per cycle. Cycles where at most one persona
// acted are excluded from the mean rather than counted as zero: a lone
// actor says nothing about diversity across personas. Two agents choosing
// the same category score 0; two agents choosing different categories score
// 1 bit.
func behavioralDiversity(steps []actionStep) float64 {
	byCycle := make(map[int][]actionStep)
	for _, s := range steps {
		byCycle[s.Cycle] = append(byCycle[s.Cycle], s)
	}

	total := 0.0
	counted := 0
	for _, cycleSteps := range byCycle {
		personas := make(map[string]struct{})
		categories := make(map[string]int)
		for _, s := range cycleSteps {
			personas[s.AgentID] = struct{}{}
			categories[s.Category]++
		}
		if len(personas) <= 1 {
			continue
		}

		n := float64(len(cycleSteps))
		entropy := 0.0
		for _, count := range categories {
			p := float64(count) / n
			entropy -= p * math.Log2(p)
		}
		total += entropy
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

// vulnerabilityScore is the fraction of interactions that carried hostile
// pressure, weighted toward high-severity ones.
func vulnerabilityScore(threatCount, highSeverityCount, totalInteractions int) float64 {
	if totalInteractions == 0 {
		return 0
	}
	score := float64(threatCount)/float64(totalInteractions) + 0.5*float64(highSeverityCount)/float64(totalInteractions)
	if score > 1 {
		return 1
	}
	return score
}

// assessFidelity scores how closely an agent's decisions matched its declared
// persona: the oracle infers a trait vector from the decision log and the
// score is its cosine similarity to the declared one. When the oracle is
// unavailable the declared traits stand in for the assessed ones, scaled
// down by how erratic the decision confidences were.
func assessFidelity(ctx context.Context, client oracle.Client, p persona.Persona, decisions []decisionSummary) float64 {
	if len(decisions) == 0 {
		return 0
	}

	var sb strings.Builder
	for _, d := range decisions {
		fmt.Fprintf(&sb, "- cycle %d: chose %q (confidence %.2f): %s\n", d.Cycle, d.Action, d.Confidence, d.Reasoning)
	}

	response, err := client.Generate(ctx, oracle.GenerationRequest{
		Site: oracle.SiteTraitAssessment,
		SystemPrompt: "You infer behavioral traits from a decision log. Rate each trait on a 1-5 scale. " +
			"Respond ONLY with a JSON object: {\"technical_expertise\": n, \"privacy_concern\": n, \"risk_tolerance\": n, \"security_awareness\": n}.",
		UserPrompt: fmt.Sprintf("Decisions made by a %s (%s):\n%s", p.Category, p.Subtype, sb.String()),
		Options:    oracle.GenerationOptions{ForceJSONFormat: true, Temperature: 0.1},
	})
	if err == nil {
		var assessed oracle.TraitAssessment
		if err := oracle.DecodeJSON(response, &assessed); err == nil {
			inferred := persona.SkillVector{
				TechnicalExpertise: assessed.TechnicalExpertise,
				PrivacyConcern:     assessed.PrivacyConcern,
				RiskTolerance:      assessed.RiskTolerance,
				SecurityAwareness:  assessed.SecurityAwareness,
			}
			if inferred.Validate() == nil {
				return p.Skills.CosineSimilarity(inferred)
			}
		}
	}

	// Deterministic fallback: self-similarity (1.0) damped by confidence
	// variance, so an erratic agent still scores below a steady one.
	mean := 0.0
	for _, d := range decisions {
		mean += d.Confidence
	}
	mean /= float64(len(decisions))
	variance := 0.0
	for _, d := range decisions {
		variance += (d.Confidence - mean) * (d.Confidence - mean)
	}
	variance /= float64(len(decisions))
	return 1.0 - math.Min(variance*2, 0.5)
}

// decisionSummary is the slice of a decision the fidelity assessment needs.
type decisionSummary struct {
	Cycle      int
	Action     string
	Reasoning  string
	Confidence float64
}
