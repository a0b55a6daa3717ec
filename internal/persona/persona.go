// File: internal/persona/persona.go
//
// Package persona defines the static profiles that drive agent behavior.
// A persona is read-only once a simulation starts.
package persona

import (
	"fmt"
	"math"
	"os"

	json "github.com/json-iterator/go"
)

// Category classifies a persona's role in the simulated world.
type Category string

const (
	CategoryDefender  Category = "defender"
	CategoryAdversary Category = "adversary"
	CategoryUser      Category = "ordinary-user"
)

// SkillVector holds the four behavioral trait dimensions, each on a 1-5 scale.
type SkillVector struct {
	TechnicalExpertise float64 `json:"technical_expertise"`
	PrivacyConcern     float64 `json:"privacy_concern"`
	RiskTolerance      float64 `json:"risk_tolerance"`
	SecurityAwareness  float64 `json:"security_awareness"`
}

// Validate checks that every dimension sits on the 1-5 scale.
func (s SkillVector) Validate() error {
	for name, v := range map[string]float64{
		"technical_expertise": s.TechnicalExpertise,
		"privacy_concern":     s.PrivacyConcern,
		"risk_tolerance":      s.RiskTolerance,
		"security_awareness":  s.SecurityAwareness,
	} {
		if v < 1 || v > 5 {
			return fmt.Errorf("skill %s must be between 1 and 5, got %v", name, v)
		}
	}
	return nil
}

// CosineSimilarity compares two skill vectors on [0,1]. Used by the
// persona-fidelity metric to compare declared traits against oracle-assessed
// behavior.
func (s SkillVector) CosineSimilarity(other SkillVector) float64 {
	a := [4]float64{s.TechnicalExpertise, s.PrivacyConcern, s.RiskTolerance, s.SecurityAwareness}
	b := [4]float64{other.TechnicalExpertise, other.PrivacyConcern, other.RiskTolerance, other.SecurityAwareness}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Persona is the immutable profile one Agent is built from.
type Persona struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Category         Category    `json:"category"`
	Subtype          string      `json:"subtype"`
	Skills           SkillVector `json:"skills"`
	Motivation       string      `json:"motivation"`
	BehavioralTraits []string    `json:"behavioral_traits"`
}

// Validate checks the persona for required fields and a known category.
func (p Persona) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("persona id is required")
	}
	switch p.Category {
	case CategoryDefender, CategoryAdversary, CategoryUser:
	default:
		return fmt.Errorf("persona %s has unknown category %q", p.ID, p.Category)
	}
	if err := p.Skills.Validate(); err != nil {
		return fmt.Errorf("persona %s: %w", p.ID, err)
	}
	return nil
}

// Scenario labels the simulated world. The step list is consumed only for
// environment labeling; it does not script agent behavior.
type Scenario struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

// LoadPersonas reads and validates a persona list from a JSON file.
func LoadPersonas(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personas file: %w", err)
	}

	var personas []Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("failed to parse personas file %s: %w", path, err)
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("personas file %s contains no personas", path)
	}

	seen := make(map[string]bool, len(personas))
	for _, p := range personas {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return personas, nil
}

// LoadScenario reads a scenario descriptor from a JSON file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	if sc.Title == "" {
		sc.Title = "untitled scenario"
	}
	return sc, nil
}
