// File: internal/oracle/oracle.go
//
// Package oracle is the boundary to the external reasoning service. Agents
// hand it a role description and structured context and parse the reply as a
// strict JSON object. Every call site owns a deterministic fallback, so a
// slow, dead or rambling oracle can never wedge a cognitive loop.
package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

// Site identifies the call site so clients (and the scripted backend in
// particular) know which response shape is expected.
type Site string

const (
	SiteThreatAnalysis  Site = "threat_analysis"
	SiteTargetAnalysis  Site = "target_analysis"
	SiteActionChoice    Site = "action_choice"
	SiteBehaviorVerdict Site = "behavior_verdict"
	SiteThreatSynthesis Site = "threat_synthesis"
	SiteTraitAssessment Site = "trait_assessment"
)

// GenerationOptions holds parameters for controlling oracle generation.
type GenerationOptions struct {
	// Temperature controls the creativity of the response. Lower is more deterministic.
	Temperature float32
	// MaxTokens sets the maximum length of the generated response.
	MaxTokens int
	// ForceJSONFormat asks the provider to enforce JSON output mode if available.
	ForceJSONFormat bool
}

// GenerationRequest encapsulates all inputs for a single oracle call.
type GenerationRequest struct {
	Site         Site
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// Client defines the interface for the reasoning oracle. It abstracts the
// specific provider away from the simulation logic.
type Client interface {
	// Generate sends a structured request to the oracle and returns the raw
	// text content. It may fail with a timeout or transport error; callers
	// must fall back to a safe default rather than retry.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

var jsonBlockRegex = regexp.MustCompile("(?s)(?:```json\\s*|)(\\{.*\\})(?:```|)")

// DecodeJSON extracts the first JSON object from an oracle response (handling
// markdown fences and surrounding prose) and unmarshals it into out.
func DecodeJSON(response string, out any) error {
	response = strings.TrimSpace(response)

	jsonStringToParse := response
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		jsonStringToParse = matches[1]
	}

	if err := json.Unmarshal([]byte(jsonStringToParse), out); err != nil {
		return fmt.Errorf("failed to unmarshal oracle response: %w", err)
	}
	return nil
}

// --- Response shapes, one per call site ---
//
// These are the closed set of payloads the simulation accepts from the
// oracle. Anything that does not decode into the expected shape is treated as
// a failure and replaced by the caller's fallback value.

// ThreatJudgment is the reply shape for SiteThreatAnalysis.
type ThreatJudgment struct {
	IsThreat    bool    `json:"is_threat"`
	ThreatType  string  `json:"threat_type"`
	Severity    float64 `json:"severity"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// TargetProfile is the reply shape for SiteTargetAnalysis.
type TargetProfile struct {
	Value           float64 `json:"value"`
	Susceptibility  float64 `json:"susceptibility"`
	RecommendedPlay string  `json:"recommended_play"`
	Rationale       string  `json:"rationale"`
}

// ActionChoice is the reply shape for SiteActionChoice.
type ActionChoice struct {
	Action     string  `json:"action"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// BehaviorVerdict is the reply shape for SiteBehaviorVerdict.
type BehaviorVerdict struct {
	Detected     bool     `json:"detected"`
	BehaviorType string   `json:"behavior_type"`
	Description  string   `json:"description"`
	Participants []string `json:"participants"`
	Strength     float64  `json:"strength"`
	Impact       string   `json:"impact"`
}

// SynthesizedThreat is the reply shape for SiteThreatSynthesis.
type SynthesizedThreat struct {
	ThreatType  string  `json:"threat_type"`
	Severity    float64 `json:"severity"`
	Vector      string  `json:"vector"`
	Description string  `json:"description"`
}

// TraitAssessment is the reply shape for SiteTraitAssessment.
type TraitAssessment struct {
	TechnicalExpertise float64 `json:"technical_expertise"`
	PrivacyConcern     float64 `json:"privacy_concern"`
	RiskTolerance      float64 `json:"risk_tolerance"`
	SecurityAwareness  float64 `json:"security_awareness"`
}
