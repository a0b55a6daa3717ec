// File: internal/sim/agent/adversary.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/environment"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/goals"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/memory"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// AdversaryCognition drives red-team personas. Its perception specializes in
// target profiling: visible agents are scored for value and susceptibility,
// with the oracle refining the heuristic score when available.
type AdversaryCognition struct {
	logger *zap.Logger

	// profiles caches per-target oracle assessments across cycles. Accessed
	// only from the owning loop.
	profiles map[string]oracle.TargetProfile
}

// NewAdversaryCognition builds the red-team cognition.
func NewAdversaryCognition(logger *zap.Logger) *AdversaryCognition {
	return &AdversaryCognition{
		logger:   logger.Named("adversary"),
		profiles: make(map[string]oracle.TargetProfile),
	}
}

// GoalTemplates seeds the red-team objective set, with subtype extras.
func (c *AdversaryCognition) GoalTemplates(p persona.Persona) []goals.Goal {
	gs := []goals.Goal{
		{Type: goals.TypePrimary, Description: "exploit_vulnerabilities", Priority: 8},
		{Type: goals.TypePrimary, Description: "gather_intelligence", Priority: 7},
		{Type: goals.TypeSecondary, Description: "establish_trust", Priority: 6},
	}
	switch p.Subtype {
	case "phisher", "social-engineer":
		gs = append(gs, goals.Goal{Type: goals.TypeSecondary, Description: "harvest_credentials", Priority: 7})
	case "insider":
		gs = append(gs, goals.Goal{Type: goals.TypeSecondary, Description: "abuse_access", Priority: 7})
	}
	return gs
}

// Perceive snapshots the environment and profiles every visible agent.
// Unexploited vulnerabilities and low-awareness targets surface as
// opportunities.
func (c *AdversaryCognition) Perceive(ctx context.Context, a *Agent) Perception {
	env := a.Environment()
	p := Perception{
		State:        env.StateSnapshot(),
		RecentEvents: env.RecentEvents(a.ID()),
	}

	for _, info := range env.VisibleAgents(a.ID()) {
		profile := c.profileTarget(ctx, a, info)
		view := AgentView{
			Info:         info,
			Relationship: "target",
			Trust:        0.2,
			ValueLevel:   profile.Value,
		}
		if info.Category == persona.CategoryDefender {
			view.Relationship = "obstacle"
			view.ThreatLevel = 0.8
		}
		p.VisibleAgents = append(p.VisibleAgents, view)

		if info.Category != persona.CategoryAdversary && profile.Susceptibility >= 0.5 {
			p.Opportunities = append(p.Opportunities, PerceivedOpportunity{
				TargetID:    info.ID,
				Kind:        "social",
				Description: fmt.Sprintf("%s looks receptive: %s", info.Name, profile.RecommendedPlay),
				Value:       profile.Value * profile.Susceptibility,
			})
		}
	}

	for _, v := range p.State.Vulnerabilities {
		if v.Exploited {
			continue
		}
		p.Opportunities = append(p.Opportunities, PerceivedOpportunity{
			TargetID:    v.ID,
			Kind:        "technical",
			Description: fmt.Sprintf("unpatched %s: %s", v.Component, v.Description),
			Value:       v.Severity,
		})
	}

	// Countermeasures and alerts read as pressure from the blue team.
	for _, ev := range p.RecentEvents {
		if ev.Type == environment.EventThreatMitigated || ev.Type == environment.EventAlertRaised {
			p.Threats = append(p.Threats, PerceivedThreat{
				Source:      ev.Actor,
				ThreatType:  "detection",
				Description: ev.Description,
				Severity:    ev.Severity,
				Confidence:  0.6,
			})
		}
	}

	if len(p.Opportunities) > 0 {
		a.AdvanceGoal("gather_intelligence", 0.1*float64(len(p.Opportunities)))
	}
	return p
}

// profileTarget scores one potential target, preferring a cached oracle
// assessment and falling back to category heuristics.
func (c *AdversaryCognition) profileTarget(ctx context.Context, a *Agent, info environment.AgentInfo) oracle.TargetProfile {
	if cached, ok := c.profiles[info.ID]; ok {
		return cached
	}

	fallback := oracle.TargetProfile{Value: 0.4, Susceptibility: 0.3, RecommendedPlay: "observe"}
	switch info.Category {
	case persona.CategoryUser:
		fallback = oracle.TargetProfile{Value: 0.8, Susceptibility: 0.6, RecommendedPlay: "build rapport, then pretext"}
	case persona.CategoryDefender:
		fallback = oracle.TargetProfile{Value: 0.5, Susceptibility: 0.2, RecommendedPlay: "avoid direct contact"}
	case persona.CategoryAdversary:
		fallback = oracle.TargetProfile{Value: 0.1, Susceptibility: 0.1, RecommendedPlay: "ignore"}
	}

	response, err := a.Oracle().Generate(ctx, oracle.GenerationRequest{
		Site: oracle.SiteTargetAnalysis,
		SystemPrompt: personaPrompt(a.Persona()) +
			"\nAssess the named person as a target. Respond ONLY with a JSON object: {\"value\": 0.0-1.0, \"susceptibility\": 0.0-1.0, \"recommended_play\": \"...\", \"rationale\": \"...\"}.",
		UserPrompt: fmt.Sprintf("Target: %s, a %s (%s).", info.Name, info.Category, info.Subtype),
		Options:    oracle.GenerationOptions{ForceJSONFormat: true, Temperature: 0.3},
	})
	if err != nil {
		c.profiles[info.ID] = fallback
		return fallback
	}
	var profile oracle.TargetProfile
	if err := oracle.DecodeJSON(response, &profile); err != nil {
		c.profiles[info.ID] = fallback
		return fallback
	}
	profile.Value = clamp01(profile.Value)
	profile.Susceptibility = clamp01(profile.Susceptibility)
	c.profiles[info.ID] = profile
	return profile
}

// Reprioritize shifts toward caution under blue-team pressure and toward
// exploitation when technical openings are in view.
func (c *AdversaryCognition) Reprioritize(a *Agent, p Perception) {
	pressure := len(p.Threats) > 0
	technical := false
	for _, o := range p.Opportunities {
		if o.Kind == "technical" {
			technical = true
			break
		}
	}

	a.goals.Reprioritize(func(g goals.Goal) int {
		switch g.Description {
		case "exploit_vulnerabilities":
			if pressure {
				return 4
			}
			if technical {
				return 9
			}
			return g.Priority
		case "establish_trust":
			if pressure {
				return 8
			}
			return g.Priority
		default:
			return g.Priority
		}
	})
}

// ActionMenu is the red-team vocabulary. Reconnaissance leads: it is the
// low-risk default when the oracle cannot choose.
func (c *AdversaryCognition) ActionMenu(p Perception) []ActionSpec {
	return []ActionSpec{
		{Name: "reconnaissance", Category: "recon", Description: "Survey targets and defenses without exposure.", Goal: "gather_intelligence", Progress: 0.2},
		{Name: "trust_building", Category: "social", Description: "Send a benign message to a target to build rapport.", Goal: "establish_trust", Progress: 0.25},
		{Name: "social_engineering", Category: "social", Description: "Pressure a susceptible target with a pretext request.", Goal: "establish_trust", Progress: 0.2},
		{Name: "phishing", Category: "attack", Description: "Send a credential-harvesting lure to the most valuable target.", Goal: "harvest_credentials", Progress: 0.35},
		{Name: "exploit", Category: "attack", Description: "Exploit a known unpatched vulnerability.", Goal: "exploit_vulnerabilities", Progress: 0.4},
		{Name: "maintain_cover", Category: "stealth", Description: "Blend into normal activity to reduce suspicion.", Goal: "establish_trust", Progress: 0.1},
		{Name: "escalate", Category: "attack", Description: "Push an existing foothold further.", Goal: "exploit_vulnerabilities", Progress: 0.2},
		{Name: "retreat", Category: "stealth", Description: "Go quiet until blue-team attention fades.", Goal: "", Progress: 0},
	}
}

// Execute performs one red-team action against the environment.
func (c *AdversaryCognition) Execute(ctx context.Context, a *Agent, action ActionSpec, p Perception) (string, error) {
	env := a.Environment()

	switch action.Name {
	case "reconnaissance":
		env.RecordAction(a.ID(), "scanning visible hosts and watching user activity", 0.5)
		return fmt.Sprintf("profiled %d agents, %d openings noted", len(p.VisibleAgents), len(p.Opportunities)), nil

	case "trust_building":
		target := c.bestTarget(p, 0)
		if target == "" {
			return "no approachable target", nil
		}
		if err := env.SendMessage(messaging.New(a.ID(), []string{target}, messaging.InformPayload{
			Topic:   "friendly-contact",
			Details: "Hey, saw you were also working late. The new VPN rollout is a mess, right?",
		})); err != nil {
			return "", err
		}
		return fmt.Sprintf("opened rapport with %s", target), nil

	case "social_engineering":
		target := c.bestTarget(p, 0.5)
		if target == "" {
			return "no susceptible target", nil
		}
		msg := messaging.New(a.ID(), []string{target}, messaging.RequestPayload{
			Action: "share your screen for a quick config check",
			Reason: "IT asked me to verify everyone's VPN settings before the audit",
		})
		msg.ResponseRequired = true
		if err := env.SendMessage(msg); err != nil {
			return "", err
		}
		return fmt.Sprintf("pretexted %s", target), nil

	case "phishing":
		target := c.bestTarget(p, 0)
		if target == "" {
			return "no target for the lure", nil
		}
		msg := messaging.New(a.ID(), []string{target}, messaging.ThreatPayload{
			ThreatType: "phishing",
			Severity:   0.7,
			Details:    "urgent: your account will be locked, confirm your password at the linked portal",
		})
		msg.Priority = messaging.PriorityHigh
		if err := env.SendMessage(msg); err != nil {
			return "", err
		}
		env.RecordAction(a.ID(), "sent a credential-harvesting lure", 0.8)
		a.Remember(memory.Item{
			Kind:         memory.KindEpisodic,
			Content:      fmt.Sprintf("phished %s", target),
			Importance:   0.7,
			DecayRate:    0.01,
			Event:        "phishing",
			Participants: []string{target},
		})
		return fmt.Sprintf("lure sent to %s", target), nil

	case "exploit":
		if env.ExploitVulnerability(a.ID()) {
			a.AdvanceGoal("abuse_access", 0.3)
			return "exploited an unpatched component", nil
		}
		return "no exploitable vulnerability remained", nil

	case "escalate":
		env.RecordAction(a.ID(), "probing for lateral movement from an existing foothold", 0.7)
		return "escalation attempted", nil

	case "maintain_cover":
		env.RecordAction(a.ID(), "routine-looking activity", 0.1)
		return "blended into normal traffic", nil

	case "retreat":
		return "went quiet", nil
	}
	return "", fmt.Errorf("unknown adversary action %q", action.Name)
}

// HandleMessage keeps the deception going: queries get plausible answers,
// warnings about the agent's own activity are noted as detection pressure.
func (c *AdversaryCognition) HandleMessage(ctx context.Context, a *Agent, msg messaging.Message) {
	env := a.Environment()

	switch payload := msg.Payload.(type) {
	case messaging.WarningPayload:
		a.Remember(memory.Item{
			Kind:       memory.KindSemantic,
			Content:    fmt.Sprintf("defenders circulated a warning about %s", payload.Subject),
			Importance: 0.65,
			DecayRate:  0.02,
			Subject:    msg.Sender,
			Relation:   "warned-about",
			Object:     payload.Subject,
		})

	case messaging.QueryPayload:
		reply := messaging.New(a.ID(), []string{msg.Sender}, messaging.InformPayload{
			Topic:   "query-response",
			Details: "nothing unusual on my side",
		})
		reply.ConversationID = msg.ID
		if err := env.SendMessage(reply); err != nil {
			c.logger.Debug("Reply failed", zap.Error(err))
		}

	case messaging.VerdictPayload:
		if payload.Accepted {
			a.AdvanceGoal("establish_trust", 0.2)
		}

	case messaging.ProposePayload:
		// Playing along keeps cover; accept and do nothing.
		reply := messaging.New(a.ID(), []string{msg.Sender}, messaging.VerdictPayload{
			ProposalID: msg.ID,
			Accepted:   true,
			Reason:     "happy to help",
		})
		reply.ConversationID = msg.ID
		if err := env.SendMessage(reply); err != nil {
			c.logger.Debug("Reply failed", zap.Error(err))
		}
	}
}

// bestTarget returns the highest-value non-adversary meeting the minimum
// susceptibility, using cached profiles.
func (c *AdversaryCognition) bestTarget(p Perception, minSusceptibility float64) string {
	bestID := ""
	bestScore := -1.0
	for _, v := range p.VisibleAgents {
		if v.Info.Category == persona.CategoryAdversary {
			continue
		}
		profile, ok := c.profiles[v.Info.ID]
		if !ok {
			profile = oracle.TargetProfile{Value: v.ValueLevel, Susceptibility: 0.5}
		}
		if profile.Susceptibility < minSusceptibility {
			continue
		}
		if score := profile.Value * (0.5 + profile.Susceptibility/2); score > bestScore {
			bestScore = score
			bestID = v.Info.ID
		}
	}
	return bestID
}

var _ Cognition = (*AdversaryCognition)(nil)
