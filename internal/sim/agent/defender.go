// File: internal/sim/agent/defender.go
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/environment"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/goals"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/memory"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// DefenderCognition drives defender personas and, with quieter goal
// templates, ordinary users. Its perception specializes in threat modeling:
// every threat event in view is judged by the oracle, and confidence grows
// with corroboration across cycles.
type DefenderCognition struct {
	logger *zap.Logger

	// threatModel persists across cycles so repeated sightings of the same
	// threat type raise confidence. Accessed only from the owning loop.
	threatModel map[string]PerceivedThreat
}

// NewDefenderCognition builds the defender-side cognition.
func NewDefenderCognition(logger *zap.Logger) *DefenderCognition {
	return &DefenderCognition{
		logger:      logger.Named("defender"),
		threatModel: make(map[string]PerceivedThreat),
	}
}

// GoalTemplates seeds defenders with an active posture and ordinary users
// with a quiet one.
func (d *DefenderCognition) GoalTemplates(p persona.Persona) []goals.Goal {
	if p.Category == persona.CategoryUser {
		return []goals.Goal{
			{Type: goals.TypePrimary, Description: "complete_daily_work", Priority: 7},
			{Type: goals.TypeSecondary, Description: "avoid_security_mistakes", Priority: 5},
			{Type: goals.TypeSecondary, Description: "report_suspicious_activity", Priority: 3},
		}
	}
	return []goals.Goal{
		{Type: goals.TypePrimary, Description: "maintain_security_posture", Priority: 8},
		{Type: goals.TypePrimary, Description: "detect_threats", Priority: 7},
		{Type: goals.TypeSecondary, Description: "investigate_incidents", Priority: 5},
		{Type: goals.TypeSecondary, Description: "educate_users", Priority: 4},
	}
}

// Perceive snapshots the environment and runs threat modeling over the
// visible threat events. Seeing threats is itself detection progress.
func (d *DefenderCognition) Perceive(ctx context.Context, a *Agent) Perception {
	env := a.Environment()
	p := Perception{
		State:        env.StateSnapshot(),
		RecentEvents: env.RecentEvents(a.ID()),
	}

	for _, info := range env.VisibleAgents(a.ID()) {
		view := AgentView{Info: info, Relationship: "colleague", Trust: 0.6}
		if info.Category == persona.CategoryAdversary {
			// Defenders do not see the red team's label in a real exercise,
			// but behavioral history colors the view once threats attribute.
			view.Relationship = "unknown"
			view.Trust = 0.4
		}
		if model, ok := d.threatModel[info.ID]; ok {
			view.ThreatLevel = model.Confidence * model.Severity
			view.Trust = clamp01(view.Trust - view.ThreatLevel/2)
			view.Relationship = "suspect"
		}
		p.VisibleAgents = append(p.VisibleAgents, view)
	}

	for _, ev := range p.RecentEvents {
		if !ev.IsThreatEvent() || ev.Type == environment.EventThreatMitigated {
			continue
		}
		p.Threats = append(p.Threats, d.judgeThreat(ctx, a, ev))
	}
	for _, t := range p.State.Threats {
		if t.Mitigated {
			continue
		}
		p.Threats = append(p.Threats, d.corroborate(PerceivedThreat{
			ThreatType:  t.Type,
			Description: t.Description,
			Severity:    t.Severity,
			Confidence:  0.6,
		}))
	}

	if len(p.Threats) > 0 {
		a.AdvanceGoal("detect_threats", 0.2*float64(len(p.Threats)))
		a.AdvanceGoal("report_suspicious_activity", 0.1)
	}
	return p
}

// judgeThreat asks the oracle whether one event is hostile. On failure the
// event is kept as a low-confidence threat rather than dropped: defenders
// err on the side of suspicion.
func (d *DefenderCognition) judgeThreat(ctx context.Context, a *Agent, ev environment.Event) PerceivedThreat {
	fallback := PerceivedThreat{
		Source:      ev.Actor,
		ThreatType:  "unclassified",
		Description: ev.Description,
		Severity:    ev.Severity,
		Confidence:  0.3,
	}

	response, err := a.Oracle().Generate(ctx, oracle.GenerationRequest{
		Site: oracle.SiteThreatAnalysis,
		SystemPrompt: personaPrompt(a.Persona()) +
			"\nAssess whether the observed event is hostile. Respond ONLY with a JSON object: {\"is_threat\": bool, \"threat_type\": \"...\", \"severity\": 0.0-1.0, \"confidence\": 0.0-1.0, \"description\": \"...\"}.",
		UserPrompt: fmt.Sprintf("Observed event (%s) by %q: %s (severity %.2f)", ev.Type, ev.Actor, ev.Description, ev.Severity),
		Options:    oracle.GenerationOptions{ForceJSONFormat: true, Temperature: 0.2},
	})
	if err != nil {
		return d.corroborate(fallback)
	}
	var judgment oracle.ThreatJudgment
	if err := oracle.DecodeJSON(response, &judgment); err != nil {
		return d.corroborate(fallback)
	}
	if !judgment.IsThreat {
		fallback.Confidence = 0.1
		return fallback
	}
	return d.corroborate(PerceivedThreat{
		Source:      ev.Actor,
		ThreatType:  judgment.ThreatType,
		Description: judgment.Description,
		Severity:    clamp01(judgment.Severity),
		Confidence:  clamp01(judgment.Confidence),
	})
}

// corroborate merges a sighting into the persistent threat model. A repeat
// sighting of the same source raises confidence; the model keeps the higher
// severity.
func (d *DefenderCognition) corroborate(t PerceivedThreat) PerceivedThreat {
	key := t.Source
	if key == "" {
		key = t.ThreatType
	}
	if prior, ok := d.threatModel[key]; ok {
		t.Confidence = clamp01(prior.Confidence + 0.15)
		if prior.Severity > t.Severity {
			t.Severity = prior.Severity
		}
	}
	d.threatModel[key] = t
	return t
}

// Reprioritize raises incident response over routine posture work when the
// security level drops or confirmed threats are in view.
func (d *DefenderCognition) Reprioritize(a *Agent, p Perception) {
	confirmed := 0
	for _, t := range p.Threats {
		if t.Confidence >= 0.5 {
			confirmed++
		}
	}
	underPressure := p.State.SecurityLevel < 0.5 || confirmed > 0

	a.goals.Reprioritize(func(g goals.Goal) int {
		switch g.Description {
		case "investigate_incidents":
			if underPressure {
				return 9
			}
			return 5
		case "educate_users":
			if underPressure {
				return 2
			}
			return 4
		default:
			return g.Priority
		}
	})
}

// ActionMenu is the defender vocabulary. Investigate leads: it is the safe
// default when the oracle cannot choose.
func (d *DefenderCognition) ActionMenu(p Perception) []ActionSpec {
	menu := []ActionSpec{
		{Name: "investigate", Category: "analysis", Description: "Examine recent events for signs of compromise.", Goal: "investigate_incidents", Progress: 0.25},
		{Name: "monitor", Category: "analysis", Description: "Watch current activity without intervening.", Goal: "detect_threats", Progress: 0.1},
		{Name: "warn_colleagues", Category: "communication", Description: "Broadcast a warning about an observed threat.", Goal: "educate_users", Progress: 0.2},
		{Name: "educate", Category: "communication", Description: "Share security guidance with other users.", Goal: "educate_users", Progress: 0.25},
		{Name: "implement_countermeasure", Category: "defense", Description: "Open an incident and mitigate an active threat.", Goal: "maintain_security_posture", Progress: 0.3},
		{Name: "collaborate", Category: "communication", Description: "Propose a joint response with another defender.", Goal: "investigate_incidents", Progress: 0.15},
	}
	return menu
}

// Execute performs one defender action against the environment.
func (d *DefenderCognition) Execute(ctx context.Context, a *Agent, action ActionSpec, p Perception) (string, error) {
	env := a.Environment()

	switch action.Name {
	case "investigate":
		suspicious := 0
		for _, ev := range p.RecentEvents {
			if ev.Severity >= 0.5 {
				suspicious++
			}
		}
		env.RecordAction(a.ID(), fmt.Sprintf("reviewed %d recent events, %d suspicious", len(p.RecentEvents), suspicious), 0.4)
		return fmt.Sprintf("reviewed %d events, flagged %d", len(p.RecentEvents), suspicious), nil

	case "monitor":
		env.RecordAction(a.ID(), "monitoring network and user activity", 0.2)
		return fmt.Sprintf("monitoring; security level at %.2f", p.State.SecurityLevel), nil

	case "warn_colleagues":
		threat, ok := topThreat(p.Threats)
		if !ok {
			env.RecordAction(a.ID(), "stood down a warning: no active threat to report", 0.2)
			return "no threat worth a warning", nil
		}
		env.Broadcast(messaging.NewBroadcast(a.ID(), messaging.WarningPayload{
			Subject:  threat.ThreatType,
			Severity: threat.Severity,
			Details:  threat.Description,
		}))
		return fmt.Sprintf("warned colleagues about %s", threat.ThreatType), nil

	case "educate":
		env.Broadcast(messaging.NewBroadcast(a.ID(), messaging.InformPayload{
			Topic:   "security-guidance",
			Details: "Verify sender identity before acting on unexpected requests; report anything unusual.",
		}))
		return "shared security guidance", nil

	case "implement_countermeasure":
		threat, ok := topThreat(p.Threats)
		threatType := "unclassified"
		if ok {
			threatType = threat.ThreatType
		}
		env.ImplementSecurityMeasure(a.ID(), threatType, fmt.Sprintf("countermeasure against %s", threatType))
		a.AdvanceGoal("maintain_security_posture", 0.1)
		return fmt.Sprintf("deployed countermeasure against %s", threatType), nil

	case "collaborate":
		peer := pickPeer(p.VisibleAgents, persona.CategoryDefender)
		if peer == "" {
			return "no defender available to collaborate with", nil
		}
		msg := messaging.New(a.ID(), []string{peer}, messaging.ProposePayload{
			Proposal: "joint incident review of recent suspicious activity",
			Benefit:  "shared evidence raises detection confidence",
		})
		msg.ResponseRequired = true
		if err := env.SendMessage(msg); err != nil {
			return "", err
		}
		return fmt.Sprintf("proposed joint review to %s", peer), nil
	}
	return "", fmt.Errorf("unknown defender action %q", action.Name)
}

// HandleMessage reacts to inbound traffic. Hostile pressure feeds the threat
// model and may trigger an immediate alert; proposals from trusted peers are
// accepted.
func (d *DefenderCognition) HandleMessage(ctx context.Context, a *Agent, msg messaging.Message) {
	env := a.Environment()

	switch payload := msg.Payload.(type) {
	case messaging.ThreatPayload:
		d.corroborate(PerceivedThreat{
			Source:      msg.Sender,
			ThreatType:  payload.ThreatType,
			Description: payload.Details,
			Severity:    clamp01(payload.Severity),
			Confidence:  0.7,
		})
		env.RaiseAlert(a.ID(), fmt.Sprintf("hostile message from %s: %s", msg.Sender, payload.ThreatType), payload.Severity)
		a.AdvanceGoal("detect_threats", 0.25)
		d.logger.Info("Hostile message received",
			zap.String("sender", msg.Sender), zap.String("threat_type", payload.ThreatType))

	case messaging.WarningPayload:
		d.corroborate(PerceivedThreat{
			ThreatType:  payload.Subject,
			Description: payload.Details,
			Severity:    clamp01(payload.Severity),
			Confidence:  0.4,
		})

	case messaging.ProposePayload:
		reply := messaging.New(a.ID(), []string{msg.Sender}, messaging.VerdictPayload{
			ProposalID: msg.ID,
			Accepted:   true,
			Reason:     "joint response improves coverage",
		})
		reply.ConversationID = msg.ID
		if err := env.SendMessage(reply); err != nil {
			d.logger.Debug("Reply failed", zap.Error(err))
		}

	case messaging.QueryPayload:
		reply := messaging.New(a.ID(), []string{msg.Sender}, messaging.InformPayload{
			Topic:   "query-response",
			Details: fmt.Sprintf("current security level observations as of %s", time.Now().UTC().Format(time.RFC3339)),
		})
		reply.ConversationID = msg.ID
		if err := env.SendMessage(reply); err != nil {
			d.logger.Debug("Reply failed", zap.Error(err))
		}

	case messaging.RequestPayload:
		// Requests from unvetted senders are remembered but not acted on.
		a.Remember(memory.Item{
			Kind:       memory.KindSemantic,
			Content:    fmt.Sprintf("%s requested %q (%s)", msg.Sender, payload.Action, payload.Reason),
			Importance: 0.5,
			DecayRate:  0.02,
			Subject:    msg.Sender,
			Relation:   "requested",
			Object:     payload.Action,
		})
	}
}

// topThreat returns the most severe confirmed threat in view.
func topThreat(threats []PerceivedThreat) (PerceivedThreat, bool) {
	var best PerceivedThreat
	found := false
	for _, t := range threats {
		if t.Confidence < 0.3 {
			continue
		}
		if !found || t.Severity*t.Confidence > best.Severity*best.Confidence {
			best = t
			found = true
		}
	}
	return best, found
}

// pickPeer returns the first visible agent of the wanted category.
func pickPeer(views []AgentView, category persona.Category) string {
	for _, v := range views {
		if v.Info.Category == category {
			return v.Info.ID
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ Cognition = (*DefenderCognition)(nil)
