// File: internal/sim/environment/environment.go
//
// Package environment owns the shared world state and acts as the transport
// for all inter-agent messaging. It is the one structure mutated from many
// goroutines: every read and write goes through its mutex, and snapshots are
// deep copies so no caller ever observes a half-applied update.
package environment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/config"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// RetentionWindow is how long events, messages, activities and traffic stay
// in history before the tick loop prunes them.
const RetentionWindow = 10 * time.Minute

// threatSynthesisChance is the per-tick probability of asking the oracle to
// invent a new threat.
const threatSynthesisChance = 0.15

// Member is the contract the environment needs from a registered agent.
type Member interface {
	ID() string
	Persona() persona.Persona
	Start(ctx context.Context)
	Stop()
	Deliver(msg messaging.Message)
	Quiescent() bool
}

// AgentInfo is the neutral description of a visible agent. Trust, threat and
// value interpretation is up to the observer's cognition.
type AgentInfo struct {
	ID       string
	Name     string
	Category persona.Category
	Subtype  string
}

// Environment is the single source of truth for world state.
type Environment struct {
	logger *zap.Logger
	cfg    config.SimulationConfig
	oracle oracle.Client
	rng    *rand.Rand

	analyzer *BehaviorAnalyzer

	mu        sync.RWMutex
	state     State
	members   map[string]Member
	events    []Event
	messages  []messaging.Message
	behaviors []EmergentBehavior
	running   bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an environment labeled by the scenario. The world starts at a
// middling security level with one seeded vulnerability so adversaries have
// something to probe.
func New(cfg config.SimulationConfig, client oracle.Client, scenario persona.Scenario, logger *zap.Logger) *Environment {
	env := &Environment{
		logger:   logger.Named("environment"),
		cfg:      cfg,
		oracle:   client,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		members:  make(map[string]Member),
		stopChan: make(chan struct{}),
		state: State{
			ScenarioTitle: scenario.Title,
			SecurityLevel: 0.7,
			Timestamp:     time.Now().UTC(),
			Vulnerabilities: []Vulnerability{{
				ID:           uuid.NewString(),
				Component:    "identity-provider",
				Description:  "password reset flow accepts stale tokens",
				Severity:     0.6,
				DiscoveredAt: time.Now().UTC(),
			}},
		},
	}
	env.analyzer = NewBehaviorAnalyzer(client, logger)
	return env
}

// RegisterAgent adds a member. Safe to call at any time; an agent registered
// while the environment is running is started immediately by the caller.
func (e *Environment) RegisterAgent(m Member) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.members[m.ID()]; exists {
		return fmt.Errorf("agent %s is already registered", m.ID())
	}
	e.members[m.ID()] = m
	e.logger.Info("Agent registered",
		zap.String("agent_id", m.ID()),
		zap.String("category", string(m.Persona().Category)))
	return nil
}

// UnregisterAgent removes a member. The agent itself is not stopped.
func (e *Environment) UnregisterAgent(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.members, id)
}

// Start launches the environment's own update loop and every registered
// agent's loop.
func (e *Environment) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	members := make([]Member, 0, len(e.members))
	for _, m := range e.members {
		members = append(members, m)
	}
	e.mu.Unlock()

	for i, m := range members {
		if i > 0 && !e.cfg.EnableConcurrentExecution {
			// Ramped start: one agent enters the world per pause instead of
			// a simultaneous burst.
			time.Sleep(e.cfg.EnvironmentUpdateInterval / 4)
		}
		m.Start(ctx)
	}

	e.wg.Add(1)
	go e.runUpdateLoop(ctx)
	e.logger.Info("Environment started", zap.Int("agents", len(members)))
}

// Stop cooperatively halts all agents and then the update loop, blocking
// until the loop exits.
func (e *Environment) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	members := make([]Member, 0, len(e.members))
	for _, m := range e.members {
		members = append(members, m)
	}
	e.mu.Unlock()

	for _, m := range members {
		m.Stop()
	}
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
	e.logger.Info("Environment stopped")
}

// runUpdateLoop drives the world forward on a fixed tick.
func (e *Environment) runUpdateLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.EnvironmentUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.safeTick(ctx)
		}
	}
}

// safeTick runs one tick; any failure is logged and the loop continues.
func (e *Environment) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Environment tick panicked", zap.Any("panic", r))
		}
	}()

	e.updateSecurityLevel()

	if e.cfg.ThreatGenerationEnabled {
		e.maybeSynthesizeThreat(ctx)
	}
	e.generateNoise()

	if e.cfg.EnableEmergentBehaviors {
		e.detectEmergentBehavior(ctx)
	}
	e.pruneHistory()

	e.mu.Lock()
	e.state.Timestamp = time.Now().UTC()
	e.mu.Unlock()
}

// updateSecurityLevel decays the security level under active pressure and
// lets it recover slowly otherwise. Clamped to [0,1] after every adjustment.
func (e *Environment) updateSecurityLevel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	threats := e.state.ActiveThreats()
	incidents := e.state.OpenIncidents()

	if threats > 0 || incidents > 0 {
		e.state.SecurityLevel -= 0.02*float64(threats) + 0.03*float64(incidents)
	} else {
		e.state.SecurityLevel += 0.01
	}
	e.state.SecurityLevel = clamp01(e.state.SecurityLevel)
}

// maybeSynthesizeThreat probabilistically asks the oracle to invent a new
// threat, keeping the world hostile even without adversary action. Oracle
// failure skips the tick's synthesis; it is never retried.
func (e *Environment) maybeSynthesizeThreat(ctx context.Context) {
	e.mu.Lock()
	roll := e.rng.Float64()
	activeThreats := e.state.ActiveThreats()
	securityLevel := e.state.SecurityLevel
	e.mu.Unlock()

	if roll > threatSynthesisChance {
		return
	}

	req := oracle.GenerationRequest{
		Site:         oracle.SiteThreatSynthesis,
		SystemPrompt: "You generate plausible synthetic security threats for a simulated environment. Respond ONLY with a JSON object: {\"threat_type\", \"severity\", \"vector\", \"description\"}.",
		UserPrompt: fmt.Sprintf(
			"Current security level: %.2f. Active threats: %d. Invent one new distinct threat appropriate to this posture.",
			securityLevel, activeThreats),
		Options: oracle.GenerationOptions{ForceJSONFormat: true, Temperature: 0.8},
	}

	response, err := e.oracle.Generate(ctx, req)
	if err != nil {
		e.logger.Warn("Threat synthesis oracle call failed, skipping", zap.Error(err))
		return
	}
	var synth oracle.SynthesizedThreat
	if err := oracle.DecodeJSON(response, &synth); err != nil || synth.ThreatType == "" {
		e.logger.Warn("Threat synthesis response unusable, skipping", zap.Error(err))
		return
	}

	threat := Threat{
		ID:          uuid.NewString(),
		Type:        synth.ThreatType,
		Vector:      synth.Vector,
		Description: synth.Description,
		Severity:    clamp01(synth.Severity),
		CreatedAt:   time.Now().UTC(),
	}

	e.mu.Lock()
	e.state.Threats = append(e.state.Threats, threat)
	e.appendEventLocked(Event{
		Type:        EventThreatEmerged,
		Actor:       "environment",
		Description: fmt.Sprintf("%s threat emerged via %s: %s", threat.Type, threat.Vector, threat.Description),
		Severity:    threat.Severity,
		Relevance:   0.9,
	})
	e.mu.Unlock()

	e.logger.Info("Synthesized new threat",
		zap.String("threat_type", threat.Type), zap.Float64("severity", threat.Severity))
}

// generateNoise adds background user activity and network traffic so the
// world stays dynamic between agent actions.
func (e *Environment) generateNoise() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	if e.rng.Float64() < 0.5 {
		activities := []string{
			"logged in from a recognized device",
			"downloaded the quarterly report",
			"changed an account password",
			"shared a document externally",
			"installed a browser extension",
		}
		e.state.Activities = append(e.state.Activities, Activity{
			ID:          uuid.NewString(),
			ActorID:     fmt.Sprintf("user-%d", e.rng.Intn(40)),
			Description: activities[e.rng.Intn(len(activities))],
			Timestamp:   now,
		})
		e.appendEventLocked(Event{
			Type:        EventUserActivity,
			Actor:       "environment",
			Description: "background user activity",
			Relevance:   0.2,
		})
	}
	if e.rng.Float64() < 0.5 {
		kinds := []string{"dns_burst", "tls_handshake_spike", "port_scan_noise", "cdn_fetch"}
		e.state.NetworkEvents = append(e.state.NetworkEvents, NetworkEvent{
			ID:        uuid.NewString(),
			Kind:      kinds[e.rng.Intn(len(kinds))],
			Detail:    "synthetic background traffic",
			Timestamp: now,
		})
		e.appendEventLocked(Event{
			Type:        EventNetworkTraffic,
			Actor:       "environment",
			Description: "background network traffic",
			Relevance:   0.2,
		})
	}
}

// detectEmergentBehavior runs the analyzer over the recent message window.
func (e *Environment) detectEmergentBehavior(ctx context.Context) {
	e.mu.RLock()
	window := make([]messaging.Message, 0, 20)
	start := len(e.messages) - 20
	if start < 0 {
		start = 0
	}
	window = append(window, e.messages[start:]...)
	agents := make([]AgentInfo, 0, len(e.members))
	for _, m := range e.members {
		p := m.Persona()
		agents = append(agents, AgentInfo{ID: m.ID(), Name: p.Name, Category: p.Category, Subtype: p.Subtype})
	}
	e.mu.RUnlock()

	behavior, detected := e.analyzer.Scan(ctx, window, agents)
	if !detected {
		return
	}

	e.mu.Lock()
	e.behaviors = append(e.behaviors, behavior)
	e.appendEventLocked(Event{
		Type:        EventBehaviorDetected,
		Actor:       "environment",
		Description: fmt.Sprintf("emergent behavior: %s (%s)", behavior.Type, behavior.Description),
		Severity:    behavior.Strength,
		Relevance:   0.8,
	})
	e.mu.Unlock()

	e.logger.Info("Emergent behavior detected",
		zap.String("behavior_type", behavior.Type),
		zap.Float64("strength", behavior.Strength))
}

// pruneHistory drops records older than the retention window.
func (e *Environment) pruneHistory() {
	cutoff := time.Now().UTC().Add(-RetentionWindow)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.events = pruneByTime(e.events, func(ev Event) time.Time { return ev.Timestamp }, cutoff)
	e.messages = pruneByTime(e.messages, func(m messaging.Message) time.Time { return m.Timestamp }, cutoff)
	e.state.Activities = pruneByTime(e.state.Activities, func(a Activity) time.Time { return a.Timestamp }, cutoff)
	e.state.NetworkEvents = pruneByTime(e.state.NetworkEvents, func(n NetworkEvent) time.Time { return n.Timestamp }, cutoff)
}

func pruneByTime[T any](items []T, stamp func(T) time.Time, cutoff time.Time) []T {
	kept := items[:0]
	for _, it := range items {
		if stamp(it).After(cutoff) {
			kept = append(kept, it)
		}
	}
	return kept
}

// --- Read API ---

// StateSnapshot returns a deep copy of the current world state.
func (e *Environment) StateSnapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.clone()
}

// VisibleAgents lists every registered agent except the observer.
func (e *Environment) VisibleAgents(selfID string) []AgentInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]AgentInfo, 0, len(e.members))
	for id, m := range e.members {
		if id == selfID {
			continue
		}
		p := m.Persona()
		out = append(out, AgentInfo{ID: id, Name: p.Name, Category: p.Category, Subtype: p.Subtype})
	}
	return out
}

// RecentEvents returns the events visible to an agent: everything of high
// relevance, everything the agent authored, and all threat events.
func (e *Environment) RecentEvents(selfID string) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Event, 0, len(e.events))
	for _, ev := range e.events {
		if ev.Relevance >= HighRelevance || ev.Actor == selfID || ev.IsThreatEvent() {
			out = append(out, ev)
		}
	}
	return out
}

// MessageLog returns a copy of the retained message history.
func (e *Environment) MessageLog() []messaging.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]messaging.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Behaviors returns a copy of any detected emergent behaviors.
func (e *Environment) Behaviors() []EmergentBehavior {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]EmergentBehavior, len(e.behaviors))
	copy(out, e.behaviors)
	return out
}

// EventHistory returns a copy of the retained event history.
func (e *Environment) EventHistory() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// --- Transport ---

// SendMessage delivers the message to each named recipient's mailbox and
// records it in history. A message with no registered recipients is rejected
// without touching the log.
func (e *Environment) SendMessage(msg messaging.Message) error {
	if !e.cfg.MessagePassingEnabled {
		return nil
	}

	e.mu.Lock()
	targets := make([]Member, 0, len(msg.Recipients))
	for _, id := range msg.Recipients {
		if m, ok := e.members[id]; ok {
			targets = append(targets, m)
		}
	}
	if len(targets) == 0 {
		e.mu.Unlock()
		return fmt.Errorf("message %s has no registered recipients", msg.ID)
	}
	e.messages = append(e.messages, msg)
	e.mu.Unlock()

	for _, m := range targets {
		m.Deliver(msg)
	}
	return nil
}

// Broadcast records the message in history and delivers it to every
// registered agent except the sender.
func (e *Environment) Broadcast(msg messaging.Message) {
	if !e.cfg.MessagePassingEnabled {
		return
	}
	msg.Broadcast = true

	e.mu.Lock()
	e.messages = append(e.messages, msg)
	targets := make([]Member, 0, len(e.members))
	for id, m := range e.members {
		if id == msg.Sender {
			continue
		}
		targets = append(targets, m)
	}
	e.mu.Unlock()

	for _, m := range targets {
		m.Deliver(msg)
	}
}

// --- Action API (agents mutate the world through these) ---

// RecordAction logs an agent-authored event into the history.
func (e *Environment) RecordAction(actorID, description string, relevance float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appendEventLocked(Event{
		Type:        EventAgentAction,
		Actor:       actorID,
		Description: description,
		Relevance:   clamp01(relevance),
	})
}

// ImplementSecurityMeasure opens an incident, marks a matching active threat
// mitigated, and nudges the security level upward.
func (e *Environment) ImplementSecurityMeasure(actorID, threatType, description string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	incident := Incident{
		ID:          uuid.NewString(),
		Description: description,
		OpenedBy:    actorID,
		OpenedAt:    now,
	}

	for i := range e.state.Threats {
		t := &e.state.Threats[i]
		if !t.Mitigated && (threatType == "" || t.Type == threatType) {
			t.Mitigated = true
			incident.ThreatID = t.ID
			e.appendEventLocked(Event{
				Type:        EventThreatMitigated,
				Actor:       actorID,
				Description: fmt.Sprintf("%s threat mitigated: %s", t.Type, description),
				Severity:    t.Severity,
				Relevance:   0.9,
			})
			break
		}
	}

	e.state.Incidents = append(e.state.Incidents, incident)
	e.appendEventLocked(Event{
		Type:        EventIncidentOpened,
		Actor:       actorID,
		Description: description,
		Relevance:   0.8,
	})

	e.state.SecurityLevel = clamp01(e.state.SecurityLevel + 0.05)
}

// ExploitVulnerability marks a vulnerability exploited and drops the security
// level. Returns false when no unexploited vulnerability remains.
func (e *Environment) ExploitVulnerability(actorID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.state.Vulnerabilities {
		v := &e.state.Vulnerabilities[i]
		if v.Exploited {
			continue
		}
		v.Exploited = true
		e.state.SecurityLevel = clamp01(e.state.SecurityLevel - 0.1*v.Severity)
		e.appendEventLocked(Event{
			Type:        EventAgentAction,
			Actor:       actorID,
			Description: fmt.Sprintf("vulnerability exploited: %s", v.Component),
			Severity:    v.Severity,
			Relevance:   0.6,
		})
		return true
	}
	return false
}

// RaiseAlert publishes a high-relevance alert into the world.
func (e *Environment) RaiseAlert(actorID, message string, severity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Alerts = append(e.state.Alerts, Alert{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: clamp01(severity),
		RaisedAt: time.Now().UTC(),
	})
	e.appendEventLocked(Event{
		Type:        EventAlertRaised,
		Actor:       actorID,
		Description: message,
		Severity:    clamp01(severity),
		Relevance:   0.8,
	})
}

// QuiescentAgents reports whether every registered agent is idle or suspended.
func (e *Environment) QuiescentAgents() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.members) == 0 {
		return true
	}
	for _, m := range e.members {
		if !m.Quiescent() {
			return false
		}
	}
	return true
}

// appendEventLocked stamps and stores an event. Callers must hold e.mu.
func (e *Environment) appendEventLocked(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	e.events = append(e.events, ev)
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
