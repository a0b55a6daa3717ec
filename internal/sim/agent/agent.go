// File: internal/sim/agent/agent.go
//
// Package agent implements the cognitive loop shared by every persona:
// perceive, deliberate, act, learn, communicate. Persona-specific behavior is
// delegated to a Cognition implementation; the generic Agent owns the loop,
// the memory store, the goal set, the mailbox and the decision history.
package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/config"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/environment"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/goals"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/memory"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// State is an agent's loop state. Transitions happen only inside the agent's
// own loop; Suspended is terminal and never left automatically.
type State string

const (
	StateIdle        State = "Idle"
	StateThinking    State = "Thinking"
	StateActing      State = "Acting"
	StateInteracting State = "Interacting"
	StateLearning    State = "Learning"
	StateSuspended   State = "Suspended"
)

const (
	// baseCycleDelay anchors the persona-dependent pause between cycles.
	baseCycleDelay = 1 * time.Second
	// errorBackoff follows any failed cycle before the next attempt.
	errorBackoff = 250 * time.Millisecond
	// intentionCount caps how many goals become current intentions.
	intentionCount = 3
)

// Agent wraps one persona with the shared cognitive machinery.
type Agent struct {
	id        string
	persona   persona.Persona
	logger    *zap.Logger
	cfg       config.SimulationConfig
	env       *environment.Environment
	oracle    oracle.Client
	cognition Cognition

	memory  *memory.Store
	goals   *goals.Set
	mailbox *messaging.Mailbox
	history *History

	// learnedID is the newest decision learn has processed. Loop-owned.
	learnedID string

	// events receives typed simulation events; nil disables emission.
	events chan<- Event

	mu         sync.RWMutex
	state      State
	perception Perception
	cycle      int

	active   atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds an agent for a persona using the matching cognition. The goal
// set is seeded from the cognition's persona-type templates.
func New(p persona.Persona, cog Cognition, env *environment.Environment, client oracle.Client, cfg config.SimulationConfig, events chan<- Event, logger *zap.Logger) *Agent {
	a := &Agent{
		id:        p.ID,
		persona:   p,
		logger:    logger.Named("agent").With(zap.String("agent_id", p.ID), zap.String("category", string(p.Category))),
		cfg:       cfg,
		env:       env,
		oracle:    client,
		cognition: cog,
		memory:    memory.NewStore(),
		goals:     goals.NewSet(cog.GoalTemplates(p)...),
		mailbox:   messaging.NewMailbox(0),
		history:   NewHistory(0),
		events:    events,
		state:     StateIdle,
		stopChan:  make(chan struct{}),
	}
	return a
}

// ID returns the agent's identifier (the persona ID).
func (a *Agent) ID() string { return a.id }

// Persona returns the immutable persona.
func (a *Agent) Persona() persona.Persona { return a.persona }

// Start transitions to Idle and launches the loop. Calling Start on a
// stopped agent is a no-op; Suspended is never left automatically.
func (a *Agent) Start(ctx context.Context) {
	if a.State() == StateSuspended {
		return
	}
	if !a.active.CompareAndSwap(false, true) {
		return
	}

	a.wg.Add(1)
	go a.run(ctx)
	a.emit(Event{Type: EventAgentStarted})
	a.logger.Info("Agent started")
}

// Stop requests a cooperative halt: the flag is observed at the top of the
// next loop iteration, so an in-flight cycle always finishes. The agent ends
// up Suspended whether or not the loop ever ran.
func (a *Agent) Stop() {
	a.active.Store(false)
	a.stopOnce.Do(func() { close(a.stopChan) })
	a.wg.Wait()
	a.setState(StateSuspended)
}

// Deliver appends a message to the inbox. Safe to call concurrently from any
// sender; the loop drains it during the communicate step.
func (a *Agent) Deliver(msg messaging.Message) {
	a.mailbox.Deliver(msg)
}

// Quiescent reports whether the agent's loop has come to rest. An active
// agent is never quiescent: the Idle pause between cycles is a scheduling
// gap, not a stop.
func (a *Agent) Quiescent() bool {
	if a.active.Load() {
		return false
	}
	s := a.State()
	return s == StateIdle || s == StateSuspended
}

// State returns the current loop state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Cycle returns the number of completed or in-flight cycles.
func (a *Agent) Cycle() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cycle
}

// Goals returns a copy of the goal set.
func (a *Agent) Goals() []goals.Goal { return a.goals.Snapshot() }

// Memory returns copies of both memory layers.
func (a *Agent) Memory() (shortTerm, longTerm []memory.Item) { return a.memory.Snapshot() }

// Decisions returns a copy of the decision history.
func (a *Agent) Decisions() []Decision { return a.history.Snapshot() }

// PerceptionSnapshot returns a copy of the latest perception.
func (a *Agent) PerceptionSnapshot() Perception {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p := a.perception
	p.VisibleAgents = append([]AgentView(nil), a.perception.VisibleAgents...)
	p.RecentEvents = append([]environment.Event(nil), a.perception.RecentEvents...)
	p.Threats = append([]PerceivedThreat(nil), a.perception.Threats...)
	p.Opportunities = append([]PerceivedOpportunity(nil), a.perception.Opportunities...)
	return p
}

// Environment exposes the shared environment to cognition implementations.
func (a *Agent) Environment() *environment.Environment { return a.env }

// Oracle exposes the reasoning oracle to cognition implementations.
func (a *Agent) Oracle() oracle.Client { return a.oracle }

// Remember records a memory item on the agent's own store.
func (a *Agent) Remember(it memory.Item) memory.Item { return a.memory.Add(it) }

// AdvanceGoal moves a goal forward by description, emitting a completion
// event the first time it reaches full progress.
func (a *Agent) AdvanceGoal(description string, delta float64) {
	g, ok := a.goals.Find(description)
	if !ok || g.Status != goals.StatusActive {
		return
	}
	updated, completed := a.goals.Advance(g.ID, delta)
	if completed {
		a.emit(Event{Type: EventGoalCompleted, Goal: updated.Description})
		a.logger.Info("Goal completed", zap.String("goal", updated.Description))
	}
}

// run is the agent's loop. The active flag is checked at the top of every
// iteration; Suspended is set exactly once, on the way out.
func (a *Agent) run(ctx context.Context) {
	defer a.wg.Done()
	defer a.setState(StateSuspended)

	for a.active.Load() && ctx.Err() == nil {
		if err := a.runCycle(ctx); err != nil {
			a.mu.RLock()
			cycle := a.cycle
			a.mu.RUnlock()

			a.logger.Warn("Cycle failed, backing off",
				zap.Int("cycle", cycle), zap.Error(err))
			a.emit(Event{Type: EventAgentError, Cycle: cycle, Err: err.Error()})

			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return
			case <-a.stopChan:
				return
			}
			continue
		}

		a.setState(StateIdle)

		select {
		case <-time.After(a.cycleDelay()):
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		}
	}
}

// runCycle executes one full perceive/deliberate/act/learn/communicate pass.
// Any panic inside a step is recovered here; a cycle failure is never fatal
// to the agent.
func (a *Agent) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()

	a.mu.Lock()
	a.cycle++
	cycle := a.cycle
	a.mu.Unlock()

	// 1. Perceive: the snapshot is replaced atomically, never merged.
	a.setState(StateThinking)
	p := a.cognition.Perceive(ctx, a)
	p.Timestamp = time.Now().UTC()
	a.mu.Lock()
	a.perception = p
	a.mu.Unlock()

	// 2. Deliberate.
	a.cognition.Reprioritize(a, p)
	intentions := a.goals.TopActive(intentionCount)
	dc := decisionContext{
		cycle:         cycle,
		intentions:    intentions,
		threats:       len(p.Threats),
		opportunities: len(p.Opportunities),
		securityLevel: p.State.SecurityLevel,
		lastOutcomes:  a.recentOutcomes(),
		memories:      a.recalledMemories(),
	}

	// 3. Act.
	a.setState(StateActing)
	if err := a.act(ctx, cycle, dc, p); err != nil {
		return err
	}

	// 4. Learn.
	if a.cfg.LearningEnabled {
		a.setState(StateLearning)
		a.learn()
	}

	// 5. Communicate.
	a.setState(StateInteracting)
	a.communicate(ctx)

	a.emit(Event{Type: EventCycleCompleted, Cycle: cycle})
	return nil
}

// act asks the oracle to choose from the cognition's menu, executes the
// handler, and appends a complete decision record. The record is built first
// and appended in one call, so a stop during the act step can never leave a
// half-written entry.
func (a *Agent) act(ctx context.Context, cycle int, dc decisionContext, p Perception) error {
	menu := a.cognition.ActionMenu(p)
	if len(menu) == 0 {
		return fmt.Errorf("cognition produced an empty action menu")
	}

	action, choice := chooseAction(ctx, a.oracle, a.persona, dc, menu)

	outcome, execErr := a.cognition.Execute(ctx, a, action, p)
	success := execErr == nil
	if execErr != nil {
		outcome = fmt.Sprintf("failed: %v", execErr)
	}

	options := make([]string, 0, len(menu))
	for _, item := range menu {
		options = append(options, item.Name)
	}
	a.history.Append(Decision{
		ID:              uuid.NewString(),
		Cycle:           cycle,
		Context:         dc.render(),
		Options:         options,
		Chosen:          action.Name,
		Rationale:       choice.Reasoning,
		Confidence:      choice.Confidence,
		ExpectedOutcome: action.Description,
		ActualOutcome:   outcome,
		Success:         success,
		Timestamp:       time.Now().UTC(),
	})

	if success && action.Goal != "" {
		a.AdvanceGoal(action.Goal, action.Progress)
	}

	a.emit(Event{
		Type:           EventActionTaken,
		Cycle:          cycle,
		Action:         action.Name,
		ActionCategory: action.Category,
		Reasoning:      choice.Reasoning,
		Confidence:     choice.Confidence,
	})
	return execErr
}

// learn writes a reinforcing or corrective memory for the newest decision,
// at most once per decision. Failures are remembered longer: corrective items
// decay slower.
func (a *Agent) learn() {
	recent := a.history.Recent(1)
	if len(recent) == 0 {
		return
	}
	d := recent[0]
	if d.ID == a.learnedID {
		return
	}
	a.learnedID = d.ID

	if d.Success {
		a.memory.Add(memory.Item{
			Kind:       memory.KindEpisodic,
			Content:    fmt.Sprintf("action %q worked: %s", d.Chosen, d.ActualOutcome),
			Importance: 0.5 + 0.2*d.Confidence,
			DecayRate:  0.02,
			Event:      d.Chosen,
		})
	} else {
		a.memory.Add(memory.Item{
			Kind:       memory.KindEpisodic,
			Content:    fmt.Sprintf("action %q failed: %s", d.Chosen, d.ActualOutcome),
			Importance: 0.75,
			DecayRate:  0.01,
			Event:      d.Chosen,
		})
	}
}

// communicate drains the inbox FIFO and dispatches each message: store it in
// memory, then hand it to the type-specific handler.
func (a *Agent) communicate(ctx context.Context) {
	for _, msg := range a.mailbox.Drain() {
		a.memory.Add(memory.Item{
			Kind:         memory.KindEpisodic,
			Content:      fmt.Sprintf("%s from %s: %s", msg.Type, msg.Sender, msg.EncodePayload()),
			Importance:   messageImportance(msg),
			DecayRate:    0.03,
			Event:        string(msg.Type),
			Participants: []string{msg.Sender},
		})
		a.cognition.HandleMessage(ctx, a, msg)
	}
}

// recalledMemories surfaces the most salient memories, ranked by decayed
// importance, for the deliberation context.
func (a *Agent) recalledMemories() []string {
	items := a.memory.Recall(3, time.Now().UTC())
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Content)
	}
	return out
}

// recentOutcomes summarizes the last few decisions for the deliberation
// context.
func (a *Agent) recentOutcomes() []string {
	recent := a.history.Recent(3)
	out := make([]string, 0, len(recent))
	for _, d := range recent {
		out = append(out, fmt.Sprintf("%s -> %s", d.Chosen, d.ActualOutcome))
	}
	return out
}

// cycleDelay scales inversely with technical expertise: sharper personas
// think faster.
func (a *Agent) cycleDelay() time.Duration {
	expertise := a.persona.Skills.TechnicalExpertise
	if expertise < 1 {
		expertise = 1
	}
	if expertise > 5 {
		expertise = 5
	}
	return time.Duration(float64(baseCycleDelay) * (6 - expertise) / 5)
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == s {
		return
	}
	a.state = s
}

// emit sends a simulation event without ever blocking the loop.
func (a *Agent) emit(ev Event) {
	if a.events == nil {
		return
	}
	ev.AgentID = a.id
	ev.PersonaName = a.persona.Name
	ev.Category = a.persona.Category
	ev.Timestamp = time.Now().UTC()

	select {
	case a.events <- ev:
	default:
		a.logger.Debug("Simulation event channel full, dropping event", zap.String("type", string(ev.Type)))
	}
}

func messageImportance(msg messaging.Message) float64 {
	switch msg.Type {
	case messaging.TypeThreat:
		return 0.85
	case messaging.TypeWarning:
		return 0.75
	case messaging.TypeRequest, messaging.TypePropose:
		return 0.6
	default:
		return 0.4
	}
}

var _ environment.Member = (*Agent)(nil)
