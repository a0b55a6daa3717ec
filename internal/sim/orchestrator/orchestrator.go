// File: internal/sim/orchestrator/orchestrator.go
//
// Package orchestrator turns a persona list, a scenario and a config record
// into a bounded, observable simulation run.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/config"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/oracle"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/agent"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/environment"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// eventBuffer sizes the simulation-event channel; emission is non-blocking,
// so the buffer only has to absorb bursts between consumer wakeups.
const eventBuffer = 1024

// TerminationCause names why a run ended.
type TerminationCause string

const (
	CauseMaxDuration TerminationCause = "max duration reached"
	CauseMaxCycles   TerminationCause = "max cycles reached"
	CauseQuiescence  TerminationCause = "all agents quiescent"
	CauseCancelled   TerminationCause = "context cancelled"
)

// Output is one agent decision in the ordered simulation output list.
type Output struct {
	AgentID     string    `json:"agent_id"`
	PersonaName string    `json:"persona_name"`
	Category    string    `json:"category"`
	Cycle       int       `json:"cycle"`
	Action      string    `json:"action"`
	Reasoning   string    `json:"reasoning"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// Result is the outcome of one simulation run. A failed run still carries
// whatever partial state was collected before the failure.
type Result struct {
	Success           bool                           `json:"success"`
	TerminationCause  TerminationCause               `json:"termination_cause,omitempty"`
	Outputs           []Output                       `json:"outputs"`
	Interactions      []messaging.Message            `json:"interactions"`
	EmergentBehaviors []environment.EmergentBehavior `json:"emergent_behaviors"`
	EnvironmentEvents []environment.Event            `json:"environment_events"`
	Metrics           Metrics                        `json:"metrics"`
	ErrorCode         ErrorCode                      `json:"error_code,omitempty"`
	Error             string                         `json:"error,omitempty"`
}

// SimulationManager owns one run: it builds the environment and agents,
// drives the lifecycle, watches for termination and assembles the result.
type SimulationManager struct {
	logger *zap.Logger
	cfg    config.SimulationConfig
	oracle oracle.Client

	env    *environment.Environment
	agents []*agent.Agent
	events chan agent.Event

	// tallies accumulated from the event stream.
	totalCycles     int
	errorCount      int
	outputs         []Output
	goalCompletions map[string]int
	steps           []actionStep
}

// NewSimulationManager wires a manager for one run of the given scenario.
func NewSimulationManager(cfg config.SimulationConfig, client oracle.Client, scenario persona.Scenario, logger *zap.Logger) *SimulationManager {
	l := logger.Named("orchestrator")
	return &SimulationManager{
		logger:          l,
		cfg:             cfg,
		oracle:          client,
		env:             environment.New(cfg, client, scenario, logger),
		events:          make(chan agent.Event, eventBuffer),
		goalCompletions: make(map[string]int),
	}
}

// CreateAgents instantiates and registers one agent per persona. An unknown
// category is fatal: the caller gets an error, not a partially-built run.
func (m *SimulationManager) CreateAgents(personas []persona.Persona) error {
	for _, p := range personas {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("persona %s: %w", p.ID, err)
		}

		var cog agent.Cognition
		switch p.Category {
		case persona.CategoryDefender, persona.CategoryUser:
			cog = agent.NewDefenderCognition(m.logger)
		case persona.CategoryAdversary:
			cog = agent.NewAdversaryCognition(m.logger)
		default:
			return fmt.Errorf("persona %s: no agent variant for category %q", p.ID, p.Category)
		}

		a := agent.New(p, cog, m.env, m.oracle, m.cfg, m.events, m.logger)
		if err := m.env.RegisterAgent(a); err != nil {
			return fmt.Errorf("registering agent %s: %w", p.ID, err)
		}
		m.agents = append(m.agents, a)
	}
	m.logger.Info("Agents created", zap.Int("count", len(m.agents)))
	return nil
}

// Run executes the simulation to completion and always returns a structured
// result; errors surface inside the result, never as a panic past this
// boundary.
func (m *SimulationManager) Run(ctx context.Context) Result {
	if len(m.agents) == 0 {
		return m.failureResult(ErrCodeNoAgents, fmt.Errorf("no agents created"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var securitySeries []float64
	var cause TerminationCause

	g, gctx := errgroup.WithContext(runCtx)

	// Event consumer. Runs until the channel closes after teardown.
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for ev := range m.events {
			m.consume(ev)
		}
	}()

	start := time.Now()
	m.env.Start(runCtx)
	m.logger.Info("Simulation started",
		zap.Int("agents", len(m.agents)),
		zap.Duration("max_duration", m.cfg.SimulationDuration),
		zap.Int("max_cycles", m.cfg.MaxAgentCycles))

	g.Go(func() error {
		ticker := time.NewTicker(m.cfg.TerminationPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				cause = CauseCancelled
				return gctx.Err()
			case <-ticker.C:
				securitySeries = append(securitySeries, m.env.StateSnapshot().SecurityLevel)

				if c, done := m.checkTermination(start); done {
					cause = c
					return nil
				}
			}
		}
	})

	err := g.Wait()

	m.env.Stop()
	close(m.events)
	<-consumerDone

	if err != nil && cause != CauseCancelled {
		return m.failureResult(ErrCodeRunFailure, err)
	}
	m.logger.Info("Simulation finished",
		zap.String("cause", string(cause)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("total_cycles", m.totalCycles))

	return m.assembleResult(ctx, cause, securitySeries, time.Since(start))
}

// checkTermination evaluates the three stop conditions in a fixed order and
// logs the first one that holds.
func (m *SimulationManager) checkTermination(start time.Time) (TerminationCause, bool) {
	if elapsed := time.Since(start); m.cfg.SimulationDuration > 0 && elapsed >= m.cfg.SimulationDuration {
		m.logger.Info("Termination condition met", zap.String("cause", string(CauseMaxDuration)), zap.Duration("elapsed", elapsed))
		return CauseMaxDuration, true
	}

	total := 0
	for _, a := range m.agents {
		total += a.Cycle()
	}
	if m.cfg.MaxAgentCycles > 0 && total >= m.cfg.MaxAgentCycles {
		m.logger.Info("Termination condition met", zap.String("cause", string(CauseMaxCycles)), zap.Int("total_cycles", total))
		return CauseMaxCycles, true
	}

	if m.env.QuiescentAgents() {
		m.logger.Info("Termination condition met", zap.String("cause", string(CauseQuiescence)))
		return CauseQuiescence, true
	}
	return "", false
}

// consume folds one simulation event into the run tallies.
func (m *SimulationManager) consume(ev agent.Event) {
	switch ev.Type {
	case agent.EventCycleCompleted:
		m.totalCycles++
	case agent.EventActionTaken:
		m.outputs = append(m.outputs, Output{
			AgentID:     ev.AgentID,
			PersonaName: ev.PersonaName,
			Category:    string(ev.Category),
			Cycle:       ev.Cycle,
			Action:      ev.Action,
			Reasoning:   ev.Reasoning,
			Confidence:  ev.Confidence,
			Timestamp:   ev.Timestamp,
		})
		m.steps = append(m.steps, actionStep{Cycle: ev.Cycle, AgentID: ev.AgentID, Category: ev.ActionCategory})
	case agent.EventGoalCompleted:
		m.goalCompletions[ev.Goal]++
	case agent.EventAgentError:
		m.errorCount++
	}
}

// assembleResult gathers the interaction log, behavior list and event history
// from the environment and derives the evaluation metrics.
func (m *SimulationManager) assembleResult(ctx context.Context, cause TerminationCause, securitySeries []float64, elapsed time.Duration) Result {
	interactions := m.env.MessageLog()
	events := m.env.EventHistory()
	behaviors := m.env.Behaviors()

	threatMsgs, highSeverity := 0, 0
	for _, msg := range interactions {
		if msg.Type == messaging.TypeThreat {
			threatMsgs++
			if tp, ok := msg.Payload.(messaging.ThreatPayload); ok && tp.Severity >= 0.7 {
				highSeverity++
			}
		}
	}
	threatsGenerated, incidents := 0, 0
	for _, ev := range events {
		switch ev.Type {
		case environment.EventThreatEmerged:
			threatsGenerated++
		case environment.EventIncidentOpened:
			incidents++
		}
	}

	activityRate := 0.0
	if seconds := elapsed.Seconds(); seconds > 0 {
		activityRate = float64(len(m.outputs)) / seconds
	}

	metrics := Metrics{
		TotalCycles:         m.totalCycles,
		TotalInteractions:   len(interactions),
		BehaviorsDetected:   len(behaviors),
		ThreatsGenerated:    threatsGenerated,
		IncidentsOpened:     incidents,
		AverageActivityRate: activityRate,
		SecurityLevelSeries: securitySeries,
		GoalCompletions:     m.goalCompletions,
		BehavioralDiversity: behavioralDiversity(m.steps),
		VulnerabilityScore:  vulnerabilityScore(threatMsgs, highSeverity, len(interactions)),
		PersonaFidelity:     m.assessFidelities(ctx),
	}

	sort.SliceStable(m.outputs, func(i, j int) bool {
		return m.outputs[i].Timestamp.Before(m.outputs[j].Timestamp)
	})

	return Result{
		Success:           true,
		TerminationCause:  cause,
		Outputs:           m.outputs,
		Interactions:      interactions,
		EmergentBehaviors: behaviors,
		EnvironmentEvents: events,
		Metrics:           metrics,
	}
}

// assessFidelities scores every agent's persona fidelity from its decision
// history.
func (m *SimulationManager) assessFidelities(ctx context.Context) map[string]float64 {
	out := make(map[string]float64, len(m.agents))
	for _, a := range m.agents {
		var summaries []decisionSummary
		for _, d := range a.Decisions() {
			summaries = append(summaries, decisionSummary{
				Cycle:      d.Cycle,
				Action:     d.Chosen,
				Reasoning:  d.Rationale,
				Confidence: d.Confidence,
			})
		}
		out[a.ID()] = assessFidelity(ctx, m.oracle, a.Persona(), summaries)
	}
	return out
}

// failureResult packages an error with whatever state was collected so far.
func (m *SimulationManager) failureResult(code ErrorCode, err error) Result {
	m.logger.Error("Simulation failed", zap.String("error_code", string(code)), zap.Error(err))
	return Result{
		Success:           false,
		Outputs:           m.outputs,
		Interactions:      m.env.MessageLog(),
		EmergentBehaviors: m.env.Behaviors(),
		EnvironmentEvents: m.env.EventHistory(),
		Metrics: Metrics{
			TotalCycles:     m.totalCycles,
			GoalCompletions: m.goalCompletions,
		},
		ErrorCode: code,
		Error:     err.Error(),
	}
}
