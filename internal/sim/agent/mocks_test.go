// File: internal/sim/agent/mocks_test.go
package agent

import (
	"context"
	"sync"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/environment"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/goals"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// stubCognition lets each test pin exactly the cognition behavior it needs;
// unset hooks fall back to harmless defaults.
type stubCognition struct {
	goalTemplates []goals.Goal
	perceiveFn    func(ctx context.Context, a *Agent) Perception
	menuFn        func(p Perception) []ActionSpec
	executeFn     func(ctx context.Context, a *Agent, action ActionSpec, p Perception) (string, error)
	handleFn      func(ctx context.Context, a *Agent, msg messaging.Message)

	executions int
	handled    []messaging.Message
}

func (s *stubCognition) GoalTemplates(p persona.Persona) []goals.Goal {
	if s.goalTemplates != nil {
		return s.goalTemplates
	}
	return []goals.Goal{{Type: goals.TypePrimary, Description: "observe", Priority: 5}}
}

func (s *stubCognition) Perceive(ctx context.Context, a *Agent) Perception {
	if s.perceiveFn != nil {
		return s.perceiveFn(ctx, a)
	}
	return Perception{State: a.Environment().StateSnapshot()}
}

func (s *stubCognition) Reprioritize(a *Agent, p Perception) {}

func (s *stubCognition) ActionMenu(p Perception) []ActionSpec {
	if s.menuFn != nil {
		return s.menuFn(p)
	}
	return []ActionSpec{{Name: "observe", Category: "analysis", Description: "watch quietly", Goal: "observe", Progress: 0.1}}
}

func (s *stubCognition) Execute(ctx context.Context, a *Agent, action ActionSpec, p Perception) (string, error) {
	s.executions++
	if s.executeFn != nil {
		return s.executeFn(ctx, a, action, p)
	}
	return "observed", nil
}

func (s *stubCognition) HandleMessage(ctx context.Context, a *Agent, msg messaging.Message) {
	s.handled = append(s.handled, msg)
	if s.handleFn != nil {
		s.handleFn(ctx, a, msg)
	}
}

var _ Cognition = (*stubCognition)(nil)

// fakeMember stands in for a peer agent on the environment's transport. It
// records deliveries instead of running a loop.
type fakeMember struct {
	id      string
	persona persona.Persona

	mu       sync.Mutex
	messages []messaging.Message
}

func newFakeMember(id string) *fakeMember {
	return &fakeMember{
		id: id,
		persona: persona.Persona{
			ID:       id,
			Name:     id,
			Category: persona.CategoryUser,
			Skills:   persona.SkillVector{TechnicalExpertise: 2, PrivacyConcern: 3, RiskTolerance: 3, SecurityAwareness: 2},
		},
	}
}

func (m *fakeMember) ID() string                { return m.id }
func (m *fakeMember) Persona() persona.Persona  { return m.persona }
func (m *fakeMember) Start(ctx context.Context) {}
func (m *fakeMember) Stop()                     {}
func (m *fakeMember) Quiescent() bool           { return true }

func (m *fakeMember) Deliver(msg messaging.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *fakeMember) inbox() []messaging.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]messaging.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *fakeMember) inboxLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

var _ environment.Member = (*fakeMember)(nil)
