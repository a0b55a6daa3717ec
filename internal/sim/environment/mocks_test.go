// File: internal/sim/environment/mocks_test.go
package environment

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/persona"
	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/sim/messaging"
)

// fakeMember is a minimal Member for transport and lifecycle tests. It
// records deliveries instead of running a loop.
type fakeMember struct {
	id      string
	persona persona.Persona

	started   atomic.Bool
	stopped   atomic.Bool
	quiescent atomic.Bool

	mu    sync.Mutex
	inbox []messaging.Message
}

func newFakeMember(id string) *fakeMember {
	m := &fakeMember{
		id: id,
		persona: persona.Persona{
			ID:       id,
			Name:     id,
			Category: persona.CategoryDefender,
			Skills:   persona.SkillVector{TechnicalExpertise: 3, PrivacyConcern: 3, RiskTolerance: 3, SecurityAwareness: 3},
		},
	}
	m.quiescent.Store(true)
	return m
}

func (m *fakeMember) ID() string               { return m.id }
func (m *fakeMember) Persona() persona.Persona { return m.persona }
func (m *fakeMember) Start(ctx context.Context) {
	m.started.Store(true)
}
func (m *fakeMember) Stop() {
	m.stopped.Store(true)
}
func (m *fakeMember) Deliver(msg messaging.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = append(m.inbox, msg)
}
func (m *fakeMember) Quiescent() bool { return m.quiescent.Load() }

func (m *fakeMember) inboxLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inbox)
}

var _ Member = (*fakeMember)(nil)
