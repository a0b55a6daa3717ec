// File: internal/sim/messaging/mailbox.go
package messaging

import (
	"sync"
)

// DefaultMailboxCapacity bounds an inbox so one stalled agent cannot grow
// without limit. Overflow drops the oldest pending message.
const DefaultMailboxCapacity = 256

// Mailbox is a multi-producer, single-consumer inbound queue. Any goroutine
// may Deliver; only the owning agent's loop should Drain. Per-sender delivery
// order is preserved; interleaving across senders is unspecified.
type Mailbox struct {
	mu       sync.Mutex
	queue    []Message
	capacity int
	dropped  int
}

// NewMailbox creates a mailbox with the given capacity (or the default when
// capacity <= 0).
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultMailboxCapacity
	}
	return &Mailbox{capacity: capacity}
}

// Deliver appends a message. Safe to call concurrently from any sender.
func (mb *Mailbox) Deliver(msg Message) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if len(mb.queue) >= mb.capacity {
		// Drop the oldest pending message to make room.
		copy(mb.queue, mb.queue[1:])
		mb.queue = mb.queue[:len(mb.queue)-1]
		mb.dropped++
	}
	mb.queue = append(mb.queue, msg)
}

// Drain removes and returns all pending messages in FIFO order.
func (mb *Mailbox) Drain() []Message {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if len(mb.queue) == 0 {
		return nil
	}
	out := mb.queue
	mb.queue = nil
	return out
}

// Len reports how many messages are pending.
func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queue)
}

// Dropped reports how many messages were discarded to overflow.
func (mb *Mailbox) Dropped() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.dropped
}
