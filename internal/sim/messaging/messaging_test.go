// File: internal/sim/messaging/messaging_test.go
package messaging

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_TypeDerivedFromPayload verifies the envelope type always matches
// the payload kind; callers cannot mislabel a message.
func TestNew_TypeDerivedFromPayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  Payload
		expected Type
	}{
		{"inform", InformPayload{Topic: "t"}, TypeInform},
		{"request", RequestPayload{Action: "a"}, TypeRequest},
		{"propose", ProposePayload{Proposal: "p"}, TypePropose},
		{"accept", VerdictPayload{Accepted: true}, TypeAccept},
		{"reject", VerdictPayload{Accepted: false}, TypeReject},
		{"query", QueryPayload{Question: "q"}, TypeQuery},
		{"threat", ThreatPayload{ThreatType: "phishing"}, TypeThreat},
		{"warning", WarningPayload{Subject: "s"}, TypeWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := New("alice", []string{"bob"}, tt.payload)
			assert.Equal(t, tt.expected, msg.Type)
			assert.NotEmpty(t, msg.ID)
			assert.Equal(t, "alice", msg.Sender)
			assert.Equal(t, PriorityNormal, msg.Priority)
		})
	}
}

func TestNewBroadcast(t *testing.T) {
	msg := NewBroadcast("alice", WarningPayload{Subject: "phishing", Severity: 0.8})

	assert.True(t, msg.Broadcast)
	assert.Empty(t, msg.Recipients)
	assert.Equal(t, TypeWarning, msg.Type)
}

func TestMessage_EncodePayload(t *testing.T) {
	msg := New("alice", []string{"bob"}, ThreatPayload{ThreatType: "phishing", Severity: 0.7, Details: "lure"})
	assert.JSONEq(t, `{"threat_type":"phishing","severity":0.7,"details":"lure"}`, msg.EncodePayload())

	empty := Message{}
	assert.Equal(t, "{}", empty.EncodePayload())
}

func TestMailbox_DrainFIFO(t *testing.T) {
	mb := NewMailbox(0)
	for i := 0; i < 5; i++ {
		mb.Deliver(New(fmt.Sprintf("sender-%d", i), []string{"bob"}, InformPayload{Topic: fmt.Sprintf("t%d", i)}))
	}

	require.Equal(t, 5, mb.Len())
	drained := mb.Drain()
	require.Len(t, drained, 5)
	for i, msg := range drained {
		assert.Equal(t, fmt.Sprintf("sender-%d", i), msg.Sender)
	}

	assert.Nil(t, mb.Drain(), "second drain finds an empty queue")
	assert.Equal(t, 0, mb.Len())
}

func TestMailbox_DropOldestOnOverflow(t *testing.T) {
	mb := NewMailbox(3)
	for i := 0; i < 5; i++ {
		mb.Deliver(New(fmt.Sprintf("sender-%d", i), nil, InformPayload{}))
	}

	assert.Equal(t, 2, mb.Dropped())
	drained := mb.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, "sender-2", drained[0].Sender, "oldest messages are dropped first")
	assert.Equal(t, "sender-4", drained[2].Sender)
}

// TestMailbox_ConcurrentProducers exercises the multi-producer contract: all
// deliveries land, and per-sender order is preserved.
func TestMailbox_ConcurrentProducers(t *testing.T) {
	const senders = 8
	const perSender = 50

	mb := NewMailbox(senders * perSender)
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				msg := New(fmt.Sprintf("sender-%d", s), nil, InformPayload{Topic: fmt.Sprintf("%d", i)})
				mb.Deliver(msg)
			}
		}(s)
	}
	wg.Wait()

	drained := mb.Drain()
	require.Len(t, drained, senders*perSender)
	assert.Zero(t, mb.Dropped())

	// Per-sender FIFO: sequence numbers from one sender must appear in order.
	lastSeq := make(map[string]int)
	for _, msg := range drained {
		var seq int
		_, err := fmt.Sscanf(msg.Payload.(InformPayload).Topic, "%d", &seq)
		require.NoError(t, err)
		if prev, ok := lastSeq[msg.Sender]; ok {
			assert.Greater(t, seq, prev, "per-sender delivery order must be preserved")
		}
		lastSeq[msg.Sender] = seq
	}
}
