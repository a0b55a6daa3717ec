// File: internal/sim/messaging/message.go
//
// Package messaging defines the typed message envelopes agents exchange and
// the per-agent mailbox they are delivered into. Messages are immutable once
// sent; only the environment's transport touches delivery state.
package messaging

import (
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
)

// Type enumerates the message kinds agents exchange.
type Type string

const (
	TypeInform  Type = "inform"
	TypeRequest Type = "request"
	TypePropose Type = "propose"
	TypeAccept  Type = "accept"
	TypeReject  Type = "reject"
	TypeQuery   Type = "query"
	TypeThreat  Type = "threat"
	TypeWarning Type = "warning"
)

// Priority orders competing messages in a drained inbox batch.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// Payload is the closed set of message content shapes. Each message type
// carries exactly one payload kind; handlers switch on the concrete type.
type Payload interface {
	payloadKind() Type
}

// InformPayload shares a piece of information.
type InformPayload struct {
	Topic   string `json:"topic"`
	Details string `json:"details"`
}

// RequestPayload asks the recipient to do something.
type RequestPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// ProposePayload offers a joint course of action.
type ProposePayload struct {
	Proposal string `json:"proposal"`
	Benefit  string `json:"benefit"`
}

// VerdictPayload answers a proposal (accept or reject).
type VerdictPayload struct {
	ProposalID string `json:"proposal_id"`
	Reason     string `json:"reason"`
	Accepted   bool   `json:"accepted"`
}

// QueryPayload asks the recipient a question.
type QueryPayload struct {
	Question string `json:"question"`
}

// ThreatPayload signals hostile pressure toward the recipient.
type ThreatPayload struct {
	ThreatType string  `json:"threat_type"`
	Severity   float64 `json:"severity"`
	Details    string  `json:"details"`
}

// WarningPayload alerts the recipient to a danger observed elsewhere.
type WarningPayload struct {
	Subject  string  `json:"subject"`
	Severity float64 `json:"severity"`
	Details  string  `json:"details"`
}

func (InformPayload) payloadKind() Type  { return TypeInform }
func (RequestPayload) payloadKind() Type { return TypeRequest }
func (ProposePayload) payloadKind() Type { return TypePropose }
func (p VerdictPayload) payloadKind() Type {
	if p.Accepted {
		return TypeAccept
	}
	return TypeReject
}
func (QueryPayload) payloadKind() Type   { return TypeQuery }
func (ThreatPayload) payloadKind() Type  { return TypeThreat }
func (WarningPayload) payloadKind() Type { return TypeWarning }

// Message is the envelope for one communication. Recipients holds one ID for
// point-to-point delivery; Broadcast marks delivery to everyone but the sender.
type Message struct {
	ID               string
	Sender           string
	Recipients       []string
	Broadcast        bool
	Type             Type
	Payload          Payload
	Timestamp        time.Time
	Priority         Priority
	ResponseRequired bool
	ConversationID   string
}

// New builds a sealed message envelope from a payload, deriving the message
// type from the payload kind.
func New(sender string, recipients []string, payload Payload) Message {
	return Message{
		ID:         uuid.NewString(),
		Sender:     sender,
		Recipients: recipients,
		Type:       payload.payloadKind(),
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
		Priority:   PriorityNormal,
	}
}

// NewBroadcast builds a broadcast envelope. Recipients are resolved by the
// transport at delivery time.
func NewBroadcast(sender string, payload Payload) Message {
	m := New(sender, nil, payload)
	m.Broadcast = true
	return m
}

// EncodePayload renders the payload as JSON for logs and memory content.
func (m Message) EncodePayload() string {
	if m.Payload == nil {
		return "{}"
	}
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return "{}"
	}
	return string(data)
}
