// File: internal/sim/environment/events.go
package environment

import (
	"time"
)

// Threat is a synthetic hostile condition in the world. Nothing here maps to
// real exploitation; severity only feeds the security-level model.
type Threat struct {
	ID          string
	Type        string
	Vector      string
	Description string
	Severity    float64
	Mitigated   bool
	CreatedAt   time.Time
}

// Vulnerability is a synthetic weakness adversaries may target.
type Vulnerability struct {
	ID           string
	Component    string
	Description  string
	Severity     float64
	Exploited    bool
	DiscoveredAt time.Time
}

// Incident is an open security case, usually created by a countermeasure.
type Incident struct {
	ID          string
	ThreatID    string
	Description string
	OpenedBy    string
	Resolved    bool
	OpenedAt    time.Time
}

// Alert is a notification raised into the shared world.
type Alert struct {
	ID       string
	Message  string
	Severity float64
	RaisedAt time.Time
}

// Activity is background user behavior noise.
type Activity struct {
	ID          string
	ActorID     string
	Description string
	Timestamp   time.Time
}

// NetworkEvent is background traffic noise.
type NetworkEvent struct {
	ID        string
	Kind      string
	Detail    string
	Timestamp time.Time
}

// EventType classifies entries in the environment's event history.
type EventType string

const (
	EventThreatEmerged    EventType = "threat_emerged"
	EventThreatMitigated  EventType = "threat_mitigated"
	EventIncidentOpened   EventType = "incident_opened"
	EventAlertRaised      EventType = "alert_raised"
	EventAgentAction      EventType = "agent_action"
	EventUserActivity     EventType = "user_activity"
	EventNetworkTraffic   EventType = "network_traffic"
	EventBehaviorDetected EventType = "behavior_detected"
)

// Event is one entry in the environment's history. Relevance drives
// visibility filtering; events with Relevance >= HighRelevance are visible to
// every agent, as are threat events regardless of relevance.
type Event struct {
	ID          string
	Type        EventType
	Actor       string
	Description string
	Severity    float64
	Relevance   float64
	Timestamp   time.Time
}

// HighRelevance is the visibility threshold for events not authored by the
// observer.
const HighRelevance = 0.7

// IsThreatEvent reports whether the event is always visible.
func (e Event) IsThreatEvent() bool {
	return e.Type == EventThreatEmerged || e.Type == EventThreatMitigated
}

// EmergentBehavior records a multi-agent pattern flagged by the analyzer.
type EmergentBehavior struct {
	ID           string
	Type         string
	Description  string
	Participants []string
	Strength     float64
	Impact       string
	DetectedAt   time.Time
}

// State is the shared world state. The environment owns the single live
// instance; everyone else sees deep copies.
type State struct {
	ScenarioTitle   string
	SecurityLevel   float64 // [0,1], clamped after every adjustment
	Threats         []Threat
	Vulnerabilities []Vulnerability
	Activities      []Activity
	NetworkEvents   []NetworkEvent
	Incidents       []Incident
	Alerts          []Alert
	Timestamp       time.Time
}

// clone produces a deep copy so callers never observe in-place mutation.
func (s State) clone() State {
	out := s
	out.Threats = append([]Threat(nil), s.Threats...)
	out.Vulnerabilities = append([]Vulnerability(nil), s.Vulnerabilities...)
	out.Activities = append([]Activity(nil), s.Activities...)
	out.NetworkEvents = append([]NetworkEvent(nil), s.NetworkEvents...)
	out.Incidents = append([]Incident(nil), s.Incidents...)
	out.Alerts = append([]Alert(nil), s.Alerts...)
	return out
}

// ActiveThreats counts unmitigated threats.
func (s State) ActiveThreats() int {
	n := 0
	for _, t := range s.Threats {
		if !t.Mitigated {
			n++
		}
	}
	return n
}

// OpenIncidents counts unresolved incidents.
func (s State) OpenIncidents() int {
	n := 0
	for _, in := range s.Incidents {
		if !in.Resolved {
			n++
		}
	}
	return n
}
