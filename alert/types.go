package alert

import "time"

// Rule identifiers. The (rule, subject) pair keys alert deduplication:
// at most one open alert exists per pair.
const (
	RuleReserveRatio  = "reserve_ratio"
	RuleSupplySwing   = "supply_swing"
	RuleFailureStreak = "failure_streak"
)

// Severity levels.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SubjectReserve is the subject for reserve-wide rules.
const SubjectReserve = "reserve"

// Alert is one firing of a rule.
type Alert struct {
	ID         string     `json:"id"`
	Rule       string     `json:"rule"`
	Subject    string     `json:"subject"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      *float64   `json:"value,omitempty"`
	Threshold  *float64   `json:"threshold,omitempty"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
}

// Open reports whether the alert is still firing.
func (a *Alert) Open() bool { return a.ResolvedAt == nil }

// EventKind distinguishes firings from recoveries.
type EventKind string

const (
	EventFired    EventKind = "fired"
	EventResolved EventKind = "resolved"
)

// Event is emitted to notifiers when an alert changes state.
type Event struct {
	Kind  EventKind `json:"kind"`
	Alert *Alert    `json:"alert"`
}

// Notifier receives alert state changes. The dashboard hub implements
// this to push alerts to connected clients.
type Notifier interface {
	NotifyAlert(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

func (f NotifierFunc) NotifyAlert(e Event) { f(e) }
