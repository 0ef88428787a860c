package model

import (
	"time"
)

// EventKind represents the notifier event types fanned out to subscribers.
type EventKind string

const (
	// EventHandoffCreated is published tenant-wide when intake queues a new
	// pending handoff (agent dashboards).
	EventHandoffCreated EventKind = "handoff.created"
	// EventHandoffAssigned is published when a pickup wins, to the assigned
	// agent's channel and the handoff channel.
	EventHandoffAssigned EventKind = "handoff.assigned"
	// EventHandoffMessage is published to the handoff channel for every
	// relayed message.
	EventHandoffMessage EventKind = "handoff.message"
	// EventHandoffResolved is published to the handoff channel when a
	// handoff is closed.
	EventHandoffResolved EventKind = "handoff.resolved"
	// EventHandoffExpired is published tenant-wide when a pending handoff
	// times out, so dashboards drop it.
	EventHandoffExpired EventKind = "handoff.expired"
)

// Valid reports whether the event kind is one of the known types.
func (k EventKind) Valid() bool {
	switch k {
	case EventHandoffCreated, EventHandoffAssigned, EventHandoffMessage,
		EventHandoffResolved, EventHandoffExpired:
		return true
	}
	return false
}

// Event is the unit of notifier fan-out. Delivery is at-least-once:
// consumers treat repeated delivery of the same EventID as a no-op.
// Ordering is guaranteed per channel, not globally.
type Event struct {
	// EventID is unique per publish and doubles as the broker dedupe key.
	EventID  string    `json:"event_id"`
	Kind     EventKind `json:"kind"`
	TenantID string    `json:"tenant_id"`
	// HandoffID is set for every kind; tenant-wide events carry it so
	// dashboards can fetch the handoff without a second lookup.
	HandoffID  string    `json:"handoff_id"`
	OccurredAt time.Time `json:"occurred_at"`
	// Handoff carries the post-transition record for state-change events.
	Handoff *Handoff `json:"handoff,omitempty"`
	// Message carries the persisted message for handoff.message events. It
	// is the same record the polling snapshot returns, so push and poll
	// consumers observe identical data.
	Message *HandoffMessage `json:"message,omitempty"`
}
