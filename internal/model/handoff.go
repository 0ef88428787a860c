package model

import (
	"time"

	"gorm.io/datatypes"
)

// HandoffStatus represents the lifecycle state of a handoff request.
// Transitions are strictly monotonic: pending -> active -> resolved, or
// pending -> expired, or pending -> resolved (after-hours capture). No
// transition ever moves backward.
type HandoffStatus string

const (
	HandoffStatusPending  HandoffStatus = "pending"
	HandoffStatusActive   HandoffStatus = "active"
	HandoffStatusResolved HandoffStatus = "resolved"
	HandoffStatusExpired  HandoffStatus = "expired"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s HandoffStatus) Valid() bool {
	switch s {
	case HandoffStatusPending, HandoffStatusActive, HandoffStatusResolved, HandoffStatusExpired:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s HandoffStatus) Terminal() bool {
	return s == HandoffStatusResolved || s == HandoffStatusExpired
}

// CanTransitionTo reports whether moving from s to next respects the
// monotonic state machine. The store enforces this with conditional
// writes; this helper exists for validation and tests.
func (s HandoffStatus) CanTransitionTo(next HandoffStatus) bool {
	switch s {
	case HandoffStatusPending:
		return next == HandoffStatusActive || next == HandoffStatusResolved || next == HandoffStatusExpired
	case HandoffStatusActive:
		return next == HandoffStatusResolved
	default:
		return false
	}
}

// Handoff represents one customer conversation's transition from automated
// to human handling. It is the unit of work of the orchestration core.
type Handoff struct {
	// ID is the internal database primary key.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// HandoffID is the public unique identifier of the handoff.
	HandoffID string `json:"id" gorm:"column:handoff_id;uniqueIndex" validate:"required"`
	// TenantID identifies the tenant this handoff belongs to. All operations
	// are tenant-scoped; cross-tenant access is a hard invariant violation.
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;index" validate:"required"`
	// ConversationRef is an opaque reference to the originating automated
	// session. May be empty if the automated session already ended.
	ConversationRef string `json:"conversation_ref,omitempty" gorm:"column:conversation_ref"`
	// Reason is the free-form escalation reason supplied at intake.
	Reason string `json:"reason,omitempty" gorm:"column:reason"`
	// Status is the current lifecycle state.
	Status HandoffStatus `json:"status" gorm:"column:status;index"`
	// AssignedAgentID is empty until assignment succeeds, then set exactly
	// once. Never reassigned without first clearing via resolution.
	AssignedAgentID string `json:"assigned_agent_id,omitempty" gorm:"column:assigned_agent_id;index"`
	// ConversationSnapshot holds the prior automated-agent turns captured at
	// request time. Opaque to the core, immutable afterward.
	ConversationSnapshot datatypes.JSON `json:"conversation_snapshot,omitempty" gorm:"type:jsonb;column:conversation_snapshot"`
	// LastCustomerMessage, ContactEmail and ContactNote are populated only
	// on the after-hours path.
	LastCustomerMessage string `json:"last_customer_message,omitempty" gorm:"column:last_customer_message"`
	ContactEmail        string `json:"contact_email,omitempty" gorm:"column:contact_email"`
	ContactNote         string `json:"contact_note,omitempty" gorm:"column:contact_note"`
	// LastSeq is the per-handoff message sequence counter. Incremented under
	// a row lock so concurrent senders serialize; never written directly.
	LastSeq int64 `json:"-" gorm:"column:last_seq"`
	// ResolvedBy records who closed the handoff (agent ID or "system").
	ResolvedBy  string     `json:"resolved_by,omitempty" gorm:"column:resolved_by"`
	RequestedAt time.Time  `json:"requested_at" gorm:"column:requested_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty" gorm:"column:assigned_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
	CreatedAt   time.Time  `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Handoff) TableName() string {
	return "handoffs"
}
