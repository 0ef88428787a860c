package model

import (
	"time"
)

// SenderKind is a closed tagged variant identifying who authored a handoff
// message. Handlers switch over it exhaustively; no free-form role strings.
type SenderKind string

const (
	SenderCustomer SenderKind = "customer"
	SenderAgent    SenderKind = "agent"
	SenderSystem   SenderKind = "system"
)

// Valid reports whether the sender kind is one of the known variants.
func (k SenderKind) Valid() bool {
	switch k {
	case SenderCustomer, SenderAgent, SenderSystem:
		return true
	}
	return false
}

// RequiresSenderID reports whether the variant requires a sender identity.
// Only agent messages carry one; customer identity is the handoff itself.
func (k SenderKind) RequiresSenderID() bool {
	return k == SenderAgent
}

// HandoffMessage is one turn of an active handoff conversation. Rows are
// append-only: never mutated or deleted once written.
type HandoffMessage struct {
	// ID is the internal database primary key.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// MessageID is the public unique identifier. Consumers deduplicate
	// repeated deliveries by this ID.
	MessageID string `json:"id" gorm:"column:message_id;uniqueIndex" validate:"required"`
	// HandoffID is the owning handoff. Ownership is exclusive; a message is
	// never shared across handoffs.
	HandoffID string `json:"handoff_id" gorm:"column:handoff_id;index" validate:"required"`
	// TenantID identifies the tenant, denormalized for tenant-scoped reads.
	TenantID   string     `json:"tenant_id" gorm:"column:tenant_id;index" validate:"required"`
	SenderKind SenderKind `json:"sender_kind" gorm:"column:sender_kind" validate:"required,oneof=customer agent system"`
	// SenderID is required when SenderKind is agent.
	SenderID string `json:"sender_id,omitempty" gorm:"column:sender_id"`
	Content  string `json:"content" gorm:"column:content"`
	// Seq is the server-assigned per-handoff sequence number. Messages read
	// back for a handoff are returned in Seq order regardless of the write
	// interleaving observed by concurrent senders.
	Seq int64 `json:"seq" gorm:"column:seq"`
	// SentAt is server-assigned at write time.
	SentAt    time.Time `json:"sent_at" gorm:"column:sent_at"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (HandoffMessage) TableName() string {
	return "handoff_messages"
}
