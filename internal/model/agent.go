package model

import (
	"time"
)

// AgentAvailability represents whether an agent may receive new assignments.
// The session layer drives it via sign-in/heartbeat and sign-out/timeout;
// the directory only stores the state.
type AgentAvailability string

const (
	// AgentAvailable agents may receive new assignments while under capacity.
	AgentAvailable AgentAvailability = "available"
	// AgentBusy agents never receive new assignments regardless of load.
	AgentBusy AgentAvailability = "busy"
	// AgentOffline agents never receive new assignments regardless of load.
	AgentOffline AgentAvailability = "offline"
)

// Valid reports whether the availability is one of the known states.
func (a AgentAvailability) Valid() bool {
	switch a {
	case AgentAvailable, AgentBusy, AgentOffline:
		return true
	}
	return false
}

// Agent represents a human agent in the directory. ActiveLoad is mutated
// only through the repository's atomic bounded increment/decrement, never
// by direct overwrite, so active_load <= capacity holds at every
// observable point.
type Agent struct {
	// ID is the internal database primary key.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// AgentID is the identifier for the agent, unique within a tenant.
	// Different tenants may register the same agent_id without touching
	// each other's rows.
	AgentID string `json:"agent_id" gorm:"column:agent_id;uniqueIndex:idx_agents_tenant_agent,priority:2" validate:"required"`
	// TenantID identifies the tenant this agent belongs to.
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;uniqueIndex:idx_agents_tenant_agent,priority:1" validate:"required"`
	// Name is a display label for dashboards.
	Name         string            `json:"name,omitempty" gorm:"column:name"`
	Availability AgentAvailability `json:"availability" gorm:"column:availability" validate:"required,oneof=available busy offline"`
	// ActiveLoad counts currently assigned handoffs. Increments only on
	// successful assignment, decrements only on resolution of a handoff
	// previously assigned to this agent.
	ActiveLoad int32 `json:"active_load" gorm:"column:active_load"`
	// Capacity is the configured maximum of concurrent handoffs.
	Capacity  int32     `json:"capacity" gorm:"column:capacity" validate:"required,gt=0"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Agent) TableName() string {
	return "agents"
}

// AgentUpdateColumns returns the column names that may be updated during an
// upsert. Excludes primary key, agent_id, tenant_id, active_load and
// created_at: load changes only through the atomic counter operations.
func AgentUpdateColumns() []string {
	return []string{
		"name",
		"availability",
		"capacity",
		"updated_at",
	}
}
