package storage

import (
	"context"
	"time"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
)

// HandoffRepo defines handoff storage operations. All state transitions are
// conditional writes: an UPDATE guarded by the expected prior status, with
// the row count checked. There is no unconditional status write.
type HandoffRepo interface {
	Create(ctx context.Context, handoff *model.Handoff) error
	FindByHandoffID(ctx context.Context, handoffID string) (*model.Handoff, error)
	ListPending(ctx context.Context, limit int) ([]model.Handoff, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Handoff, error)

	// ListStaleTenants returns the distinct tenants holding pending handoffs
	// older than the cutoff. It is the only tenant-unscoped read; the expiry
	// sweeper uses it to drive per-tenant sweeps.
	ListStaleTenants(ctx context.Context, olderThan time.Time) ([]string, error)

	// AssignIfPending atomically claims a pending handoff for an agent: the
	// agent's bounded load increment and the pending->active compare-and-swap
	// run in one transaction, rolled back together if either side fails.
	// Returns ErrAlreadyAssigned, ErrHandoffNotActive, ErrCapacityExceeded,
	// ErrAgentUnavailable or ErrNotFound on the expected failure paths.
	AssignIfPending(ctx context.Context, handoffID, agentID string) (*model.Handoff, error)

	// ResolveIfOpen transitions a pending or active handoff to resolved and
	// releases the assigned agent's capacity, once. When the handoff is
	// already terminal it returns the existing record with transitioned
	// false and no error.
	ResolveIfOpen(ctx context.Context, handoffID, resolvedBy string) (handoff *model.Handoff, transitioned bool, err error)

	// ExpireIfPending transitions pending->expired. Already-transitioned
	// handoffs are returned unchanged with transitioned false.
	ExpireIfPending(ctx context.Context, handoffID string) (handoff *model.Handoff, transitioned bool, err error)

	Close(ctx context.Context) error
}

// MessageRepo defines message storage operations. Sequence numbers are
// assigned under a row lock on the owning handoff, so reads in Seq order
// reflect a single serialization of all concurrent senders.
type MessageRepo interface {
	// AppendIfActive assigns the next per-handoff sequence number and
	// persists the message, provided the handoff is active. Returns
	// ErrHandoffNotActive otherwise.
	AppendIfActive(ctx context.Context, message *model.HandoffMessage) error

	// AppendTerminal persists the system message that marks resolution. It
	// requires the handoff to be resolved already; only the resolution
	// winner calls it, so the terminal message is written at most once.
	AppendTerminal(ctx context.Context, message *model.HandoffMessage) error

	// ListSince returns messages for a handoff with Seq greater than
	// sinceSeq, in ascending Seq order.
	ListSince(ctx context.Context, handoffID string, sinceSeq int64, limit int) ([]model.HandoffMessage, error)

	Close(ctx context.Context) error
}

// AgentRepo defines agent directory operations. ActiveLoad is only ever
// changed through the atomic increment/decrement below.
type AgentRepo interface {
	Upsert(ctx context.Context, agent model.Agent) error
	FindByAgentID(ctx context.Context, agentID string) (*model.Agent, error)
	SetAvailability(ctx context.Context, agentID string, state model.AgentAvailability) error

	// AnyAvailableCapacity reports whether at least one agent of the tenant
	// is available with active_load below capacity.
	AnyAvailableCapacity(ctx context.Context) (bool, error)

	// IncrementLoad is the atomic bounded increment: it succeeds only when
	// the agent is available and under capacity, as a single conditional
	// UPDATE, never a read-modify-write pair.
	IncrementLoad(ctx context.Context, agentID string) (bool, error)

	// DecrementLoad atomically decrements active_load with a floor of zero.
	DecrementLoad(ctx context.Context, agentID string) error

	Close(ctx context.Context) error
}
