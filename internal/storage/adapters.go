package storage

import (
	"context"
	"time"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
)

// Adapters narrow the combined PostgresRepo to the per-entity interfaces the
// use cases depend on, so services can be wired and mocked independently.

// HandoffRepoAdapter adapts PostgresRepo to the HandoffRepo interface.
type HandoffRepoAdapter struct {
	repo *PostgresRepo
}

// NewHandoffRepoAdapter creates a new adapter for handoff operations.
func NewHandoffRepoAdapter(repo *PostgresRepo) *HandoffRepoAdapter {
	return &HandoffRepoAdapter{repo: repo}
}

var _ HandoffRepo = (*HandoffRepoAdapter)(nil)

func (a *HandoffRepoAdapter) Create(ctx context.Context, handoff *model.Handoff) error {
	return a.repo.CreateHandoff(ctx, handoff)
}

func (a *HandoffRepoAdapter) FindByHandoffID(ctx context.Context, handoffID string) (*model.Handoff, error) {
	return a.repo.FindHandoffByHandoffID(ctx, handoffID)
}

func (a *HandoffRepoAdapter) ListPending(ctx context.Context, limit int) ([]model.Handoff, error) {
	return a.repo.ListPendingHandoffs(ctx, limit)
}

func (a *HandoffRepoAdapter) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Handoff, error) {
	return a.repo.ListStalePendingHandoffs(ctx, olderThan, limit)
}

func (a *HandoffRepoAdapter) ListStaleTenants(ctx context.Context, olderThan time.Time) ([]string, error) {
	return a.repo.ListStaleTenants(ctx, olderThan)
}

func (a *HandoffRepoAdapter) AssignIfPending(ctx context.Context, handoffID, agentID string) (*model.Handoff, error) {
	return a.repo.AssignHandoffIfPending(ctx, handoffID, agentID)
}

func (a *HandoffRepoAdapter) ResolveIfOpen(ctx context.Context, handoffID, resolvedBy string) (*model.Handoff, bool, error) {
	return a.repo.ResolveHandoffIfOpen(ctx, handoffID, resolvedBy)
}

func (a *HandoffRepoAdapter) ExpireIfPending(ctx context.Context, handoffID string) (*model.Handoff, bool, error) {
	return a.repo.ExpireHandoffIfPending(ctx, handoffID)
}

func (a *HandoffRepoAdapter) Close(ctx context.Context) error {
	return a.repo.Close(ctx)
}

// MessageRepoAdapter adapts PostgresRepo to the MessageRepo interface.
type MessageRepoAdapter struct {
	repo *PostgresRepo
}

// NewMessageRepoAdapter creates a new adapter for message operations.
func NewMessageRepoAdapter(repo *PostgresRepo) *MessageRepoAdapter {
	return &MessageRepoAdapter{repo: repo}
}

var _ MessageRepo = (*MessageRepoAdapter)(nil)

func (a *MessageRepoAdapter) AppendIfActive(ctx context.Context, message *model.HandoffMessage) error {
	return a.repo.AppendMessageIfActive(ctx, message)
}

func (a *MessageRepoAdapter) AppendTerminal(ctx context.Context, message *model.HandoffMessage) error {
	return a.repo.AppendTerminalMessage(ctx, message)
}

func (a *MessageRepoAdapter) ListSince(ctx context.Context, handoffID string, sinceSeq int64, limit int) ([]model.HandoffMessage, error) {
	return a.repo.ListMessagesSince(ctx, handoffID, sinceSeq, limit)
}

func (a *MessageRepoAdapter) Close(ctx context.Context) error {
	return a.repo.Close(ctx)
}

// AgentRepoAdapter adapts PostgresRepo to the AgentRepo interface.
type AgentRepoAdapter struct {
	repo *PostgresRepo
}

// NewAgentRepoAdapter creates a new adapter for agent directory operations.
func NewAgentRepoAdapter(repo *PostgresRepo) *AgentRepoAdapter {
	return &AgentRepoAdapter{repo: repo}
}

var _ AgentRepo = (*AgentRepoAdapter)(nil)

func (a *AgentRepoAdapter) Upsert(ctx context.Context, agent model.Agent) error {
	return a.repo.UpsertAgent(ctx, agent)
}

func (a *AgentRepoAdapter) FindByAgentID(ctx context.Context, agentID string) (*model.Agent, error) {
	return a.repo.FindAgentByAgentID(ctx, agentID)
}

func (a *AgentRepoAdapter) SetAvailability(ctx context.Context, agentID string, state model.AgentAvailability) error {
	return a.repo.SetAgentAvailability(ctx, agentID, state)
}

func (a *AgentRepoAdapter) AnyAvailableCapacity(ctx context.Context) (bool, error) {
	return a.repo.AnyAvailableCapacity(ctx)
}

func (a *AgentRepoAdapter) IncrementLoad(ctx context.Context, agentID string) (bool, error) {
	return a.repo.IncrementAgentLoad(ctx, agentID)
}

func (a *AgentRepoAdapter) DecrementLoad(ctx context.Context, agentID string) error {
	return a.repo.DecrementAgentLoad(ctx, agentID)
}

func (a *AgentRepoAdapter) Close(ctx context.Context) error {
	return a.repo.Close(ctx)
}
