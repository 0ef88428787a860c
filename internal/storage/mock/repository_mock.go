package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
)

// --- HandoffRepo Mock ---

// HandoffRepoMock mocks the HandoffRepo interface
type HandoffRepoMock struct {
	mock.Mock
}

func (m *HandoffRepoMock) Create(ctx context.Context, handoff *model.Handoff) error {
	args := m.Called(ctx, handoff)
	return args.Error(0)
}

func (m *HandoffRepoMock) FindByHandoffID(ctx context.Context, handoffID string) (*model.Handoff, error) {
	args := m.Called(ctx, handoffID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Handoff), args.Error(1)
}

func (m *HandoffRepoMock) ListPending(ctx context.Context, limit int) ([]model.Handoff, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Handoff), args.Error(1)
}

func (m *HandoffRepoMock) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Handoff, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Handoff), args.Error(1)
}

func (m *HandoffRepoMock) ListStaleTenants(ctx context.Context, olderThan time.Time) ([]string, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *HandoffRepoMock) AssignIfPending(ctx context.Context, handoffID, agentID string) (*model.Handoff, error) {
	args := m.Called(ctx, handoffID, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Handoff), args.Error(1)
}

func (m *HandoffRepoMock) ResolveIfOpen(ctx context.Context, handoffID, resolvedBy string) (*model.Handoff, bool, error) {
	args := m.Called(ctx, handoffID, resolvedBy)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Handoff), args.Bool(1), args.Error(2)
}

func (m *HandoffRepoMock) ExpireIfPending(ctx context.Context, handoffID string) (*model.Handoff, bool, error) {
	args := m.Called(ctx, handoffID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Handoff), args.Bool(1), args.Error(2)
}

func (m *HandoffRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- MessageRepo Mock ---

// MessageRepoMock mocks the MessageRepo interface
type MessageRepoMock struct {
	mock.Mock
}

func (m *MessageRepoMock) AppendIfActive(ctx context.Context, message *model.HandoffMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepoMock) AppendTerminal(ctx context.Context, message *model.HandoffMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepoMock) ListSince(ctx context.Context, handoffID string, sinceSeq int64, limit int) ([]model.HandoffMessage, error) {
	args := m.Called(ctx, handoffID, sinceSeq, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HandoffMessage), args.Error(1)
}

func (m *MessageRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- AgentRepo Mock ---

// AgentRepoMock mocks the AgentRepo interface
type AgentRepoMock struct {
	mock.Mock
}

func (m *AgentRepoMock) Upsert(ctx context.Context, agent model.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

func (m *AgentRepoMock) FindByAgentID(ctx context.Context, agentID string) (*model.Agent, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

func (m *AgentRepoMock) SetAvailability(ctx context.Context, agentID string, state model.AgentAvailability) error {
	args := m.Called(ctx, agentID, state)
	return args.Error(0)
}

func (m *AgentRepoMock) AnyAvailableCapacity(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *AgentRepoMock) IncrementLoad(ctx context.Context, agentID string) (bool, error) {
	args := m.Called(ctx, agentID)
	return args.Bool(0), args.Error(1)
}

func (m *AgentRepoMock) DecrementLoad(ctx context.Context, agentID string) error {
	args := m.Called(ctx, agentID)
	return args.Error(0)
}

func (m *AgentRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
