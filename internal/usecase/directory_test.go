package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
)

func TestRegisterAgent_UpsertsAndReturnsRecord(t *testing.T) {
	f := newServiceFixture(t)
	ctx := tenantContext()

	stored := &model.Agent{
		AgentID:      "agent_1",
		TenantID:     testTenant,
		Name:         "Alex",
		Availability: model.AgentAvailable,
		Capacity:     3,
	}
	f.agentRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(a model.Agent) bool {
		return a.AgentID == "agent_1" && a.TenantID == testTenant && a.Capacity == 3 && a.ActiveLoad == 0
	})).Return(nil).Once()
	f.agentRepo.On("FindByAgentID", mock.Anything, "agent_1").Return(stored, nil).Once()

	agent, err := f.service.RegisterAgent(ctx, RegisterAgentInput{
		AgentID:      "agent_1",
		Name:         "Alex",
		Availability: model.AgentAvailable,
		Capacity:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, "agent_1", agent.AgentID)
	f.assertExpectations(t)
}

func TestRegisterAgent_RejectsNonPositiveCapacity(t *testing.T) {
	f := newServiceFixture(t)
	ctx := tenantContext()

	_, err := f.service.RegisterAgent(ctx, RegisterAgentInput{
		AgentID:      "agent_1",
		Availability: model.AgentAvailable,
		Capacity:     0,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	f.agentRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestSetAvailability_UpdatesState(t *testing.T) {
	f := newServiceFixture(t)
	ctx := tenantContext()

	updated := &model.Agent{AgentID: "agent_1", TenantID: testTenant, Availability: model.AgentOffline}
	f.agentRepo.On("SetAvailability", mock.Anything, "agent_1", model.AgentOffline).Return(nil).Once()
	f.agentRepo.On("FindByAgentID", mock.Anything, "agent_1").Return(updated, nil).Once()

	agent, err := f.service.SetAvailability(ctx, "agent_1", model.AgentOffline)
	require.NoError(t, err)
	assert.Equal(t, model.AgentOffline, agent.Availability)
	f.assertExpectations(t)
}

func TestSetAvailability_RejectsUnknownState(t *testing.T) {
	f := newServiceFixture(t)
	ctx := tenantContext()

	_, err := f.service.SetAvailability(ctx, "agent_1", "away")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	f.agentRepo.AssertNotCalled(t, "SetAvailability", mock.Anything, mock.Anything, mock.Anything)
}
