package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/validator"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
)

// RegisterAgentInput describes an agent directory upsert. Capacity must be
// positive; active load is never writable through registration.
type RegisterAgentInput struct {
	AgentID      string                  `json:"agent_id" validate:"required"`
	Name         string                  `json:"name"`
	Availability model.AgentAvailability `json:"availability" validate:"required,oneof=available busy offline"`
	Capacity     int32                   `json:"capacity" validate:"required,gt=0"`
}

// RegisterAgent creates or updates an agent directory entry. Re-registering
// an existing agent updates name, availability and capacity but never
// touches active load, which only the pickup and resolve paths mutate.
func (s *HandoffService) RegisterAgent(ctx context.Context, input RegisterAgentInput) (*model.Agent, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "invalid agent registration: %v", err)
	}

	agent := model.Agent{
		AgentID:      input.AgentID,
		TenantID:     tenantID,
		Name:         input.Name,
		Availability: input.Availability,
		Capacity:     input.Capacity,
	}
	if err := s.agentRepo.Upsert(ctx, agent); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Agent registered",
		zap.String("agent_id", input.AgentID),
		zap.String("availability", string(input.Availability)),
		zap.Int32("capacity", input.Capacity),
	)
	return s.agentRepo.FindByAgentID(ctx, input.AgentID)
}

// SetAvailability updates an agent's availability. The session layer drives
// it on sign-in, heartbeat and sign-out; the directory only stores the
// state and never owns the timeout policy.
func (s *HandoffService) SetAvailability(ctx context.Context, agentID string, state model.AgentAvailability) (*model.Agent, error) {
	if _, err := tenant.FromContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if agentID == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "agent ID is required")
	}
	if !state.Valid() {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "unknown availability '%s'", state)
	}

	if err := s.agentRepo.SetAvailability(ctx, agentID, state); err != nil {
		return nil, err
	}
	return s.agentRepo.FindByAgentID(ctx, agentID)
}

// GetAgent fetches one agent directory entry.
func (s *HandoffService) GetAgent(ctx context.Context, agentID string) (*model.Agent, error) {
	if _, err := tenant.FromContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if agentID == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "agent ID is required")
	}
	return s.agentRepo.FindByAgentID(ctx, agentID)
}
