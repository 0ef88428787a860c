package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/observer"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
)

// Pickup outcome labels for the pickups_total counter.
const (
	pickupWon              = "won"
	pickupAlreadyAssigned  = "already_assigned"
	pickupCapacityExceeded = "capacity_exceeded"
	pickupUnavailable      = "unavailable"
	pickupNotActive        = "not_active"
	pickupNotFound         = "not_found"
	pickupError            = "error"
)

// PickUp claims a pending handoff for an agent. Exactly one of any number
// of concurrent callers wins; the store arbitrates with a single
// transaction combining the agent's bounded load increment and the
// pending->active compare-and-swap, so a loser never holds capacity.
// Losing the race surfaces as ErrAlreadyAssigned, a full agent as
// ErrCapacityExceeded, a busy or offline agent as ErrAgentUnavailable.
func (s *HandoffService) PickUp(ctx context.Context, handoffID, agentID string) (*model.Handoff, error) {
	log := logger.FromContext(ctx)

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if handoffID == "" || agentID == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "handoff ID and agent ID are required")
	}

	handoff, err := s.handoffRepo.AssignIfPending(ctx, handoffID, agentID)
	if err != nil {
		observer.IncPickup(tenantID, pickupOutcome(err))
		// Losing the race is expected under concurrency, not an error worth
		// alerting on.
		if apperrors.IsAlreadyAssignedError(err) {
			log.Debug("Pickup lost the assignment race",
				zap.String("handoff_id", handoffID), zap.String("agent_id", agentID))
		}
		return nil, err
	}
	observer.IncPickup(tenantID, pickupWon)

	event := newEvent(model.EventHandoffAssigned, tenantID, handoff.HandoffID)
	event.Handoff = handoff
	if err := s.notifier.NotifyBoth(ctx, event); err != nil {
		log.Warn("Failed to publish handoff.assigned",
			zap.String("handoff_id", handoff.HandoffID), zap.Error(err))
	}
	return handoff, nil
}

// Expire transitions a pending handoff to expired; the timeout policy that
// decides when "too long pending" applies lives with the caller (the HTTP
// API or the sweeper). Already-transitioned handoffs are a no-op returning
// the current record, so Expire may race a simultaneous PickUp safely.
func (s *HandoffService) Expire(ctx context.Context, handoffID string) (*model.Handoff, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if handoffID == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "handoff ID is required")
	}

	handoff, transitioned, err := s.handoffRepo.ExpireIfPending(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return handoff, nil
	}
	observer.IncHandoffsExpired(tenantID)

	event := newEvent(model.EventHandoffExpired, tenantID, handoff.HandoffID)
	event.Handoff = handoff
	if err := s.notifier.NotifyTenant(ctx, event); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish handoff.expired",
			zap.String("handoff_id", handoff.HandoffID), zap.Error(err))
	}
	return handoff, nil
}

func pickupOutcome(err error) string {
	switch {
	case apperrors.IsAlreadyAssignedError(err):
		return pickupAlreadyAssigned
	case apperrors.IsCapacityExceededError(err):
		return pickupCapacityExceeded
	case apperrors.IsAgentUnavailableError(err):
		return pickupUnavailable
	case apperrors.IsHandoffNotActiveError(err):
		return pickupNotActive
	case apperrors.IsNotFoundError(err):
		return pickupNotFound
	default:
		return pickupError
	}
}
