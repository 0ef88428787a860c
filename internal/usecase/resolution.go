package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/observer"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
)

const terminalMessageContent = "This conversation has ended."

// Resolve closes a pending or active handoff. Idempotent: an agent action
// and a cleanup sweep may both call it; only the first caller transitions
// the record, decrements the assigned agent's load and appends the terminal
// system message, later callers get the existing resolved record back with
// no side effects.
func (s *HandoffService) Resolve(ctx context.Context, handoffID, resolvedBy string) (*model.Handoff, error) {
	log := logger.FromContext(ctx)

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if handoffID == "" || resolvedBy == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "handoff ID and resolver are required")
	}

	handoff, transitioned, err := s.handoffRepo.ResolveIfOpen(ctx, handoffID, resolvedBy)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return handoff, nil
	}
	observer.IncHandoffsResolved(tenantID)

	// Only the resolution winner reaches this point, so the terminal
	// message is appended at most once.
	terminal := &model.HandoffMessage{
		MessageID:  uuid.NewString(),
		HandoffID:  handoffID,
		TenantID:   tenantID,
		SenderKind: model.SenderSystem,
		Content:    terminalMessageContent,
	}
	if err := s.messageRepo.AppendTerminal(ctx, terminal); err != nil {
		log.Warn("Failed to append terminal message",
			zap.String("handoff_id", handoffID), zap.Error(err))
		terminal = nil
	}

	event := newEvent(model.EventHandoffResolved, tenantID, handoff.HandoffID)
	event.Handoff = handoff
	event.Message = terminal
	if err := s.notifier.NotifyHandoff(ctx, event); err != nil {
		log.Warn("Failed to publish handoff.resolved",
			zap.String("handoff_id", handoff.HandoffID), zap.Error(err))
	}
	return handoff, nil
}
