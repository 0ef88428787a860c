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

// Snapshot is the single read primitive shared by the polling fallback and
// anything else that needs "status plus messages since a cursor". It reads
// the store directly, never a cache, so a client alternating between push
// and poll observes every committed write exactly once as new.
type Snapshot struct {
	Handoff  *model.Handoff         `json:"handoff"`
	Messages []model.HandoffMessage `json:"messages"`
}

// SendMessage persists one conversation turn on an active handoff and
// forwards it to the handoff channel. The store assigns the per-handoff
// sequence number under a row lock, so the order read back is a single
// serialization of all concurrent senders regardless of arrival order.
func (s *HandoffService) SendMessage(ctx context.Context, handoffID string, senderKind model.SenderKind, senderID, content string) (*model.HandoffMessage, error) {
	log := logger.FromContext(ctx)

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if handoffID == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "handoff ID is required")
	}
	if !senderKind.Valid() {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "unknown sender kind '%s'", senderKind)
	}
	if senderKind.RequiresSenderID() && senderID == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "sender ID is required for %s messages", senderKind)
	}
	if content == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "message content is empty")
	}

	message := &model.HandoffMessage{
		MessageID:  uuid.NewString(),
		HandoffID:  handoffID,
		TenantID:   tenantID,
		SenderKind: senderKind,
		SenderID:   senderID,
		Content:    content,
	}

	if err := s.messageRepo.AppendIfActive(ctx, message); err != nil {
		return nil, err
	}
	observer.IncMessagesRelayed(tenantID, string(senderKind))

	event := newEvent(model.EventHandoffMessage, tenantID, handoffID)
	event.Message = message
	if err := s.notifier.NotifyHandoff(ctx, event); err != nil {
		// At-least-once holds through the polling fallback: the message is
		// committed with its sequence number even when this publish fails.
		log.Warn("Failed to publish handoff.message",
			zap.String("handoff_id", handoffID),
			zap.String("message_id", message.MessageID),
			zap.Error(err))
	}
	return message, nil
}

// GetSnapshot returns the handoff's current status and its messages with
// sequence numbers greater than sinceSeq, in ascending order. Pass zero to
// read from the beginning.
func (s *HandoffService) GetSnapshot(ctx context.Context, handoffID string, sinceSeq int64, limit int) (*Snapshot, error) {
	if _, err := tenant.FromContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if handoffID == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "handoff ID is required")
	}
	if sinceSeq < 0 {
		sinceSeq = 0
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	handoff, err := s.handoffRepo.FindByHandoffID(ctx, handoffID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListSince(ctx, handoffID, sinceSeq, limit)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Handoff: handoff, Messages: messages}, nil
}
