package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/observer"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/validator"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
)

// RequestHandoffInput carries everything intake needs. Snapshot may be
// empty (a conversation with no prior automated turns). The contact fields
// feed the after-hours path and are ignored while agents have capacity.
type RequestHandoffInput struct {
	ConversationRef     string `json:"conversation_ref"`
	Reason              string `json:"reason"`
	Snapshot            []byte `json:"snapshot"`
	ContactEmail        string `json:"contact_email" validate:"omitempty,email"`
	LastCustomerMessage string `json:"last_customer_message"`
}

// RequestHandoff queues a conversation for human pickup. When no agent of
// the tenant has available capacity the request is not queued at all:
// intake delegates to the after-hours fallback and returns a record already
// in resolved status carrying the captured contact fields.
func (s *HandoffService) RequestHandoff(ctx context.Context, input RequestHandoffInput) (*model.Handoff, error) {
	log := logger.FromContext(ctx)

	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "invalid handoff request: %v", err)
	}

	hasCapacity, err := s.agentRepo.AnyAvailableCapacity(ctx)
	if err != nil {
		return nil, err
	}
	if !hasCapacity {
		log.Info("No available capacity, taking after-hours path",
			zap.String("conversation_ref", input.ConversationRef))
		return s.CaptureContact(ctx, input.ContactEmail, input.LastCustomerMessage, input.Reason)
	}

	now := time.Now().UTC()
	handoff := &model.Handoff{
		HandoffID:            uuid.NewString(),
		TenantID:             tenantID,
		ConversationRef:      input.ConversationRef,
		Reason:               input.Reason,
		Status:               model.HandoffStatusPending,
		ConversationSnapshot: datatypes.JSON(input.Snapshot),
		RequestedAt:          now,
	}

	if err := s.handoffRepo.Create(ctx, handoff); err != nil {
		return nil, err
	}
	observer.IncHandoffsCreated(tenantID)

	event := newEvent(model.EventHandoffCreated, tenantID, handoff.HandoffID)
	event.Handoff = handoff
	if err := s.notifier.NotifyTenant(ctx, event); err != nil {
		// The record is committed; dashboards catch up through the pending
		// list poll even if this publish is lost.
		log.Warn("Failed to publish handoff.created",
			zap.String("handoff_id", handoff.HandoffID), zap.Error(err))
	}

	log.Info("Handoff queued",
		zap.String("handoff_id", handoff.HandoffID),
		zap.String("conversation_ref", input.ConversationRef),
	)
	return handoff, nil
}

// CaptureContact records an after-hours contact request as a handoff
// created directly in resolved status, with no agent ever involved. It
// converts "no agent available" into a record a human follows up on later
// instead of a silently dropped customer.
func (s *HandoffService) CaptureContact(ctx context.Context, email, message, note string) (*model.Handoff, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if email == "" {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "contact email is required")
	}
	if err := validator.ValidateVar(email, "email"); err != nil {
		return nil, apperrors.NewFatal(apperrors.ErrValidation, "invalid contact email '%s'", email)
	}

	now := time.Now().UTC()
	handoff := &model.Handoff{
		HandoffID:           uuid.NewString(),
		TenantID:            tenantID,
		Status:              model.HandoffStatusResolved,
		LastCustomerMessage: message,
		ContactEmail:        email,
		ContactNote:         note,
		ResolvedBy:          "system",
		RequestedAt:         now,
		ResolvedAt:          &now,
	}

	if err := s.handoffRepo.Create(ctx, handoff); err != nil {
		return nil, err
	}
	observer.IncHandoffsFallback(tenantID)

	logger.FromContext(ctx).Info("Captured after-hours contact",
		zap.String("handoff_id", handoff.HandoffID))
	return handoff, nil
}

// ListPending returns the tenant's pending queue for dashboard refreshes,
// oldest first.
func (s *HandoffService) ListPending(ctx context.Context, limit int) ([]model.Handoff, error) {
	if _, err := tenant.FromContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidTenant, err)
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	return s.handoffRepo.ListPending(ctx, limit)
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)
