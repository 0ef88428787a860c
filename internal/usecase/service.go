package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/storage"
)

// EventNotifier is the slice of the notifier the services publish through.
// Satisfied by *notifier.Notifier; mocked in tests.
type EventNotifier interface {
	NotifyTenant(ctx context.Context, event model.Event) error
	NotifyHandoff(ctx context.Context, event model.Event) error
	NotifyBoth(ctx context.Context, event model.Event) error
}

// HandoffService bundles the orchestration operations: intake, pickup,
// message relay, resolution, expiry and the agent directory. The store is
// the single source of truth; every state transition happens there as a
// conditional write, and the service layer only sequences the calls and
// fans out events afterward.
type HandoffService struct {
	handoffRepo storage.HandoffRepo
	messageRepo storage.MessageRepo
	agentRepo   storage.AgentRepo
	notifier    EventNotifier
}

// NewHandoffService creates the service with its repositories and notifier.
func NewHandoffService(
	handoffRepo storage.HandoffRepo,
	messageRepo storage.MessageRepo,
	agentRepo storage.AgentRepo,
	notifier EventNotifier,
) *HandoffService {
	return &HandoffService{
		handoffRepo: handoffRepo,
		messageRepo: messageRepo,
		agentRepo:   agentRepo,
		notifier:    notifier,
	}
}

// newEvent builds a notifier event for a lifecycle transition. The event ID
// doubles as the broker dedupe key, so it is minted fresh per publish.
func newEvent(kind model.EventKind, tenantID, handoffID string) model.Event {
	return model.Event{
		EventID:    uuid.NewString(),
		Kind:       kind,
		TenantID:   tenantID,
		HandoffID:  handoffID,
		OccurredAt: time.Now().UTC(),
	}
}
