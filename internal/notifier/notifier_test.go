package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	jsmock "gitlab.com/brivano/api/livedesk-handoff-service/internal/jetstream/mock"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/utils"
)

func testEvent(kind model.EventKind) model.Event {
	return model.Event{
		EventID:    uuid.NewString(),
		Kind:       kind,
		TenantID:   "tenant_alpha",
		HandoffID:  "ho_123",
		OccurredAt: time.Now().UTC(),
	}
}

func TestSubjectLayout(t *testing.T) {
	assert.Equal(t, "v1.handoff.tenant_alpha", TenantSubject("tenant_alpha"))
	assert.Equal(t, "v1.handoff.tenant_alpha.ho_123", HandoffSubject("tenant_alpha", "ho_123"))
}

func TestNotifyTenant_PublishesWithDedupeHeader(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)
	event := testEvent(model.EventHandoffCreated)

	client.On("Publish", "v1.handoff.tenant_alpha", mock.Anything, mock.MatchedBy(func(h map[string]string) bool {
		return h["Nats-Msg-Id"] == event.EventID
	})).Return(nil).Once()

	err := n.NotifyTenant(context.Background(), event)
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestNotifyHandoff_PayloadRoundTrips(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)
	event := testEvent(model.EventHandoffMessage)
	event.Message = &model.HandoffMessage{
		MessageID:  uuid.NewString(),
		HandoffID:  event.HandoffID,
		TenantID:   event.TenantID,
		SenderKind: model.SenderAgent,
		SenderID:   "agent_7",
		Content:    "on it",
		Seq:        3,
	}

	var published []byte
	client.On("Publish", "v1.handoff.tenant_alpha.ho_123", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(1).([]byte)
		}).Return(nil).Once()

	require.NoError(t, n.NotifyHandoff(context.Background(), event))

	var decoded model.Event
	require.NoError(t, utils.UnmarshalJSON(published, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, model.EventHandoffMessage, decoded.Kind)
	require.NotNil(t, decoded.Message)
	assert.Equal(t, int64(3), decoded.Message.Seq)
	client.AssertExpectations(t)
}

func TestNotifyBoth_FansOutToBothChannels(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)
	event := testEvent(model.EventHandoffAssigned)

	client.On("Publish", "v1.handoff.tenant_alpha", mock.Anything, mock.Anything).Return(nil).Once()
	client.On("Publish", "v1.handoff.tenant_alpha.ho_123", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, n.NotifyBoth(context.Background(), event))
	client.AssertExpectations(t)
}

func TestNotifyBoth_ReturnsPublishError(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)
	event := testEvent(model.EventHandoffAssigned)

	client.On("Publish", "v1.handoff.tenant_alpha", mock.Anything, mock.Anything).
		Return(errors.New("nats: timeout")).Once()
	client.On("Publish", "v1.handoff.tenant_alpha.ho_123", mock.Anything, mock.Anything).Return(nil).Once()

	err := n.NotifyBoth(context.Background(), event)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.True(t, errors.Is(err, apperrors.ErrNATS))
	client.AssertExpectations(t)
}

// subscribeCapturingHandler wires a mock subscription on the subject and
// hands back the registered message handler so tests can drive deliveries.
func subscribeCapturingHandler(t *testing.T, client *jsmock.ClientMock, subject string) *nats.MsgHandler {
	t.Helper()
	var handler nats.MsgHandler
	client.On("Subscribe", subject, mock.Anything).
		Run(func(args mock.Arguments) {
			handler = args.Get(1).(nats.MsgHandler)
		}).Return(&nats.Subscription{}, nil).Once()
	return &handler
}

func TestSubscribeTenant_DeliversInPublishOrder(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)
	handler := subscribeCapturingHandler(t, client, "v1.handoff.tenant_alpha")

	events, cancel, err := n.SubscribeTenant(context.Background(), "tenant_alpha", 4)
	require.NoError(t, err)
	require.NotNil(t, *handler)
	defer cancel()

	first := testEvent(model.EventHandoffCreated)
	second := testEvent(model.EventHandoffAssigned)
	for _, ev := range []model.Event{first, second} {
		(*handler)(&nats.Msg{Subject: "v1.handoff.tenant_alpha", Data: utils.MustMarshalJSON(ev)})
	}

	got := <-events
	assert.Equal(t, first.EventID, got.EventID)
	assert.Equal(t, model.EventHandoffCreated, got.Kind)
	got = <-events
	assert.Equal(t, second.EventID, got.EventID)
	client.AssertExpectations(t)
}

func TestSubscribeHandoff_DropsUndecodablePayload(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)
	handler := subscribeCapturingHandler(t, client, "v1.handoff.tenant_alpha.ho_123")

	events, cancel, err := n.SubscribeHandoff(context.Background(), "tenant_alpha", "ho_123", 4)
	require.NoError(t, err)
	defer cancel()

	(*handler)(&nats.Msg{Subject: "v1.handoff.tenant_alpha.ho_123", Data: []byte("{not json")})
	select {
	case got := <-events:
		t.Fatalf("undecodable payload delivered as event %s", got.EventID)
	default:
	}

	// A well-formed event still flows after the dropped one.
	event := testEvent(model.EventHandoffMessage)
	(*handler)(&nats.Msg{Subject: "v1.handoff.tenant_alpha.ho_123", Data: utils.MustMarshalJSON(event)})
	got := <-events
	assert.Equal(t, event.EventID, got.EventID)
	client.AssertExpectations(t)
}

func TestSubscribeCancel_ToleratesLateDeliveries(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)
	handler := subscribeCapturingHandler(t, client, "v1.handoff.tenant_alpha")

	events, cancel, err := n.SubscribeTenant(context.Background(), "tenant_alpha", 4)
	require.NoError(t, err)

	cancel()

	// Drain keeps dispatching already-queued messages after cancel returns;
	// a late delivery must be dropped, not sent on the closed channel.
	assert.NotPanics(t, func() {
		(*handler)(&nats.Msg{Subject: "v1.handoff.tenant_alpha", Data: utils.MustMarshalJSON(testEvent(model.EventHandoffResolved))})
	})

	_, open := <-events
	assert.False(t, open)

	assert.NotPanics(t, cancel)
	client.AssertExpectations(t)
}

func TestSubscribe_ReturnsRetryableOnSubscribeFailure(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)

	client.On("Subscribe", "v1.handoff.tenant_alpha", mock.Anything).
		Return(nil, errors.New("nats: no servers available")).Once()

	events, cancel, err := n.SubscribeTenant(context.Background(), "tenant_alpha", 4)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.True(t, errors.Is(err, apperrors.ErrNATS))
	assert.Nil(t, events)
	assert.Nil(t, cancel)
	client.AssertExpectations(t)
}

func TestNotify_RejectsInvalidEvent(t *testing.T) {
	client := new(jsmock.ClientMock)
	n := NewNotifier(client)

	event := testEvent("handoff.bogus")
	err := n.NotifyTenant(context.Background(), event)
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
	assert.True(t, apperrors.IsValidationError(err))

	event = testEvent(model.EventHandoffCreated)
	event.EventID = ""
	err = n.NotifyTenant(context.Background(), event)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))

	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
