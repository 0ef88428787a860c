package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/jetstream"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/observer"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/utils"
)

const (
	// StreamName is the JetStream stream holding all notifier events.
	StreamName = "handoff_events"
	// SubjectPrefix roots every notifier subject. Tenant-wide events go to
	// v1.handoff.<tenant>, handoff-scoped events to v1.handoff.<tenant>.<handoffId>.
	SubjectPrefix = "v1.handoff"

	msgIDHeader = "Nats-Msg-Id"

	channelTenant  = "tenant"
	channelHandoff = "handoff"
)

// StreamSubjects covers every notifier subject under the prefix.
var StreamSubjects = []string{SubjectPrefix + ".>"}

// TenantSubject returns the tenant-wide channel subject.
func TenantSubject(tenantID string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, tenantID)
}

// HandoffSubject returns the per-handoff channel subject.
func HandoffSubject(tenantID, handoffID string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, tenantID, handoffID)
}

// Notifier publishes lifecycle events to tenant-wide and per-handoff
// channels over JetStream. Delivery is at-least-once; the event ID rides
// the Nats-Msg-Id header so the broker window deduplicates redeliveries.
// Publishing never blocks the state transition that produced the event:
// callers treat a returned error as a delivery failure, not a rollback.
type Notifier struct {
	client jetstream.ClientInterface
}

// NewNotifier creates a notifier on top of an established JetStream client.
func NewNotifier(client jetstream.ClientInterface) *Notifier {
	return &Notifier{client: client}
}

// SetupStream ensures the notifier stream exists before the first publish.
func (n *Notifier) SetupStream(ctx context.Context) error {
	return n.client.SetupStream(ctx, &nats.StreamConfig{
		Name:     StreamName,
		Subjects: StreamSubjects,
		Storage:  nats.FileStorage,
	})
}

// NotifyTenant publishes an event to the tenant-wide channel.
func (n *Notifier) NotifyTenant(ctx context.Context, event model.Event) error {
	return n.publish(ctx, TenantSubject(event.TenantID), channelTenant, event)
}

// NotifyHandoff publishes an event to the handoff's own channel.
func (n *Notifier) NotifyHandoff(ctx context.Context, event model.Event) error {
	return n.publish(ctx, HandoffSubject(event.TenantID, event.HandoffID), channelHandoff, event)
}

// NotifyBoth fans an event out to the tenant-wide and per-handoff channels
// concurrently. Each channel keeps its own ordering; there is no ordering
// guarantee between the two. Returns the first publish error, if any.
func (n *Notifier) NotifyBoth(ctx context.Context, event model.Event) error {
	var (
		wg       conc.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	wg.Go(func() {
		record(n.NotifyTenant(ctx, event))
	})
	wg.Go(func() {
		record(n.NotifyHandoff(ctx, event))
	})
	wg.Wait()
	return firstErr
}

func (n *Notifier) publish(ctx context.Context, subject, channel string, event model.Event) error {
	log := logger.FromContext(ctx)

	if !event.Kind.Valid() {
		return apperrors.NewFatal(apperrors.ErrValidation,
			"unknown event kind '%s'", event.Kind)
	}
	if event.EventID == "" {
		return apperrors.NewFatal(apperrors.ErrValidation, "event ID is empty")
	}

	payload := utils.MustMarshalJSON(event)

	headers := map[string]string{
		msgIDHeader: event.EventID,
	}

	if err := n.client.Publish(subject, payload, headers); err != nil {
		observer.IncEventPublishFailure(event.TenantID, string(event.Kind), channel)
		return apperrors.NewRetryable(apperrors.ErrNATS,
			"failed to publish %s to %s: %v", event.Kind, subject, err)
	}

	observer.IncEventsPublished(event.TenantID, string(event.Kind), channel)
	log.Debug("Published notifier event",
		zap.String("subject", subject),
		zap.String("event_id", event.EventID),
		zap.String("kind", string(event.Kind)),
		zap.String("size", utils.ByteCountSI(len(payload))),
	)
	return nil
}

// SubscribeTenant delivers tenant-wide events onto the returned channel in
// publish order. The returned cancel func closes the channel and drains the
// subscription; it is idempotent and safe against deliveries still in
// flight.
func (n *Notifier) SubscribeTenant(ctx context.Context, tenantID string, buffer int) (<-chan model.Event, func(), error) {
	return n.subscribe(ctx, TenantSubject(tenantID), buffer)
}

// SubscribeHandoff delivers a single handoff's events onto the returned
// channel in publish order.
func (n *Notifier) SubscribeHandoff(ctx context.Context, tenantID, handoffID string, buffer int) (<-chan model.Event, func(), error) {
	return n.subscribe(ctx, HandoffSubject(tenantID, handoffID), buffer)
}

func (n *Notifier) subscribe(ctx context.Context, subject string, buffer int) (<-chan model.Event, func(), error) {
	log := logger.FromContext(ctx)

	if buffer <= 0 {
		buffer = 64
	}
	events := make(chan model.Event, buffer)

	// The NATS dispatcher keeps invoking the handler while Drain flushes
	// pending messages, so teardown must synchronize with in-flight
	// deliveries before closing the channel. The mutex makes close and
	// delivery mutually exclusive; done unblocks a delivery stuck on a full
	// channel so cancel can take the mutex.
	var (
		mu     sync.Mutex
		closed bool
		done   = make(chan struct{})
		once   sync.Once
	)

	sub, err := n.client.Subscribe(subject, func(msg *nats.Msg) {
		var event model.Event
		if err := utils.UnmarshalJSON(msg.Data, &event); err != nil {
			log.Error("Dropping undecodable notifier event",
				zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case events <- event:
		case <-done:
		case <-ctx.Done():
		}
	})
	if err != nil {
		close(events)
		return nil, nil, apperrors.NewRetryable(apperrors.ErrNATS,
			"failed to subscribe to %s: %v", subject, err)
	}

	cancel := func() {
		once.Do(func() {
			close(done)
			mu.Lock()
			closed = true
			close(events)
			mu.Unlock()
			if err := sub.Drain(); err != nil {
				log.Warn("Failed to drain subscription",
					zap.String("subject", subject), zap.Error(err))
			}
		})
	}
	return events, cancel, nil
}
