package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	storagemock "gitlab.com/brivano/api/livedesk-handoff-service/internal/storage/mock"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
)

const testTenant = "tenant_test"

// notifierMock mocks the EventNotifier interface
type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) NotifyTenant(ctx context.Context, event model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *notifierMock) NotifyHandoff(ctx context.Context, event model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *notifierMock) NotifyBoth(ctx context.Context, event model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type serviceFixture struct {
	service     *HandoffService
	handoffRepo *storagemock.HandoffRepoMock
	messageRepo *storagemock.MessageRepoMock
	agentRepo   *storagemock.AgentRepoMock
	notifier    *notifierMock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		handoffRepo: new(storagemock.HandoffRepoMock),
		messageRepo: new(storagemock.MessageRepoMock),
		agentRepo:   new(storagemock.AgentRepoMock),
		notifier:    new(notifierMock),
	}
	f.service = NewHandoffService(f.handoffRepo, f.messageRepo, f.agentRepo, f.notifier)
	return f
}

func (f *serviceFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.handoffRepo.AssertExpectations(t)
	f.messageRepo.AssertExpectations(t)
	f.agentRepo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func tenantContext() context.Context {
	return tenant.WithTenantID(context.Background(), testTenant)
}
