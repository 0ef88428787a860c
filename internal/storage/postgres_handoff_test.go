package storage

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
)

func handoffColumns() []string {
	return []string{"id", "handoff_id", "tenant_id", "status", "assigned_agent_id", "last_seq", "requested_at"}
}

func handoffRow(status model.HandoffStatus, agentID string) *sqlmock.Rows {
	return sqlmock.NewRows(handoffColumns()).
		AddRow(int64(1), testHandoffID, testTenantID, string(status), agentID, int64(0), time.Now().UTC())
}

func TestFindHandoffByHandoffID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusPending, ""))

		handoff, err := repo.FindHandoffByHandoffID(testContext(), testHandoffID)
		require.NoError(t, err)
		assert.Equal(t, testHandoffID, handoff.HandoffID)
		assert.Equal(t, testTenantID, handoff.TenantID)
		assert.Equal(t, model.HandoffStatusPending, handoff.Status)
	})

	t.Run("Not Found", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(sqlmock.NewRows(handoffColumns()))

		handoff, err := repo.FindHandoffByHandoffID(testContext(), testHandoffID)
		assert.Nil(t, handoff)
		assert.True(t, apperrors.IsNotFoundError(err))
	})
}

func TestListPendingHandoffs(t *testing.T) {
	repo, mock, teardown := newMockDB(t)
	t.Cleanup(teardown)

	rows := sqlmock.NewRows(handoffColumns()).
		AddRow(int64(1), "handoff-1", testTenantID, "pending", "", int64(0), time.Now().UTC()).
		AddRow(int64(2), "handoff-2", testTenantID, "pending", "", int64(0), time.Now().UTC())

	mock.ExpectQuery(`SELECT * FROM handoffs WHERE tenant_id = $1 AND status = 'pending' ORDER BY requested_at ASC LIMIT $2`).
		WithArgs(testTenantID, 50).
		WillReturnRows(rows)

	handoffs, err := repo.ListPendingHandoffs(testContext(), 50)
	require.NoError(t, err)
	require.Len(t, handoffs, 2)
	assert.Equal(t, "handoff-1", handoffs[0].HandoffID)
	assert.Equal(t, "handoff-2", handoffs[1].HandoffID)
}

func TestListStaleTenants(t *testing.T) {
	repo, mock, teardown := newMockDB(t)
	t.Cleanup(teardown)

	cutoff := time.Now().UTC().Add(-30 * time.Minute)
	rows := sqlmock.NewRows([]string{"tenant_id"}).
		AddRow("tenant-a").
		AddRow("tenant-b")

	mock.ExpectQuery(`SELECT DISTINCT tenant_id FROM handoffs WHERE status = 'pending' AND requested_at < $1`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	tenants, err := repo.ListStaleTenants(testContext(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a", "tenant-b"}, tenants)
}

func TestAssignHandoffIfPending(t *testing.T) {
	t.Run("Winner commits increment and CAS together", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectExec(incrementLoadSQL).
			WithArgs(AnyTime{}, testAgentID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(assignHandoffSQL).
			WithArgs(testAgentID, AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusActive, testAgentID))
		mock.ExpectCommit()

		handoff, err := repo.AssignHandoffIfPending(testContext(), testHandoffID, testAgentID)
		require.NoError(t, err)
		assert.Equal(t, model.HandoffStatusActive, handoff.Status)
		assert.Equal(t, testAgentID, handoff.AssignedAgentID)
	})

	t.Run("Lost CAS rolls back the increment", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectExec(incrementLoadSQL).
			WithArgs(AnyTime{}, testAgentID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(assignHandoffSQL).
			WithArgs(testAgentID, AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		// classifyTransitionMiss inspects the current row
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusActive, "agent-other"))
		mock.ExpectRollback()

		handoff, err := repo.AssignHandoffIfPending(testContext(), testHandoffID, testAgentID)
		assert.Nil(t, handoff)
		assert.True(t, apperrors.IsAlreadyAssignedError(err))
	})

	t.Run("Terminal handoff maps to not active", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectExec(incrementLoadSQL).
			WithArgs(AnyTime{}, testAgentID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(assignHandoffSQL).
			WithArgs(testAgentID, AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusExpired, ""))
		mock.ExpectRollback()

		_, err := repo.AssignHandoffIfPending(testContext(), testHandoffID, testAgentID)
		assert.True(t, apperrors.IsHandoffNotActiveError(err))
	})

	t.Run("Agent at capacity never touches the handoff", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		agentRows := sqlmock.NewRows([]string{"id", "agent_id", "tenant_id", "availability", "active_load", "capacity"}).
			AddRow(int64(1), testAgentID, testTenantID, "available", int32(3), int32(3))

		mock.ExpectBegin()
		mock.ExpectExec(incrementLoadSQL).
			WithArgs(AnyTime{}, testAgentID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		// classifyIncrementMiss inspects the agent row
		mock.ExpectQuery(selectAgentSQL).
			WithArgs(testAgentID, testTenantID).
			WillReturnRows(agentRows)
		mock.ExpectRollback()

		_, err := repo.AssignHandoffIfPending(testContext(), testHandoffID, testAgentID)
		assert.True(t, apperrors.IsCapacityExceededError(err))
	})

	t.Run("Offline agent rejected regardless of load", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		agentRows := sqlmock.NewRows([]string{"id", "agent_id", "tenant_id", "availability", "active_load", "capacity"}).
			AddRow(int64(1), testAgentID, testTenantID, "offline", int32(0), int32(3))

		mock.ExpectBegin()
		mock.ExpectExec(incrementLoadSQL).
			WithArgs(AnyTime{}, testAgentID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectAgentSQL).
			WithArgs(testAgentID, testTenantID).
			WillReturnRows(agentRows)
		mock.ExpectRollback()

		_, err := repo.AssignHandoffIfPending(testContext(), testHandoffID, testAgentID)
		assert.True(t, apperrors.IsAgentUnavailableError(err))
	})
}

func TestResolveHandoffIfOpen(t *testing.T) {
	t.Run("Winner releases the agent's capacity", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectExec(resolveHandoffSQL).
			WithArgs(testAgentID, AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusResolved, testAgentID))
		mock.ExpectExec(decrementLoadSQL).
			WithArgs(AnyTime{}, testAgentID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		handoff, transitioned, err := repo.ResolveHandoffIfOpen(testContext(), testHandoffID, testAgentID)
		require.NoError(t, err)
		assert.True(t, transitioned)
		assert.Equal(t, model.HandoffStatusResolved, handoff.Status)
	})

	t.Run("Already terminal is a no-op without decrement", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectExec(resolveHandoffSQL).
			WithArgs(testAgentID, AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusResolved, testAgentID))
		mock.ExpectCommit()

		handoff, transitioned, err := repo.ResolveHandoffIfOpen(testContext(), testHandoffID, testAgentID)
		require.NoError(t, err)
		assert.False(t, transitioned)
		assert.Equal(t, model.HandoffStatusResolved, handoff.Status)
	})

	t.Run("Unassigned pending resolve skips the decrement", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectExec(resolveHandoffSQL).
			WithArgs("system", AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusResolved, ""))
		mock.ExpectCommit()

		_, transitioned, err := repo.ResolveHandoffIfOpen(testContext(), testHandoffID, "system")
		require.NoError(t, err)
		assert.True(t, transitioned)
	})

	t.Run("Unknown handoff returns not found", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectExec(resolveHandoffSQL).
			WithArgs(testAgentID, AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(sqlmock.NewRows(handoffColumns()))
		mock.ExpectRollback()

		_, _, err := repo.ResolveHandoffIfOpen(testContext(), testHandoffID, testAgentID)
		assert.True(t, apperrors.IsNotFoundError(err))
	})
}

func TestExpireHandoffIfPending(t *testing.T) {
	t.Run("Pending handoff expires", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectExec(expireHandoffSQL).
			WithArgs(AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusExpired, ""))

		handoff, transitioned, err := repo.ExpireHandoffIfPending(testContext(), testHandoffID)
		require.NoError(t, err)
		assert.True(t, transitioned)
		assert.Equal(t, model.HandoffStatusExpired, handoff.Status)
	})

	t.Run("Picked-up handoff survives the expire attempt", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectExec(expireHandoffSQL).
			WithArgs(AnyTime{}, testHandoffID, testTenantID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectHandoffSQL).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusActive, testAgentID))

		handoff, transitioned, err := repo.ExpireHandoffIfPending(testContext(), testHandoffID)
		require.NoError(t, err)
		assert.False(t, transitioned)
		assert.Equal(t, model.HandoffStatusActive, handoff.Status)
	})
}

func TestCreateHandoff(t *testing.T) {
	t.Run("Tenant mismatch rejected before any SQL", func(t *testing.T) {
		repo, _, teardown := newMockDB(t)
		t.Cleanup(teardown)

		handoff := &model.Handoff{HandoffID: testHandoffID, TenantID: "tenant-other", Status: model.HandoffStatusPending}
		err := repo.CreateHandoff(testContext(), handoff)
		assert.True(t, apperrors.IsBadRequestError(err))
	})

	t.Run("Insert", func(t *testing.T) {
		repo, mock, teardown := newMockDBRegexp(t)
		t.Cleanup(teardown)

		mock.ExpectQuery(`INSERT INTO "handoffs"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

		handoff := &model.Handoff{
			HandoffID:   testHandoffID,
			TenantID:    testTenantID,
			Status:      model.HandoffStatusPending,
			RequestedAt: time.Now().UTC(),
		}
		err := repo.CreateHandoff(testContext(), handoff)
		require.NoError(t, err)
		assert.Equal(t, int64(1), handoff.ID)
	})
}
