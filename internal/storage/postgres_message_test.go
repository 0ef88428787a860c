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

func messageColumns() []string {
	return []string{"id", "message_id", "handoff_id", "tenant_id", "sender_kind", "sender_id", "content", "seq", "sent_at"}
}

func newTestMessage(kind model.SenderKind, senderID string) *model.HandoffMessage {
	return &model.HandoffMessage{
		MessageID:  "msg-test-001",
		HandoffID:  testHandoffID,
		TenantID:   testTenantID,
		SenderKind: kind,
		SenderID:   senderID,
		Content:    "hello",
	}
}

func TestAppendMessageIfActive(t *testing.T) {
	t.Run("Assigns the next sequence under the row lock", func(t *testing.T) {
		repo, mock, teardown := newMockDBRegexp(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE handoffs SET last_seq = last_seq \+ 1, updated_at = \$1 WHERE handoff_id = \$2 AND tenant_id = \$3 AND status = 'active' RETURNING last_seq`).
			WithArgs(AnyTime{}, testHandoffID, testTenantID).
			WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(int64(7)))
		mock.ExpectQuery(`INSERT INTO "handoff_messages"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
		mock.ExpectCommit()

		message := newTestMessage(model.SenderAgent, testAgentID)
		err := repo.AppendMessageIfActive(testContext(), message)
		require.NoError(t, err)
		assert.Equal(t, int64(7), message.Seq)
		assert.False(t, message.SentAt.IsZero())
	})

	t.Run("Resolved handoff rejects the append", func(t *testing.T) {
		repo, mock, teardown := newMockDBRegexp(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE handoffs SET last_seq = last_seq \+ 1, updated_at = \$1 WHERE handoff_id = \$2 AND tenant_id = \$3 AND status = 'active' RETURNING last_seq`).
			WithArgs(AnyTime{}, testHandoffID, testTenantID).
			WillReturnRows(sqlmock.NewRows([]string{"last_seq"}))
		// classifyAppendMiss inspects the current row
		mock.ExpectQuery(`SELECT \* FROM handoffs WHERE handoff_id = \$1 AND tenant_id = \$2`).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(handoffRow(model.HandoffStatusResolved, testAgentID))
		mock.ExpectRollback()

		err := repo.AppendMessageIfActive(testContext(), newTestMessage(model.SenderCustomer, ""))
		assert.True(t, apperrors.IsHandoffNotActiveError(err))
	})

	t.Run("Unknown handoff returns not found", func(t *testing.T) {
		repo, mock, teardown := newMockDBRegexp(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE handoffs SET last_seq = last_seq \+ 1, updated_at = \$1 WHERE handoff_id = \$2 AND tenant_id = \$3 AND status = 'active' RETURNING last_seq`).
			WithArgs(AnyTime{}, testHandoffID, testTenantID).
			WillReturnRows(sqlmock.NewRows([]string{"last_seq"}))
		mock.ExpectQuery(`SELECT \* FROM handoffs WHERE handoff_id = \$1 AND tenant_id = \$2`).
			WithArgs(testHandoffID, testTenantID).
			WillReturnRows(sqlmock.NewRows(handoffColumns()))
		mock.ExpectRollback()

		err := repo.AppendMessageIfActive(testContext(), newTestMessage(model.SenderCustomer, ""))
		assert.True(t, apperrors.IsNotFoundError(err))
	})

	t.Run("Tenant mismatch rejected before any SQL", func(t *testing.T) {
		repo, _, teardown := newMockDB(t)
		t.Cleanup(teardown)

		message := newTestMessage(model.SenderCustomer, "")
		message.TenantID = "tenant-other"
		err := repo.AppendMessageIfActive(testContext(), message)
		assert.True(t, apperrors.IsBadRequestError(err))
	})
}

func TestAppendTerminalMessage(t *testing.T) {
	t.Run("Requires a system sender", func(t *testing.T) {
		repo, _, teardown := newMockDB(t)
		t.Cleanup(teardown)

		err := repo.AppendTerminalMessage(testContext(), newTestMessage(model.SenderAgent, testAgentID))
		assert.True(t, apperrors.IsBadRequestError(err))
	})

	t.Run("Appends against the resolved status", func(t *testing.T) {
		repo, mock, teardown := newMockDBRegexp(t)
		t.Cleanup(teardown)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE handoffs SET last_seq = last_seq \+ 1, updated_at = \$1 WHERE handoff_id = \$2 AND tenant_id = \$3 AND status = 'resolved' RETURNING last_seq`).
			WithArgs(AnyTime{}, testHandoffID, testTenantID).
			WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(int64(12)))
		mock.ExpectQuery(`INSERT INTO "handoff_messages"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(43)))
		mock.ExpectCommit()

		message := newTestMessage(model.SenderSystem, "")
		err := repo.AppendTerminalMessage(testContext(), message)
		require.NoError(t, err)
		assert.Equal(t, int64(12), message.Seq)
	})
}

func TestListMessagesSince(t *testing.T) {
	t.Run("Returns messages after the cursor in seq order", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		now := time.Now().UTC()
		rows := sqlmock.NewRows(messageColumns()).
			AddRow(int64(1), "msg-3", testHandoffID, testTenantID, "customer", "", "hi", int64(3), now).
			AddRow(int64(2), "msg-4", testHandoffID, testTenantID, "agent", testAgentID, "hello", int64(4), now)

		mock.ExpectQuery(selectMessagesSinceSQL).
			WithArgs(testHandoffID, testTenantID, int64(2), 100).
			WillReturnRows(rows)

		messages, err := repo.ListMessagesSince(testContext(), testHandoffID, 2, 100)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, int64(3), messages[0].Seq)
		assert.Equal(t, int64(4), messages[1].Seq)
		assert.Equal(t, model.SenderAgent, messages[1].SenderKind)
	})

	t.Run("Empty tail", func(t *testing.T) {
		repo, mock, teardown := newMockDB(t)
		t.Cleanup(teardown)

		mock.ExpectQuery(selectMessagesSinceSQL).
			WithArgs(testHandoffID, testTenantID, int64(9), 100).
			WillReturnRows(sqlmock.NewRows(messageColumns()))

		messages, err := repo.ListMessagesSince(testContext(), testHandoffID, 9, 100)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}
