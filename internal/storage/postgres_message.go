package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/observer"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
)

// Sequence assignment statements. The UPDATE takes a row lock on the
// handoff, so concurrent senders serialize and each observes a distinct,
// monotonically increasing seq. The status condition makes the append and
// the active check one atomic step.
const (
	nextSeqActiveSQL = `UPDATE handoffs SET last_seq = last_seq + 1, updated_at = $1 WHERE handoff_id = $2 AND tenant_id = $3 AND status = 'active' RETURNING last_seq`

	nextSeqResolvedSQL = `UPDATE handoffs SET last_seq = last_seq + 1, updated_at = $1 WHERE handoff_id = $2 AND tenant_id = $3 AND status = 'resolved' RETURNING last_seq`

	selectMessagesSinceSQL = `SELECT * FROM handoff_messages WHERE handoff_id = $1 AND tenant_id = $2 AND seq > $3 ORDER BY seq ASC LIMIT $4`
)

// AppendMessageIfActive assigns the next per-handoff sequence number and
// persists the message, provided the handoff is still active.
func (r *PostgresRepo) AppendMessageIfActive(ctx context.Context, message *model.HandoffMessage) error {
	return r.appendMessage(ctx, message, nextSeqActiveSQL, "AppendMessageIfActive")
}

// AppendTerminalMessage persists the system message marking resolution. The
// handoff must already be resolved; only the resolution winner appends it.
func (r *PostgresRepo) AppendTerminalMessage(ctx context.Context, message *model.HandoffMessage) error {
	if message.SenderKind != model.SenderSystem {
		return fmt.Errorf("%w: terminal message must be a system message, got %s", apperrors.ErrBadRequest, message.SenderKind)
	}
	return r.appendMessage(ctx, message, nextSeqResolvedSQL, "AppendTerminalMessage")
}

func (r *PostgresRepo) appendMessage(ctx context.Context, message *model.HandoffMessage, seqSQL string, opName string) error {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}
	if tenantID != message.TenantID {
		return fmt.Errorf("%w: message TenantID %s does not match tenant ID %s", apperrors.ErrBadRequest, message.TenantID, tenantID)
	}

	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					logger.FromContext(ctx).Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		now := time.Now().UTC()

		var row struct {
			LastSeq int64
		}
		result := tx.Raw(seqSQL, now, message.HandoffID, tenantID).Scan(&row)
		if result.Error != nil {
			txErr = checkConstraintViolation(result.Error)
			return txErr
		}
		if result.RowsAffected == 0 {
			txErr = classifyAppendMiss(tx, message.HandoffID, tenantID)
			return txErr
		}

		message.Seq = row.LastSeq
		message.SentAt = now

		if createErr := tx.Create(message).Error; createErr != nil {
			txErr = checkConstraintViolation(createErr)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit message transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, opName+" Commit", operation)
	observer.ObserveDbOperationDuration("append", "message", tenantID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to append message after retries",
			zap.String("handoff_id", message.HandoffID),
			zap.String("message_id", message.MessageID),
			zap.Error(commitErr),
		)
		return commitErr
	}
	return nil
}

// ListMessagesSince returns messages for a handoff with seq greater than
// sinceSeq, ascending. This is the single read primitive behind both the
// push fan-out payloads and the polling snapshot, so the two delivery paths
// are consistent by construction.
func (r *PostgresRepo) ListMessagesSince(ctx context.Context, handoffID string, sinceSeq int64, limit int) ([]model.HandoffMessage, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var messages []model.HandoffMessage
	operation := func() error {
		result := r.db.WithContext(ctx).Raw(selectMessagesSinceSQL, handoffID, tenantID, sinceSeq, limit).Scan(&messages)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := time.Now()
	readErr := retryableOperation(ctx, readPolicy, "ListMessagesSince", operation)
	observer.ObserveDbOperationDuration("list", "message", tenantID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return messages, nil
}

// classifyAppendMiss explains a failed sequence assignment: the handoff is
// missing or not in the status the append requires.
func classifyAppendMiss(tx *gorm.DB, handoffID, tenantID string) error {
	var current model.Handoff
	result := tx.Raw(selectHandoffSQL, handoffID, tenantID).Scan(&current)
	if result.Error != nil {
		return checkConstraintViolation(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: handoff %s", apperrors.ErrNotFound, handoffID)
	}
	return fmt.Errorf("%w: handoff %s is %s", apperrors.ErrHandoffNotActive, handoffID, current.Status)
}
