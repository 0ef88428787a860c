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

// Conditional transition statements. Every status write is guarded by the
// expected prior status and checked through RowsAffected; these are the only
// statements that touch the status column.
const (
	assignHandoffSQL = `UPDATE handoffs SET status = 'active', assigned_agent_id = $1, assigned_at = $2, updated_at = $2 WHERE handoff_id = $3 AND tenant_id = $4 AND status = 'pending'`

	resolveHandoffSQL = `UPDATE handoffs SET status = 'resolved', resolved_by = $1, resolved_at = $2, updated_at = $2 WHERE handoff_id = $3 AND tenant_id = $4 AND status IN ('pending','active')`

	expireHandoffSQL = `UPDATE handoffs SET status = 'expired', updated_at = $1 WHERE handoff_id = $2 AND tenant_id = $3 AND status = 'pending'`

	selectHandoffSQL = `SELECT * FROM handoffs WHERE handoff_id = $1 AND tenant_id = $2`
)

// CreateHandoff persists a new handoff record. Intake owns the initial
// status (pending, or resolved on the after-hours path).
func (r *PostgresRepo) CreateHandoff(ctx context.Context, handoff *model.Handoff) error {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}
	if tenantID != handoff.TenantID {
		return fmt.Errorf("%w: handoff TenantID %s does not match tenant ID %s", apperrors.ErrBadRequest, handoff.TenantID, tenantID)
	}

	operation := func() error {
		if err := r.db.WithContext(ctx).Create(handoff).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateHandoff Commit", operation)
	observer.ObserveDbOperationDuration("insert", "handoff", tenantID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to create handoff after retries", zap.String("handoff_id", handoff.HandoffID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindHandoffByHandoffID fetches a single handoff scoped to the context tenant.
func (r *PostgresRepo) FindHandoffByHandoffID(ctx context.Context, handoffID string) (*model.Handoff, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var handoff model.Handoff
	operation := func() error {
		result := r.db.WithContext(ctx).Raw(selectHandoffSQL, handoffID, tenantID).Scan(&handoff)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: handoff %s", apperrors.ErrNotFound, handoffID)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := time.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindHandoffByHandoffID", operation)
	observer.ObserveDbOperationDuration("find", "handoff", tenantID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return &handoff, nil
}

// ListPendingHandoffs returns the tenant's pending queue in request order,
// backing the agent dashboard refresh.
func (r *PostgresRepo) ListPendingHandoffs(ctx context.Context, limit int) ([]model.Handoff, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var handoffs []model.Handoff
	operation := func() error {
		result := r.db.WithContext(ctx).
			Raw(`SELECT * FROM handoffs WHERE tenant_id = $1 AND status = 'pending' ORDER BY requested_at ASC LIMIT $2`, tenantID, limit).
			Scan(&handoffs)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := time.Now()
	readErr := retryableOperation(ctx, readPolicy, "ListPendingHandoffs", operation)
	observer.ObserveDbOperationDuration("list", "handoff", tenantID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return handoffs, nil
}

// ListStalePendingHandoffs returns pending handoffs requested before the
// cutoff, for the expiry sweeper.
func (r *PostgresRepo) ListStalePendingHandoffs(ctx context.Context, olderThan time.Time, limit int) ([]model.Handoff, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var handoffs []model.Handoff
	operation := func() error {
		result := r.db.WithContext(ctx).
			Raw(`SELECT * FROM handoffs WHERE tenant_id = $1 AND status = 'pending' AND requested_at < $2 ORDER BY requested_at ASC LIMIT $3`, tenantID, olderThan, limit).
			Scan(&handoffs)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := time.Now()
	readErr := retryableOperation(ctx, readPolicy, "ListStalePendingHandoffs", operation)
	observer.ObserveDbOperationDuration("list", "handoff", tenantID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return handoffs, nil
}

// ListStaleTenants returns the distinct tenants that still hold pending
// handoffs older than the cutoff. Deliberately tenant-unscoped: the expiry
// sweeper calls it to decide which tenants need a sweep pass.
func (r *PostgresRepo) ListStaleTenants(ctx context.Context, olderThan time.Time) ([]string, error) {
	var tenants []string
	operation := func() error {
		result := r.db.WithContext(ctx).
			Raw(`SELECT DISTINCT tenant_id FROM handoffs WHERE status = 'pending' AND requested_at < $1`, olderThan).
			Scan(&tenants)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := time.Now()
	readErr := retryableOperation(ctx, readPolicy, "ListStaleTenants", operation)
	observer.ObserveDbOperationDuration("list", "handoff", "", time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return tenants, nil
}

// AssignHandoffIfPending performs the single-winner pickup. The bounded
// load increment and the pending->active compare-and-swap share one
// transaction: if the CAS loses, the rollback undoes the increment, so an
// agent never holds capacity for a handoff it did not win.
func (r *PostgresRepo) AssignHandoffIfPending(ctx context.Context, handoffID, agentID string) (*model.Handoff, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var assigned model.Handoff
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

		// Bounded increment first. The row lock it takes also serializes
		// concurrent pickups by the same agent across different handoffs.
		incr := tx.Exec(incrementLoadSQL, now, agentID, tenantID)
		if incr.Error != nil {
			txErr = checkConstraintViolation(incr.Error)
			return txErr
		}
		if incr.RowsAffected == 0 {
			txErr = r.classifyIncrementMiss(tx, agentID, tenantID)
			return txErr
		}

		// Compare-and-swap on the status field.
		cas := tx.Exec(assignHandoffSQL, agentID, now, handoffID, tenantID)
		if cas.Error != nil {
			txErr = checkConstraintViolation(cas.Error)
			return txErr
		}
		if cas.RowsAffected == 0 {
			txErr = classifyTransitionMiss(tx, handoffID, tenantID, model.HandoffStatusPending)
			return txErr
		}

		result := tx.Raw(selectHandoffSQL, handoffID, tenantID).Scan(&assigned)
		if result.Error != nil {
			txErr = checkConstraintViolation(result.Error)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit pickup transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AssignHandoffIfPending Commit", operation)
	observer.ObserveDbOperationDuration("assign", "handoff", tenantID, time.Since(startTime), commitErr)
	if commitErr != nil {
		return nil, commitErr
	}

	logger.FromContext(ctx).Info("Handoff assigned",
		zap.String("handoff_id", handoffID),
		zap.String("agent_id", agentID),
	)
	return &assigned, nil
}

// ResolveHandoffIfOpen closes a pending or active handoff and releases the
// assigned agent's capacity within the same transaction. Calling it on an
// already-terminal handoff is a no-op that returns the existing record, so
// an agent action and a cleanup sweep may race without double-decrementing.
func (r *PostgresRepo) ResolveHandoffIfOpen(ctx context.Context, handoffID, resolvedBy string) (*model.Handoff, bool, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var resolved model.Handoff
	var transitioned bool
	operation := func() error {
		transitioned = false
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

		cas := tx.Exec(resolveHandoffSQL, resolvedBy, now, handoffID, tenantID)
		if cas.Error != nil {
			txErr = checkConstraintViolation(cas.Error)
			return txErr
		}

		result := tx.Raw(selectHandoffSQL, handoffID, tenantID).Scan(&resolved)
		if result.Error != nil {
			txErr = checkConstraintViolation(result.Error)
			return txErr
		}
		if result.RowsAffected == 0 {
			txErr = fmt.Errorf("%w: handoff %s", apperrors.ErrNotFound, handoffID)
			return txErr
		}

		if cas.RowsAffected == 1 {
			transitioned = true
			// Release capacity exactly once, only for the winning resolve.
			if resolved.AssignedAgentID != "" {
				decr := tx.Exec(decrementLoadSQL, now, resolved.AssignedAgentID, tenantID)
				if decr.Error != nil {
					txErr = checkConstraintViolation(decr.Error)
					return txErr
				}
			}
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit resolve transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "ResolveHandoffIfOpen Commit", operation)
	observer.ObserveDbOperationDuration("resolve", "handoff", tenantID, time.Since(startTime), commitErr)
	if commitErr != nil {
		return nil, false, commitErr
	}

	if transitioned {
		logger.FromContext(ctx).Info("Handoff resolved",
			zap.String("handoff_id", handoffID),
			zap.String("resolved_by", resolvedBy),
		)
	}
	return &resolved, transitioned, nil
}

// ExpireHandoffIfPending transitions pending->expired. It is race-safe
// against a simultaneous pickup: whichever conditional write lands first
// wins and the loser observes a plain no-op or error, never partial state.
func (r *PostgresRepo) ExpireHandoffIfPending(ctx context.Context, handoffID string) (*model.Handoff, bool, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var expired model.Handoff
	var transitioned bool
	operation := func() error {
		transitioned = false
		now := time.Now().UTC()

		cas := r.db.WithContext(ctx).Exec(expireHandoffSQL, now, handoffID, tenantID)
		if cas.Error != nil {
			return checkConstraintViolation(cas.Error)
		}
		transitioned = cas.RowsAffected == 1

		result := r.db.WithContext(ctx).Raw(selectHandoffSQL, handoffID, tenantID).Scan(&expired)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: handoff %s", apperrors.ErrNotFound, handoffID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "ExpireHandoffIfPending Commit", operation)
	observer.ObserveDbOperationDuration("expire", "handoff", tenantID, time.Since(startTime), commitErr)
	if commitErr != nil {
		return nil, false, commitErr
	}

	if transitioned {
		logger.FromContext(ctx).Info("Handoff expired", zap.String("handoff_id", handoffID))
	}
	return &expired, transitioned, nil
}

// classifyTransitionMiss turns a lost compare-and-swap into the taxonomy
// error the caller expects: AlreadyAssigned for a pickup that lost to
// another agent, HandoffNotActive for terminal states, NotFound otherwise.
func classifyTransitionMiss(tx *gorm.DB, handoffID, tenantID string, expected model.HandoffStatus) error {
	var current model.Handoff
	result := tx.Raw(selectHandoffSQL, handoffID, tenantID).Scan(&current)
	if result.Error != nil {
		return checkConstraintViolation(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: handoff %s", apperrors.ErrNotFound, handoffID)
	}
	if expected == model.HandoffStatusPending && current.Status == model.HandoffStatusActive {
		return fmt.Errorf("%w: handoff %s assigned to %s", apperrors.ErrAlreadyAssigned, handoffID, current.AssignedAgentID)
	}
	return fmt.Errorf("%w: handoff %s is %s", apperrors.ErrHandoffNotActive, handoffID, current.Status)
}
