package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/observer"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/utils"
)

// Atomic load counter statements. These are the only writes to active_load;
// the conditions make each one a single bounded step, never a
// read-modify-write pair.
const (
	incrementLoadSQL = `UPDATE agents SET active_load = active_load + 1, updated_at = $1 WHERE agent_id = $2 AND tenant_id = $3 AND availability = 'available' AND active_load < capacity`

	decrementLoadSQL = `UPDATE agents SET active_load = active_load - 1, updated_at = $1 WHERE agent_id = $2 AND tenant_id = $3 AND active_load > 0`

	selectAgentSQL = `SELECT * FROM agents WHERE agent_id = $1 AND tenant_id = $2`

	anyCapacitySQL = `SELECT EXISTS (SELECT 1 FROM agents WHERE tenant_id = $1 AND availability = 'available' AND active_load < capacity) AS has_capacity`
)

// UpsertAgent saves or updates an agent record keyed by (tenant_id,
// agent_id), so a colliding agent_id under another tenant inserts a fresh
// row instead of touching the other tenant's record. Load is deliberately
// excluded from the update set: it changes only through the atomic counter
// operations.
func (r *PostgresRepo) UpsertAgent(ctx context.Context, agent model.Agent) error {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}
	if tenantID != agent.TenantID {
		return fmt.Errorf("%w: agent TenantID %s does not match tenant ID %s", apperrors.ErrBadRequest, agent.TenantID, tenantID)
	}

	agent.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "agent_id"}},
			DoUpdates: clause.AssignmentColumns(model.AgentUpdateColumns()),
		}).Create(&agent)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertAgent Commit", operation)
	observer.ObserveDbOperationDuration("upsert", "agent", tenantID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert agent after retries", zap.String("agent_id", agent.AgentID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindAgentByAgentID fetches a single agent scoped to the context tenant.
func (r *PostgresRepo) FindAgentByAgentID(ctx context.Context, agentID string) (*model.Agent, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var agent model.Agent
	operation := func() error {
		result := r.db.WithContext(ctx).Raw(selectAgentSQL, agentID, tenantID).Scan(&agent)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: agent %s", apperrors.ErrNotFound, agentID)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := time.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindAgentByAgentID", operation)
	observer.ObserveDbOperationDuration("find", "agent", tenantID, time.Since(startTime), readErr)
	if readErr != nil {
		return nil, readErr
	}
	return &agent, nil
}

// SetAgentAvailability updates the availability state. The session layer
// owns the heartbeat/timeout policy; this only records the outcome.
func (r *PostgresRepo) SetAgentAvailability(ctx context.Context, agentID string, state model.AgentAvailability) error {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}
	if !state.Valid() {
		return fmt.Errorf("%w: unknown availability %q", apperrors.ErrBadRequest, state)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Exec(
			`UPDATE agents SET availability = $1, updated_at = $2 WHERE agent_id = $3 AND tenant_id = $4`,
			state, time.Now().UTC(), agentID, tenantID,
		)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: agent %s", apperrors.ErrNotFound, agentID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SetAgentAvailability Commit", operation)
	observer.ObserveDbOperationDuration("update", "agent", tenantID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to set agent availability", zap.String("agent_id", agentID), zap.Error(commitErr))
		return commitErr
	}

	logger.FromContext(ctx).Info("Agent availability updated",
		zap.String("agent_id", agentID),
		zap.String("availability", string(state)),
	)
	return nil
}

// AnyAvailableCapacity reports whether any agent of the tenant can take a
// new handoff right now. Intake consults it to choose between queuing and
// the after-hours fallback.
func (r *PostgresRepo) AnyAvailableCapacity(ctx context.Context) (bool, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var row struct {
		HasCapacity bool
	}
	operation := func() error {
		result := r.db.WithContext(ctx).Raw(anyCapacitySQL, tenantID).Scan(&row)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := time.Now()
	readErr := retryableOperation(ctx, readPolicy, "AnyAvailableCapacity", operation)
	observer.ObserveDbOperationDuration("exists", "agent", tenantID, time.Since(startTime), readErr)
	if readErr != nil {
		return false, readErr
	}
	return row.HasCapacity, nil
}

// IncrementAgentLoad is the standalone bounded increment. Pickup uses the
// transactional variant inside AssignHandoffIfPending; this one backs
// directory-level tooling and tests.
func (r *PostgresRepo) IncrementAgentLoad(ctx context.Context, agentID string) (bool, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	var incremented bool
	operation := func() error {
		result := r.db.WithContext(ctx).Exec(incrementLoadSQL, time.Now().UTC(), agentID, tenantID)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		incremented = result.RowsAffected == 1
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "IncrementAgentLoad Commit", operation)
	observer.ObserveDbOperationDuration("increment", "agent", tenantID, time.Since(startTime), commitErr)
	if commitErr != nil {
		return false, commitErr
	}
	return incremented, nil
}

// DecrementAgentLoad atomically decrements active_load with a floor of
// zero. A miss (already at zero) is not an error.
func (r *PostgresRepo) DecrementAgentLoad(ctx context.Context, agentID string) error {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get tenant ID: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Exec(decrementLoadSQL, time.Now().UTC(), agentID, tenantID)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			logger.FromContext(ctx).Warn("Decrement skipped, agent load already zero", zap.String("agent_id", agentID))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := time.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "DecrementAgentLoad Commit", operation)
	observer.ObserveDbOperationDuration("decrement", "agent", tenantID, time.Since(startTime), commitErr)
	return commitErr
}

// classifyIncrementMiss explains a failed bounded increment: offline/busy
// agents are rejected regardless of load, full agents by capacity.
func (r *PostgresRepo) classifyIncrementMiss(tx *gorm.DB, agentID, tenantID string) error {
	var agent model.Agent
	result := tx.Raw(selectAgentSQL, agentID, tenantID).Scan(&agent)
	if result.Error != nil {
		return checkConstraintViolation(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: agent %s", apperrors.ErrNotFound, agentID)
	}
	if agent.Availability != model.AgentAvailable {
		return fmt.Errorf("%w: agent %s is %s", apperrors.ErrAgentUnavailable, agentID, agent.Availability)
	}
	return fmt.Errorf("%w: agent %s at %d/%d", apperrors.ErrCapacityExceeded, agentID, agent.ActiveLoad, agent.Capacity)
}
