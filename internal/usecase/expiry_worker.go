package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/observer"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
)

// ExpiryWorker periodically expires handoffs that stayed pending longer
// than the configured age. It implements the caller-driven timeout policy:
// the store only offers the conditional pending->expired write, the sweeper
// decides when "too long pending" applies. Racing a simultaneous pickup is
// safe; whichever conditional write lands first wins and the loser is a
// plain no-op.
type ExpiryWorker struct {
	service       *HandoffService
	pool          *ants.Pool
	sweepInterval time.Duration
	maxPendingAge time.Duration
	batchSize     int

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewExpiryWorker creates the sweeper with a bounded worker pool so a large
// backlog of stale handoffs cannot flood the database.
func NewExpiryWorker(service *HandoffService, poolSize int, sweepInterval, maxPendingAge time.Duration, batchSize int) (*ExpiryWorker, error) {
	if poolSize <= 0 {
		poolSize = 4
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &ExpiryWorker{
		service:       service,
		pool:          pool,
		sweepInterval: sweepInterval,
		maxPendingAge: maxPendingAge,
		batchSize:     batchSize,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

// Start launches the sweep loop. It returns immediately; call Stop to shut
// the loop and the pool down.
func (w *ExpiryWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.sweepInterval)
		defer ticker.Stop()

		logger.FromContext(ctx).Info("Expiry sweeper started",
			zap.Duration("interval", w.sweepInterval),
			zap.Duration("max_pending_age", w.maxPendingAge),
		)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

// Stop halts the sweep loop and waits for in-flight expiry tasks to finish.
func (w *ExpiryWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.pool.Release()
	})
}

// sweep runs one pass: find the tenants with stale pending handoffs, then
// expire each tenant's batch through the pool.
func (w *ExpiryWorker) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)
	cutoff := time.Now().UTC().Add(-w.maxPendingAge)

	tenants, err := w.service.handoffRepo.ListStaleTenants(ctx, cutoff)
	if err != nil {
		log.Error("Expiry sweep failed to list tenants", zap.Error(err))
		return
	}

	for _, tenantID := range tenants {
		tenantCtx := tenant.WithTenantID(ctx, tenantID)
		stale, err := w.service.handoffRepo.ListStalePending(tenantCtx, cutoff, w.batchSize)
		if err != nil {
			log.Error("Expiry sweep failed to list stale handoffs",
				zap.String("tenant_id", tenantID), zap.Error(err))
			continue
		}

		for _, handoff := range stale {
			handoffID := handoff.HandoffID
			submitErr := w.pool.Submit(func() {
				observer.SetSweepWorkersActive(w.pool.Running())
				if _, err := w.service.Expire(tenantCtx, handoffID); err != nil {
					log.Warn("Expiry task failed",
						zap.String("tenant_id", tenantID),
						zap.String("handoff_id", handoffID),
						zap.Error(err))
				}
			})
			if submitErr != nil {
				log.Error("Failed to submit expiry task", zap.Error(submitErr))
				continue
			}
			observer.IncSweepTasksSubmitted(tenantID)
		}
	}
}
