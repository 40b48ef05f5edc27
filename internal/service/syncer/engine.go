package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/observability/telemetry"
	"github.com/seu-repo/pdv-core/internal/ports"
	"github.com/seu-repo/pdv-core/internal/service/ticket"
)

// Report is the outcome of one sync pass. Partial failure is the normal
// case: each ticket either moved to SYNCED or stayed behind as FAILED.
type Report struct {
	Synced []string `json:"synced"`
	Failed []string `json:"failed"`
}

// staleClaimLease is how long a SYNCING claim is honored. A claim older
// than this can only belong to a pass that died before recording its
// result; the next pass returns the ticket to PENDING and retries it.
// Live claims are covered with margin: a pass holds a claim for at most
// one remote call timeout.
const staleClaimLease = 5 * time.Minute

// Engine pushes locally queued tickets to the remote order service. A
// ticket is claimed by flipping it to SYNCING first, so overlapping passes
// never submit the same ticket twice.
type Engine struct {
	tickets     ports.TicketRepository
	orders      ports.OrderService
	cache       ports.Cache
	callTimeout time.Duration
	log         *zap.Logger
}

func NewEngine(tickets ports.TicketRepository, orders ports.OrderService, cache ports.Cache, callTimeout time.Duration, log *zap.Logger) *Engine {
	if callTimeout == 0 {
		callTimeout = 15 * time.Second
	}
	return &Engine{
		tickets:     tickets,
		orders:      orders,
		cache:       cache,
		callTimeout: callTimeout,
		log:         log,
	}
}

// SyncPendingTickets attempts remote creation for every PENDING or FAILED
// ticket. One ticket's failure never aborts the batch; ctx cancellation
// stops between tickets, never mid-call.
func (e *Engine) SyncPendingTickets(ctx context.Context, creds ports.Credentials) (*Report, error) {
	start := time.Now()
	defer func() {
		telemetry.SyncPassDuration.Observe(time.Since(start).Seconds())
	}()

	released, err := e.tickets.ReleaseStaleSyncing(ctx, staleClaimLease)
	if err != nil {
		return nil, err
	}
	if released > 0 {
		e.log.Warn("released abandoned sync claims", zap.Int64("tickets", released))
	}

	candidates, err := e.tickets.FindBySyncStatus(ctx, domain.SyncStatusPending, domain.SyncStatusFailed)
	if err != nil {
		return nil, err
	}

	report := &Report{Synced: []string{}, Failed: []string{}}
	for i := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		t := candidates[i]

		claimed, err := e.tickets.MarkSyncing(ctx, t.ID, domain.SyncStatusPending, domain.SyncStatusFailed)
		if err != nil {
			return report, err
		}
		if !claimed {
			// Another pass has this ticket in flight.
			continue
		}

		e.syncOne(ctx, creds, &t, report)
	}

	e.invalidateStats(ctx)
	e.log.Info("sync pass finished",
		zap.Int("synced", len(report.Synced)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (e *Engine) syncOne(ctx context.Context, creds ports.Credentials, t *domain.Ticket, report *Report) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	res, err := e.orders.CreateTicket(callCtx, creds, t)
	cancel()

	t.SyncAttempts++
	if err != nil {
		t.SyncStatus = domain.SyncStatusFailed
		t.SyncError = err.Error()
		report.Failed = append(report.Failed, t.ID)
		telemetry.TicketsSynced.WithLabelValues("failed").Inc()
		e.log.Warn("ticket sync failed",
			zap.String("ticket_id", t.ID),
			zap.Int("attempts", t.SyncAttempts),
			zap.Error(err),
		)
	} else {
		t.SyncStatus = domain.SyncStatusSynced
		t.SyncError = ""
		t.RemoteID = res.TicketID
		if t.SyncedAt == nil {
			now := time.Now()
			t.SyncedAt = &now
		}
		report.Synced = append(report.Synced, t.ID)
		telemetry.TicketsSynced.WithLabelValues("synced").Inc()
	}

	if err := e.tickets.UpdateSyncResult(ctx, t); err != nil {
		// The remote may already hold this ticket; the idempotent submit
		// keyed by local id makes the retry safe.
		e.log.Error("failed to record sync result",
			zap.String("ticket_id", t.ID),
			zap.Error(err),
		)
	}
}

// RunPeriodic drives sync passes on an interval until ctx is cancelled,
// standing in for connectivity-restore notifications.
func (e *Engine) RunPeriodic(ctx context.Context, creds ports.Credentials, interval time.Duration) {
	if interval == 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.SyncPendingTickets(ctx, creds); err != nil && ctx.Err() == nil {
				e.log.Warn("periodic sync pass errored", zap.Error(err))
			}
		}
	}
}

func (e *Engine) invalidateStats(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Delete(ctx, ticket.StatsCacheKey); err != nil {
		e.log.Debug("failed to invalidate stats cache", zap.Error(err))
	}
}
