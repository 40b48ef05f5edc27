//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/pdv-core/internal/domain"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pdv_test"),
		tcpostgres.WithUsername("pdv"),
		tcpostgres.WithPassword("pdv_test"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := NewConnection(url, 10, 2, newTestLogger())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { Close(db) })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	return db
}

func sampleTicket(id string) *domain.Ticket {
	return &domain.Ticket{
		ID:           id,
		LocationID:   "loc-1",
		BusinessDate: "2026-08-28",
		TokenNumber:  1,
		Items: domain.TicketItems{
			{ProductID: "p-1", Name: "Coxinha", Quantity: 3, UnitPriceCents: 700},
		},
		SubtotalCents: 2100,
		TotalCents:    2100,
		PaymentMethod: "Cash",
		TenderedCents: 2100,
		SyncStatus:    domain.SyncStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestTicketRepository_RoundTrip(t *testing.T) {
	// Arrange
	db := setupDB(t)
	repo := NewTicketRepository(db, newTestLogger())
	ctx := context.Background()

	// Act
	if err := repo.Save(ctx, sampleTicket("t-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := repo.FindByID(ctx, "t-1")

	// Assert: JSONB columns survive the round trip
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a ticket")
	}
	if len(got.Items) != 1 || got.Items[0].Name != "Coxinha" {
		t.Errorf("items did not round-trip: %+v", got.Items)
	}
	if got.SyncStatus != domain.SyncStatusPending {
		t.Errorf("expected PENDING, got %s", got.SyncStatus)
	}

	missing, err := repo.FindByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing ticket, got %v, %v", missing, err)
	}
}

func TestTicketRepository_MarkSyncingClaimsOnce(t *testing.T) {
	// Arrange
	db := setupDB(t)
	repo := NewTicketRepository(db, newTestLogger())
	ctx := context.Background()
	if err := repo.Save(ctx, sampleTicket("t-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Act: many workers race for the claim
	const workers = 8
	var wg sync.WaitGroup
	claims := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkSyncing(ctx, "t-1", domain.SyncStatusPending, domain.SyncStatusFailed)
			if err != nil {
				t.Errorf("mark failed: %v", err)
				return
			}
			claims <- ok
		}()
	}
	wg.Wait()
	close(claims)

	// Assert: exactly one winner
	won := 0
	for ok := range claims {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("expected exactly 1 claim, got %d", won)
	}
	got, _ := repo.FindByID(ctx, "t-1")
	if got.SyncStatus != domain.SyncStatusSyncing {
		t.Errorf("expected SYNCING, got %s", got.SyncStatus)
	}
}

func TestTicketRepository_ReleaseStaleSyncing(t *testing.T) {
	// Arrange: one abandoned claim, one live claim, one unstamped SYNCING row
	db := setupDB(t)
	repo := NewTicketRepository(db, newTestLogger())
	ctx := context.Background()

	stale := sampleTicket("t-stale")
	stale.SyncStatus = domain.SyncStatusSyncing
	staleAt := time.Now().Add(-time.Hour)
	stale.SyncingAt = &staleAt
	live := sampleTicket("t-live")
	live.SyncStatus = domain.SyncStatusSyncing
	liveAt := time.Now()
	live.SyncingAt = &liveAt
	unstamped := sampleTicket("t-unstamped")
	unstamped.SyncStatus = domain.SyncStatusSyncing
	for _, tk := range []*domain.Ticket{stale, live, unstamped} {
		if err := repo.Save(ctx, tk); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	// Act
	released, err := repo.ReleaseStaleSyncing(ctx, 5*time.Minute)

	// Assert: stale and unstamped return to PENDING, the live claim holds
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released != 2 {
		t.Errorf("expected 2 released, got %d", released)
	}
	for id, want := range map[string]domain.SyncStatus{
		"t-stale":     domain.SyncStatusPending,
		"t-unstamped": domain.SyncStatusPending,
		"t-live":      domain.SyncStatusSyncing,
	} {
		got, _ := repo.FindByID(ctx, id)
		if got.SyncStatus != want {
			t.Errorf("ticket %s: expected %s, got %s", id, want, got.SyncStatus)
		}
	}
}

func TestTicketRepository_CountByStatus(t *testing.T) {
	// Arrange
	db := setupDB(t)
	repo := NewTicketRepository(db, newTestLogger())
	ctx := context.Background()

	pending := sampleTicket("t-1")
	synced := sampleTicket("t-2")
	synced.SyncStatus = domain.SyncStatusSynced
	failed := sampleTicket("t-3")
	failed.SyncStatus = domain.SyncStatusFailed
	inflight := sampleTicket("t-4")
	inflight.SyncStatus = domain.SyncStatusSyncing
	for _, tk := range []*domain.Ticket{pending, synced, failed, inflight} {
		if err := repo.Save(ctx, tk); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	// Act
	stats, err := repo.CountByStatus(ctx)

	// Assert: SYNCING counts as still pending
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if stats.Pending != 2 || stats.Synced != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestQueueTokenRepository_DuplicateNumberRejected(t *testing.T) {
	// Arrange
	db := setupDB(t)
	repo := NewQueueTokenRepository(db, newTestLogger())
	ctx := context.Background()

	token := &domain.QueueToken{
		LocationID:   "loc-1",
		BusinessDate: "2026-08-28",
		TokenNumber:  1,
		TicketID:     "t-1",
		CreatedAt:    time.Now(),
	}
	if err := repo.Save(ctx, token); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Act: same number for the same pair must hit the composite key
	dup := *token
	dup.TicketID = "t-2"
	err := repo.Save(ctx, &dup)

	// Assert
	if err == nil {
		t.Fatal("expected a duplicate key error")
	}

	// a different business date starts fresh
	next := *token
	next.BusinessDate = "2026-08-29"
	if err := repo.Save(ctx, &next); err != nil {
		t.Errorf("expected new date to accept token 1, got %v", err)
	}

	max, err := repo.MaxToken(ctx, "loc-1", "2026-08-28")
	if err != nil || max != 1 {
		t.Errorf("expected max 1, got %d (%v)", max, err)
	}
	empty, err := repo.MaxToken(ctx, "loc-1", "2026-01-01")
	if err != nil || empty != 0 {
		t.Errorf("expected max 0 for empty date, got %d (%v)", empty, err)
	}
}

func TestWorkdayRepository_FindOpen(t *testing.T) {
	// Arrange
	db := setupDB(t)
	repo := NewWorkdayRepository(db, newTestLogger())
	ctx := context.Background()

	w := &domain.Workday{
		ID:           "w-1",
		LocationID:   "loc-1",
		BusinessDate: "2026-08-28",
		OpenedBy:     "maria",
		OpenedAt:     time.Now(),
	}
	if err := repo.Save(ctx, w); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Act / Assert
	open, err := repo.FindOpen(ctx, "loc-1")
	if err != nil || open == nil {
		t.Fatalf("expected open workday, got %v, %v", open, err)
	}

	now := time.Now()
	w.ClosedAt = &now
	if err := repo.Save(ctx, w); err != nil {
		t.Fatalf("close save failed: %v", err)
	}
	open, err = repo.FindOpen(ctx, "loc-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if open != nil {
		t.Errorf("expected no open workday after close, got %+v", open)
	}
}
