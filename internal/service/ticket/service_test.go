package ticket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTicket() *domain.Ticket {
	return &domain.Ticket{
		LocationID:   "loc-1",
		BusinessDate: "2026-08-28",
		Items: domain.TicketItems{
			{ProductID: "p-1", Name: "Pão de queijo", Quantity: 2, UnitPriceCents: 450},
		},
		SubtotalCents: 900,
		TotalCents:    900,
		PaymentMethod: "Cash",
		TenderedCents: 900,
	}
}

func TestCreateLocal_PersistsPendingWithToken(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := mocks.NewInMemoryTicketRepository()
	tokens := mocks.NewMockQueueTokenRepository()
	svc := NewService(repo, tokens, mocks.NewMockCache(), time.Second, newTestLogger())

	// Act
	id, err := svc.CreateLocal(ctx, newTicket())

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id == "" {
		t.Fatal("expected a ticket id")
	}
	saved, _ := repo.FindByID(ctx, id)
	if saved == nil {
		t.Fatal("expected ticket to be saved")
	}
	if saved.SyncStatus != domain.SyncStatusPending {
		t.Errorf("expected status PENDING, got %s", saved.SyncStatus)
	}
	if saved.TokenNumber != 1 {
		t.Errorf("expected token number 1, got %d", saved.TokenNumber)
	}
	if saved.SyncedAt != nil {
		t.Error("expected synced_at to be unset")
	}
}

func TestCreateLocal_RejectsEmptyTicket(t *testing.T) {
	svc := NewService(mocks.NewInMemoryTicketRepository(), mocks.NewMockQueueTokenRepository(), nil, time.Second, newTestLogger())

	tk := newTicket()
	tk.Items = nil
	_, err := svc.CreateLocal(context.Background(), tk)
	if !errors.Is(err, ErrEmptyTicket) {
		t.Errorf("expected ErrEmptyTicket, got %v", err)
	}
}

func TestCreateLocal_WorksWithoutNetwork(t *testing.T) {
	// Arrange: nothing but local storage is wired
	ctx := context.Background()
	repo := mocks.NewInMemoryTicketRepository()
	svc := NewService(repo, mocks.NewMockQueueTokenRepository(), nil, time.Second, newTestLogger())

	// Act
	id, err := svc.CreateLocal(ctx, newTicket())

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	saved, _ := repo.FindByID(ctx, id)
	if saved.SyncStatus != domain.SyncStatusPending {
		t.Errorf("expected status PENDING, got %s", saved.SyncStatus)
	}
}

func TestQueueNumbering_ConcurrentCheckoutsGetDistinctNumbers(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := mocks.NewInMemoryTicketRepository()
	tokens := mocks.NewMockQueueTokenRepository()
	svc := NewService(repo, tokens, nil, time.Second, newTestLogger())

	const n = 50
	numbers := make(chan int, n)

	// Act
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := newTicket()
			if _, err := svc.CreateLocal(ctx, tk); err != nil {
				t.Errorf("create failed: %v", err)
				return
			}
			numbers <- tk.TokenNumber
		}()
	}
	wg.Wait()
	close(numbers)

	// Assert: exactly {1..n}, no duplicates, no gaps
	seen := make(map[int]bool)
	for num := range numbers {
		if seen[num] {
			t.Errorf("duplicate token number %d", num)
		}
		seen[num] = true
	}
	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Errorf("missing token number %d", i)
		}
	}
}

func TestNextQueueNumber_StartsAtOnePerBusinessDate(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := NewService(mocks.NewInMemoryTicketRepository(), mocks.NewMockQueueTokenRepository(), nil, time.Second, newTestLogger())

	// Act / Assert
	n1, err := svc.NextQueueNumber(ctx, "loc-1", "2026-08-28")
	if err != nil || n1 != 1 {
		t.Fatalf("expected 1, got %d (%v)", n1, err)
	}
	n2, _ := svc.NextQueueNumber(ctx, "loc-1", "2026-08-28")
	if n2 != 2 {
		t.Errorf("expected 2, got %d", n2)
	}
	// new business date resets the counter
	n3, _ := svc.NextQueueNumber(ctx, "loc-1", "2026-08-29")
	if n3 != 1 {
		t.Errorf("expected 1 on new date, got %d", n3)
	}
}

func TestIssueToken_FailsLoudlyOnDuplicate(t *testing.T) {
	// Arrange: storage rejects the insert, as the composite key would
	ctx := context.Background()
	tokens := mocks.NewMockQueueTokenRepository()
	tokens.SaveFunc = func(ctx context.Context, token *domain.QueueToken) error {
		return errors.New("duplicate key value violates unique constraint")
	}
	svc := NewService(mocks.NewInMemoryTicketRepository(), tokens, nil, time.Second, newTestLogger())

	// Act
	_, err := svc.NextQueueNumber(ctx, "loc-1", "2026-08-28")

	// Assert
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestUpdateSyncStatus_IdempotentSyncedAt(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := mocks.NewInMemoryTicketRepository()
	svc := NewService(repo, mocks.NewMockQueueTokenRepository(), nil, time.Second, newTestLogger())
	id, err := svc.CreateLocal(ctx, newTicket())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Act
	if err := svc.UpdateSyncStatus(ctx, id, domain.SyncStatusSynced, ""); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}
	first, _ := repo.FindByID(ctx, id)
	if first.SyncedAt == nil {
		t.Fatal("expected synced_at to be stamped")
	}

	if err := svc.UpdateSyncStatus(ctx, id, domain.SyncStatusSynced, ""); err != nil {
		t.Fatalf("repeat transition failed: %v", err)
	}

	// Assert: the repeat is a no-op, the stamp does not move
	second, _ := repo.FindByID(ctx, id)
	if second.SyncedAt == nil || !second.SyncedAt.Equal(*first.SyncedAt) {
		t.Error("expected synced_at to be unchanged on repeated transition")
	}
}

func TestUpdateSyncStatus_UnknownTicket(t *testing.T) {
	svc := NewService(mocks.NewInMemoryTicketRepository(), mocks.NewMockQueueTokenRepository(), nil, time.Second, newTestLogger())

	err := svc.UpdateSyncStatus(context.Background(), "missing", domain.SyncStatusSynced, "")
	if !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestSyncStats_CacheFallsBackToDatabase(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := mocks.NewInMemoryTicketRepository()
	cache := mocks.NewMockCache()
	cache.GetFunc = func(ctx context.Context, key string) (string, error) {
		return "", errors.New("connection refused")
	}
	svc := NewService(repo, mocks.NewMockQueueTokenRepository(), cache, time.Second, newTestLogger())
	if _, err := svc.CreateLocal(ctx, newTicket()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Act
	stats, err := svc.SyncStats(ctx)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Pending != 1 {
		t.Errorf("expected 1 pending, got %d", stats.Pending)
	}
}
