package workday

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/mocks"
	"github.com/seu-repo/pdv-core/internal/ports"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// memWorkdays is a one-location in-memory WorkdayRepository.
type memWorkdays struct {
	rows map[string]*domain.Workday
}

func newMemWorkdays() *memWorkdays {
	return &memWorkdays{rows: make(map[string]*domain.Workday)}
}

func (r *memWorkdays) Save(ctx context.Context, w *domain.Workday) error {
	cp := *w
	r.rows[w.ID] = &cp
	return nil
}

func (r *memWorkdays) FindOpen(ctx context.Context, locationID string) (*domain.Workday, error) {
	for _, w := range r.rows {
		if w.LocationID == locationID && w.Open() {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memWorkdays) FindByID(ctx context.Context, id string) (*domain.Workday, error) {
	w, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func TestOpen_CreatesAndSyncsRemote(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := newMemWorkdays()
	svc := NewService(repo, mocks.NewInMemoryTicketRepository(), &mocks.MockWorkdayService{}, time.Second, time.UTC, 4, newTestLogger())

	// Act
	w, err := svc.Open(ctx, ports.Credentials{}, "loc-1", "maria")

	// Assert
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !w.Open() {
		t.Error("expected workday to be open")
	}
	if w.OpenedBy != "maria" {
		t.Errorf("expected opened_by maria, got %s", w.OpenedBy)
	}
	stored, _ := repo.FindByID(ctx, w.ID)
	if stored.RemoteID != "remote-"+w.ID {
		t.Errorf("expected remote id stored, got %q", stored.RemoteID)
	}
}

func TestOpen_IsIdempotentWhileOpen(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := NewService(newMemWorkdays(), mocks.NewInMemoryTicketRepository(), &mocks.MockWorkdayService{}, time.Second, time.UTC, 4, newTestLogger())
	first, err := svc.Open(ctx, ports.Credentials{}, "loc-1", "maria")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// Act
	second, err := svc.Open(ctx, ports.Credentials{}, "loc-1", "joão")

	// Assert
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the already-open workday, got a new one")
	}
}

func TestOpen_RemoteFailureKeepsWorkdayUsable(t *testing.T) {
	// Arrange
	ctx := context.Background()
	remote := &mocks.MockWorkdayService{
		SyncWorkdayFunc: func(ctx context.Context, creds ports.Credentials, w *domain.Workday) (string, error) {
			return "", errors.New("dial tcp: connection refused")
		},
	}
	svc := NewService(newMemWorkdays(), mocks.NewInMemoryTicketRepository(), remote, time.Second, time.UTC, 4, newTestLogger())

	// Act
	w, err := svc.Open(ctx, ports.Credentials{}, "loc-1", "maria")

	// Assert: offline open succeeds without a remote id
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if w.RemoteID != "" {
		t.Errorf("expected no remote id, got %q", w.RemoteID)
	}
	if _, err := svc.Current(ctx, "loc-1"); err != nil {
		t.Errorf("expected an open workday, got %v", err)
	}
}

func TestClose_TotalsTheBusinessDate(t *testing.T) {
	// Arrange
	ctx := context.Background()
	tickets := mocks.NewInMemoryTicketRepository()
	svc := NewService(newMemWorkdays(), tickets, &mocks.MockWorkdayService{}, time.Second, time.UTC, 0, newTestLogger())
	w, err := svc.Open(ctx, ports.Credentials{}, "loc-1", "maria")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	for i, total := range []int64{900, 2500, 1600} {
		tickets.Save(ctx, &domain.Ticket{
			ID:           string(rune('a' + i)),
			LocationID:   "loc-1",
			BusinessDate: w.BusinessDate,
			TotalCents:   total,
			SyncStatus:   domain.SyncStatusPending,
		})
	}

	// Act
	closed, err := svc.Close(ctx, ports.Credentials{}, "loc-1")

	// Assert
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Open() {
		t.Error("expected workday to be closed")
	}
	if closed.GrossCents != 5000 {
		t.Errorf("expected gross 5000, got %d", closed.GrossCents)
	}
	if closed.TicketCount != 3 {
		t.Errorf("expected 3 tickets, got %d", closed.TicketCount)
	}
	if _, err := svc.Current(ctx, "loc-1"); !errors.Is(err, ErrNoOpenWorkday) {
		t.Errorf("expected ErrNoOpenWorkday after close, got %v", err)
	}
}

func TestClose_WithoutOpenWorkday(t *testing.T) {
	svc := NewService(newMemWorkdays(), mocks.NewInMemoryTicketRepository(), &mocks.MockWorkdayService{}, time.Second, time.UTC, 4, newTestLogger())

	_, err := svc.Close(context.Background(), ports.Credentials{}, "loc-1")
	if !errors.Is(err, ErrNoOpenWorkday) {
		t.Errorf("expected ErrNoOpenWorkday, got %v", err)
	}
}

func TestBusinessDate_RolloverKeepsShiftOnOneDate(t *testing.T) {
	loc := time.UTC

	// 1:30 AM with a 4 AM rollover still belongs to the previous day
	beforeRollover := time.Date(2026, 8, 28, 1, 30, 0, 0, loc)
	if got := domain.BusinessDate(beforeRollover, loc, 4); got != "2026-08-27" {
		t.Errorf("expected 2026-08-27, got %s", got)
	}

	// 4:00 AM starts the new date
	atRollover := time.Date(2026, 8, 28, 4, 0, 0, 0, loc)
	if got := domain.BusinessDate(atRollover, loc, 4); got != "2026-08-28" {
		t.Errorf("expected 2026-08-28, got %s", got)
	}

	// rollover 0 means calendar dates
	if got := domain.BusinessDate(beforeRollover, loc, 0); got != "2026-08-28" {
		t.Errorf("expected 2026-08-28, got %s", got)
	}
}
