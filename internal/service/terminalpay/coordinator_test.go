package terminalpay

import (
	"context"
	"errors"
	"sync/atomic"
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

func testCfg() ports.TerminalConfig {
	return ports.TerminalConfig{
		BaseURL:      "http://terminal.local",
		TerminalID:   "term-1",
		PollInterval: 5 * time.Millisecond,
	}
}

func TestPollStatus_ProcessingThenApproved(t *testing.T) {
	// Arrange: the device reports PROCESSING twice before approving
	ctx := context.Background()
	var polls int64
	device := &mocks.MockCardTerminal{
		StatusFunc: func(ctx context.Context, cfg ports.TerminalConfig, txID string) (*domain.TerminalTransaction, error) {
			n := atomic.AddInt64(&polls, 1)
			if n <= 2 {
				return &domain.TerminalTransaction{TransactionID: txID, Status: domain.TerminalStatusProcessing}, nil
			}
			return &domain.TerminalTransaction{TransactionID: txID, Status: domain.TerminalStatusApproved, AmountCents: 5000}, nil
		},
	}
	coord := NewCoordinator(device, newTestLogger())
	tx, err := coord.Initiate(ctx, testCfg(), "ticket-1", 5000, "BRL", nil)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	var updates []domain.TerminalStatus

	// Act
	final, err := coord.PollStatus(ctx, testCfg(), tx.TransactionID, func(s domain.TerminalStatus) {
		updates = append(updates, s)
	})

	// Assert
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if final.Status != domain.TerminalStatusApproved {
		t.Errorf("expected APPROVED, got %s", final.Status)
	}
	if len(updates) != 2 {
		t.Errorf("expected 2 intermediate updates, got %d (%v)", len(updates), updates)
	}
	for _, s := range updates {
		if s != domain.TerminalStatusProcessing {
			t.Errorf("expected PROCESSING update, got %s", s)
		}
	}
	// slot is released so the ticket can be charged again
	if _, busy := coord.Active("ticket-1"); busy {
		t.Error("expected ticket slot to be released after approval")
	}
}

func TestPollStatus_DeadlineYieldsErrorStatusNotError(t *testing.T) {
	// Arrange: the device never leaves PROCESSING
	device := &mocks.MockCardTerminal{
		StatusFunc: func(ctx context.Context, cfg ports.TerminalConfig, txID string) (*domain.TerminalTransaction, error) {
			return &domain.TerminalTransaction{TransactionID: txID, Status: domain.TerminalStatusProcessing}, nil
		},
	}
	coord := NewCoordinator(device, newTestLogger())
	tx, err := coord.Initiate(context.Background(), testCfg(), "ticket-1", 5000, "BRL", nil)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	// Act
	final, err := coord.PollStatus(ctx, testCfg(), tx.TransactionID, nil)

	// Assert: a timeout is a resolved outcome, not an error value
	if err != nil {
		t.Fatalf("expected no error on deadline, got %v", err)
	}
	if final.Status != domain.TerminalStatusError {
		t.Errorf("expected ERROR status, got %s", final.Status)
	}
	if final.ProcessorResponse != "status poll timed out" {
		t.Errorf("unexpected processor response %q", final.ProcessorResponse)
	}
}

func TestInitiate_SecondPaymentForSameTicketRejected(t *testing.T) {
	// Arrange
	ctx := context.Background()
	device := &mocks.MockCardTerminal{
		StatusFunc: func(ctx context.Context, cfg ports.TerminalConfig, txID string) (*domain.TerminalTransaction, error) {
			return &domain.TerminalTransaction{TransactionID: txID, Status: domain.TerminalStatusProcessing}, nil
		},
	}
	coord := NewCoordinator(device, newTestLogger())
	if _, err := coord.Initiate(ctx, testCfg(), "ticket-1", 5000, "BRL", nil); err != nil {
		t.Fatalf("first initiate failed: %v", err)
	}

	// Act
	_, err := coord.Initiate(ctx, testCfg(), "ticket-1", 5000, "BRL", nil)

	// Assert
	if !errors.Is(err, ErrPaymentInFlight) {
		t.Errorf("expected ErrPaymentInFlight, got %v", err)
	}
	// a different ticket is unaffected
	if _, err := coord.Initiate(ctx, testCfg(), "ticket-2", 900, "BRL", nil); err != nil {
		t.Errorf("other ticket should initiate, got %v", err)
	}
}

func TestInitiate_DeviceFailureReleasesSlot(t *testing.T) {
	// Arrange
	ctx := context.Background()
	failing := true
	device := &mocks.MockCardTerminal{
		InitiateFunc: func(ctx context.Context, cfg ports.TerminalConfig, amountCents int64, currency string, metadata map[string]string) (*domain.TerminalTransaction, error) {
			if failing {
				return nil, errors.New("terminal unreachable")
			}
			return &domain.TerminalTransaction{TransactionID: "tx-2", Status: domain.TerminalStatusInitiated}, nil
		},
	}
	coord := NewCoordinator(device, newTestLogger())

	// Act
	_, err := coord.Initiate(ctx, testCfg(), "ticket-1", 5000, "BRL", nil)

	// Assert
	if err == nil {
		t.Fatal("expected an error")
	}
	failing = false
	if _, err := coord.Initiate(ctx, testCfg(), "ticket-1", 5000, "BRL", nil); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
}

func TestCancel_RacingApprovalWins(t *testing.T) {
	// Arrange: cancel is requested but the device approves first
	ctx := context.Background()
	cancelled := int64(0)
	device := &mocks.MockCardTerminal{
		CancelFunc: func(ctx context.Context, cfg ports.TerminalConfig, txID string) error {
			atomic.StoreInt64(&cancelled, 1)
			return nil
		},
		StatusFunc: func(ctx context.Context, cfg ports.TerminalConfig, txID string) (*domain.TerminalTransaction, error) {
			// The terminal had already captured the card
			return &domain.TerminalTransaction{TransactionID: txID, Status: domain.TerminalStatusApproved}, nil
		},
	}
	coord := NewCoordinator(device, newTestLogger())
	tx, err := coord.Initiate(ctx, testCfg(), "ticket-1", 5000, "BRL", nil)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	// Act
	if err := coord.Cancel(ctx, testCfg(), tx.TransactionID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	final, err := coord.PollStatus(ctx, testCfg(), tx.TransactionID, nil)

	// Assert
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if final.Status != domain.TerminalStatusApproved {
		t.Errorf("expected the approval to win, got %s", final.Status)
	}
	if atomic.LoadInt64(&cancelled) != 1 {
		t.Error("expected the cancel to reach the device")
	}
}

func TestPollStatus_TransientStatusErrorsAreRetried(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var polls int64
	device := &mocks.MockCardTerminal{
		StatusFunc: func(ctx context.Context, cfg ports.TerminalConfig, txID string) (*domain.TerminalTransaction, error) {
			if atomic.AddInt64(&polls, 1) == 1 {
				return nil, errors.New("read timeout")
			}
			return &domain.TerminalTransaction{TransactionID: txID, Status: domain.TerminalStatusApproved}, nil
		},
	}
	coord := NewCoordinator(device, newTestLogger())
	tx, err := coord.Initiate(ctx, testCfg(), "ticket-1", 5000, "BRL", nil)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	// Act
	final, err := coord.PollStatus(ctx, testCfg(), tx.TransactionID, nil)

	// Assert
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if final.Status != domain.TerminalStatusApproved {
		t.Errorf("expected APPROVED after transient error, got %s", final.Status)
	}
}

func TestPollStatus_UnknownTransaction(t *testing.T) {
	coord := NewCoordinator(&mocks.MockCardTerminal{}, newTestLogger())

	_, err := coord.PollStatus(context.Background(), testCfg(), "missing", nil)
	if !errors.Is(err, ErrUnknownTransaction) {
		t.Errorf("expected ErrUnknownTransaction, got %v", err)
	}
}
