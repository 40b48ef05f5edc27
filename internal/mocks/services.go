package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
)

// MockOrderService is a mock implementation of OrderService
type MockOrderService struct {
	CreateTicketFunc func(ctx context.Context, creds ports.Credentials, t *domain.Ticket) (*ports.CreateTicketResult, error)
	SendReceiptFunc  func(ctx context.Context, creds ports.Credentials, recipient string, tickets []domain.Ticket) error
}

func (m *MockOrderService) CreateTicket(ctx context.Context, creds ports.Credentials, t *domain.Ticket) (*ports.CreateTicketResult, error) {
	if m.CreateTicketFunc != nil {
		return m.CreateTicketFunc(ctx, creds, t)
	}
	return &ports.CreateTicketResult{TicketID: "remote-" + t.ID}, nil
}

func (m *MockOrderService) SendReceipt(ctx context.Context, creds ports.Credentials, recipient string, tickets []domain.Ticket) error {
	if m.SendReceiptFunc != nil {
		return m.SendReceiptFunc(ctx, creds, recipient, tickets)
	}
	return nil
}

// MockWorkdayService is a mock implementation of WorkdayService
type MockWorkdayService struct {
	SyncWorkdayFunc func(ctx context.Context, creds ports.Credentials, w *domain.Workday) (string, error)
	EndWorkdayFunc  func(ctx context.Context, creds ports.Credentials, w *domain.Workday) error
}

func (m *MockWorkdayService) SyncWorkday(ctx context.Context, creds ports.Credentials, w *domain.Workday) (string, error) {
	if m.SyncWorkdayFunc != nil {
		return m.SyncWorkdayFunc(ctx, creds, w)
	}
	return "remote-" + w.ID, nil
}

func (m *MockWorkdayService) EndWorkday(ctx context.Context, creds ports.Credentials, w *domain.Workday) error {
	if m.EndWorkdayFunc != nil {
		return m.EndWorkdayFunc(ctx, creds, w)
	}
	return nil
}

// MockCardTerminal is a mock implementation of CardTerminal
type MockCardTerminal struct {
	InitiateFunc func(ctx context.Context, cfg ports.TerminalConfig, amountCents int64, currency string, metadata map[string]string) (*domain.TerminalTransaction, error)
	StatusFunc   func(ctx context.Context, cfg ports.TerminalConfig, transactionID string) (*domain.TerminalTransaction, error)
	CancelFunc   func(ctx context.Context, cfg ports.TerminalConfig, transactionID string) error
}

func (m *MockCardTerminal) Initiate(ctx context.Context, cfg ports.TerminalConfig, amountCents int64, currency string, metadata map[string]string) (*domain.TerminalTransaction, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, cfg, amountCents, currency, metadata)
	}
	return &domain.TerminalTransaction{TransactionID: "tx-1", Status: domain.TerminalStatusInitiated, AmountCents: amountCents}, nil
}

func (m *MockCardTerminal) Status(ctx context.Context, cfg ports.TerminalConfig, transactionID string) (*domain.TerminalTransaction, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, cfg, transactionID)
	}
	return &domain.TerminalTransaction{TransactionID: transactionID, Status: domain.TerminalStatusApproved}, nil
}

func (m *MockCardTerminal) Cancel(ctx context.Context, cfg ports.TerminalConfig, transactionID string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, cfg, transactionID)
	}
	return nil
}

// MockBroadcaster records broadcast payloads for inspection.
type MockBroadcaster struct {
	mu     sync.Mutex
	Orders []domain.OrderCreatedPayload
	Calls  []domain.QueueCallPayload
}

func (m *MockBroadcaster) BroadcastOrder(payload domain.OrderCreatedPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = append(m.Orders, payload)
}

func (m *MockBroadcaster) BroadcastToQueue(payload domain.QueueCallPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, payload)
}
