package ports

import (
	"context"
	"time"

	"github.com/seu-repo/pdv-core/internal/domain"
)

// Credentials authenticates the terminal against the remote services. The
// token is an opaque bearer token issued at sign-in.
type Credentials struct {
	Domain string
	Token  string
}

// CreateTicketResult is the remote order service's answer to a ticket
// submission. Repeat submission of the same local id is a remote-side
// no-op returning the existing remote id.
type CreateTicketResult struct {
	TicketID string
	Offline  bool
}

// OrderService is the remote order API consumed by the sync engine.
type OrderService interface {
	CreateTicket(ctx context.Context, creds Credentials, t *domain.Ticket) (*CreateTicketResult, error)
	SendReceipt(ctx context.Context, creds Credentials, recipient string, tickets []domain.Ticket) error
}

// WorkdayService is the remote workday API.
type WorkdayService interface {
	SyncWorkday(ctx context.Context, creds Credentials, w *domain.Workday) (string, error)
	EndWorkday(ctx context.Context, creds Credentials, w *domain.Workday) error
}

// TerminalConfig points at one card terminal device.
type TerminalConfig struct {
	BaseURL        string
	APIKey         string
	TerminalID     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// CardTerminal is the vendor protocol of the external card device. Status
// is polled; the device may complete a transaction after a cancel request
// has been issued.
type CardTerminal interface {
	Initiate(ctx context.Context, cfg TerminalConfig, amountCents int64, currency string, metadata map[string]string) (*domain.TerminalTransaction, error)
	Status(ctx context.Context, cfg TerminalConfig, transactionID string) (*domain.TerminalTransaction, error)
	Cancel(ctx context.Context, cfg TerminalConfig, transactionID string) error
}

// Cache is a small read-through cache for derived values such as sync
// stats.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}

// OrderBroadcaster is the mesh surface the checkout flow talks to.
// Broadcasts are best-effort: with no listener of the target role they are
// a no-op and never fail the caller.
type OrderBroadcaster interface {
	BroadcastOrder(payload domain.OrderCreatedPayload)
	BroadcastToQueue(payload domain.QueueCallPayload)
}
