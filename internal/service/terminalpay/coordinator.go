package terminalpay

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/observability/telemetry"
	"github.com/seu-repo/pdv-core/internal/ports"
)

var (
	ErrPaymentInFlight    = errors.New("a terminal payment is already in progress for this ticket")
	ErrUnknownTransaction = errors.New("unknown terminal transaction")
)

// Coordinator drives the external card terminal through initiate, poll
// and resolve. At most one flow may be active per ticket; a decline,
// cancel or timeout releases the slot so the operator can retry.
type Coordinator struct {
	device ports.CardTerminal
	log    *zap.Logger

	mu       sync.Mutex
	byTicket map[string]string // ticket id -> transaction id
	byTx     map[string]string // transaction id -> ticket id
	started  map[string]time.Time
}

func NewCoordinator(device ports.CardTerminal, log *zap.Logger) *Coordinator {
	return &Coordinator{
		device:   device,
		log:      log,
		byTicket: make(map[string]string),
		byTx:     make(map[string]string),
		started:  make(map[string]time.Time),
	}
}

// Initiate starts a card transaction for the ticket. A second initiate
// while one is pending is rejected with ErrPaymentInFlight.
func (c *Coordinator) Initiate(ctx context.Context, cfg ports.TerminalConfig, ticketID string, amountCents int64, currency string, metadata map[string]string) (*domain.TerminalTransaction, error) {
	c.mu.Lock()
	if _, busy := c.byTicket[ticketID]; busy {
		c.mu.Unlock()
		return nil, ErrPaymentInFlight
	}
	// Reserve before the device call so a concurrent initiate is rejected
	// while this one is still talking to the terminal.
	c.byTicket[ticketID] = ""
	c.mu.Unlock()

	tx, err := c.device.Initiate(ctx, cfg, amountCents, currency, metadata)
	if err != nil {
		c.release(ticketID, "")
		return nil, err
	}

	c.mu.Lock()
	c.byTicket[ticketID] = tx.TransactionID
	c.byTx[tx.TransactionID] = ticketID
	c.started[tx.TransactionID] = time.Now()
	c.mu.Unlock()

	c.log.Info("terminal payment initiated",
		zap.String("ticket_id", ticketID),
		zap.String("transaction_id", tx.TransactionID),
		zap.Int64("amount_cents", amountCents),
	)
	return tx, nil
}

// PollStatus watches the transaction until a terminal status or the ctx
// deadline. Every observed intermediate status is reported through
// onUpdate. Deadline exhaustion yields a transaction with status ERROR,
// not an error value, so callers can offer retry.
func (c *Coordinator) PollStatus(ctx context.Context, cfg ports.TerminalConfig, transactionID string, onUpdate func(domain.TerminalStatus)) (*domain.TerminalTransaction, error) {
	c.mu.Lock()
	ticketID, known := c.byTx[transactionID]
	startedAt := c.started[transactionID]
	c.mu.Unlock()
	if !known {
		return nil, ErrUnknownTransaction
	}
	defer c.release(ticketID, transactionID)

	interval := cfg.PollInterval
	if interval == 0 {
		interval = 2 * time.Second
	}

	for {
		tx, err := c.device.Status(ctx, cfg, transactionID)
		if err != nil {
			// Transient device trouble; keep polling until the deadline.
			c.log.Warn("terminal status poll failed",
				zap.String("transaction_id", transactionID),
				zap.Error(err),
			)
		} else if tx.Status.IsTerminal() {
			c.observeResolved(tx, startedAt)
			return tx, nil
		} else if onUpdate != nil {
			onUpdate(tx.Status)
		}

		select {
		case <-ctx.Done():
			timedOut := &domain.TerminalTransaction{
				TransactionID:     transactionID,
				Status:            domain.TerminalStatusError,
				ProcessorResponse: "status poll timed out",
			}
			c.observeResolved(timedOut, startedAt)
			return timedOut, nil
		case <-time.After(interval):
		}
	}
}

// Cancel asks the device to abort. It is best-effort: the device may have
// already approved, in which case the next poll observes the approval and
// the approval wins.
func (c *Coordinator) Cancel(ctx context.Context, cfg ports.TerminalConfig, transactionID string) error {
	if err := c.device.Cancel(ctx, cfg, transactionID); err != nil {
		c.log.Warn("terminal cancel failed",
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Active reports the in-flight transaction id for a ticket, if any.
func (c *Coordinator) Active(ticketID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.byTicket[ticketID]
	return tx, ok
}

func (c *Coordinator) release(ticketID, transactionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byTicket, ticketID)
	if transactionID != "" {
		delete(c.byTx, transactionID)
		delete(c.started, transactionID)
	}
}

func (c *Coordinator) observeResolved(tx *domain.TerminalTransaction, startedAt time.Time) {
	telemetry.TerminalPayments.WithLabelValues(string(tx.Status)).Inc()
	if !startedAt.IsZero() {
		telemetry.TerminalPollDuration.Observe(time.Since(startedAt).Seconds())
	}
	c.log.Info("terminal payment resolved",
		zap.String("transaction_id", tx.TransactionID),
		zap.String("status", string(tx.Status)),
		zap.String("processor_response", tx.ProcessorResponse),
	)
}
