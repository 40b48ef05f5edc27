package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
	"github.com/seu-repo/pdv-core/internal/service/payment"
	"github.com/seu-repo/pdv-core/internal/service/syncer"
	"github.com/seu-repo/pdv-core/internal/service/ticket"
)

// TicketHandler is the narrow surface the register UI calls to complete
// and inspect sales.
type TicketHandler struct {
	tickets     *ticket.Service
	engine      *syncer.Engine
	orders      ports.OrderService
	broadcaster ports.OrderBroadcaster
	creds       ports.Credentials
	processor   domain.PaymentProcessor
	locationID  string
	businessDay func() string
	log         *zap.Logger
}

func NewTicketHandler(
	tickets *ticket.Service,
	engine *syncer.Engine,
	orders ports.OrderService,
	broadcaster ports.OrderBroadcaster,
	creds ports.Credentials,
	processor domain.PaymentProcessor,
	locationID string,
	businessDay func() string,
	log *zap.Logger,
) *TicketHandler {
	return &TicketHandler{
		tickets:     tickets,
		engine:      engine,
		orders:      orders,
		broadcaster: broadcaster,
		creds:       creds,
		processor:   processor,
		locationID:  locationID,
		businessDay: businessDay,
		log:         log,
	}
}

type CheckoutPayment struct {
	MethodID    string `json:"method_id"`
	MethodName  string `json:"method_name"`
	AmountCents int64  `json:"amount_cents"`
	Card        bool   `json:"card"`
}

type CheckoutRequest struct {
	Items         []domain.TicketItem    `json:"items"`
	Charges       []domain.AppliedCharge `json:"charges"`
	SubtotalCents int64                  `json:"subtotal_cents"`
	TotalCents    int64                  `json:"total_cents"`
	Payments      []CheckoutPayment      `json:"payments"`
}

// Checkout finalizes a fully tendered sale: the ticket is durable locally
// before any network is involved, the kitchen broadcast is best-effort,
// and the first sync attempt runs in the background.
func (h *TicketHandler) Checkout(c *fiber.Ctx) error {
	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	co := payment.NewCheckout(req.TotalCents)
	for _, p := range req.Payments {
		var err error
		if p.Card {
			_, err = co.AddCardTender(p.MethodID, p.MethodName, p.AmountCents, h.processor)
		} else {
			_, err = co.AddTender(p.MethodID, p.MethodName, p.AmountCents)
		}
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	t := &domain.Ticket{
		LocationID:    h.locationID,
		BusinessDate:  h.businessDay(),
		Items:         req.Items,
		Charges:       req.Charges,
		SubtotalCents: req.SubtotalCents,
		TotalCents:    req.TotalCents,
	}
	if err := co.Finalize(t); err != nil {
		if errors.Is(err, payment.ErrInsufficientTender) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	id, err := h.tickets.CreateLocal(c.Context(), t)
	if err != nil {
		if errors.Is(err, ticket.ErrEmptyTicket) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("checkout persistence failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.broadcaster.BroadcastOrder(domain.OrderCreatedPayload{
		TicketID:     t.ID,
		TokenNumber:  t.TokenNumber,
		LocationID:   t.LocationID,
		BusinessDate: t.BusinessDate,
		Items:        t.Items,
		CreatedAt:    t.CreatedAt,
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := h.engine.SyncPendingTickets(ctx, h.creds); err != nil {
			h.log.Warn("post-checkout sync pass errored", zap.Error(err))
		}
	}()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ticket_id":    id,
		"token_number": t.TokenNumber,
		"sync_status":  t.SyncStatus,
	})
}

func (h *TicketHandler) List(c *fiber.Ctx) error {
	tickets, err := h.tickets.GetAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(tickets)
}

func (h *TicketHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tickets.SyncStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(stats)
}

// Sync runs one manual sync pass and reports partial results.
func (h *TicketHandler) Sync(c *fiber.Ctx) error {
	report, err := h.engine.SyncPendingTickets(c.Context(), h.creds)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

type ReceiptRequest struct {
	Recipient string   `json:"recipient"`
	TicketIDs []string `json:"ticket_ids"`
}

func (h *TicketHandler) Receipt(c *fiber.Ctx) error {
	var req ReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if req.Recipient == "" || len(req.TicketIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recipient and ticket_ids are required"})
	}

	var tickets []domain.Ticket
	for _, id := range req.TicketIDs {
		t, err := h.tickets.Get(c.Context(), id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if t == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "ticket not found: " + id})
		}
		tickets = append(tickets, *t)
	}

	if err := h.orders.SendReceipt(c.Context(), h.creds, req.Recipient, tickets); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"sent": len(tickets)})
}
