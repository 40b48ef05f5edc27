package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
	"github.com/seu-repo/pdv-core/internal/service/terminalpay"
)

// PaymentHandler drives the card terminal on behalf of the register UI.
// The charge call blocks until the device reaches a terminal status or the
// poll window expires.
type PaymentHandler struct {
	coordinator *terminalpay.Coordinator
	cfg         ports.TerminalConfig
	pollTimeout time.Duration
	currency    string
	log         *zap.Logger
}

func NewPaymentHandler(coordinator *terminalpay.Coordinator, cfg ports.TerminalConfig, pollTimeout time.Duration, currency string, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		coordinator: coordinator,
		cfg:         cfg,
		pollTimeout: pollTimeout,
		currency:    currency,
		log:         log,
	}
}

type ChargeRequest struct {
	TicketID    string            `json:"ticket_id"`
	AmountCents int64             `json:"amount_cents"`
	Metadata    map[string]string `json:"metadata"`
}

func (h *PaymentHandler) Charge(c *fiber.Ctx) error {
	var req ChargeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if req.TicketID == "" || req.AmountCents <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ticket_id and a positive amount_cents are required"})
	}

	tx, err := h.coordinator.Initiate(c.Context(), h.cfg, req.TicketID, req.AmountCents, h.currency, req.Metadata)
	if err != nil {
		if errors.Is(err, terminalpay.ErrPaymentInFlight) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	// Detach from the request context so a dropped HTTP connection does
	// not abandon a transaction the device may still approve.
	pollCtx, cancel := context.WithTimeout(context.Background(), h.pollTimeout)
	defer cancel()

	final, err := h.coordinator.PollStatus(pollCtx, h.cfg, tx.TransactionID, func(status domain.TerminalStatus) {
		h.log.Debug("Terminal payment status", zap.String("transaction_id", tx.TransactionID), zap.String("status", string(status)))
	})
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(final)
}

func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	txID := c.Params("id")
	if txID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "transaction id is required"})
	}
	if err := h.coordinator.Cancel(c.Context(), h.cfg, txID); err != nil {
		if errors.Is(err, terminalpay.ErrUnknownTransaction) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusAccepted)
}
