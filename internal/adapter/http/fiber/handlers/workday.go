package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/ports"
	"github.com/seu-repo/pdv-core/internal/service/workday"
)

type WorkdayHandler struct {
	workdays   *workday.Service
	creds      ports.Credentials
	locationID string
	log        *zap.Logger
}

func NewWorkdayHandler(workdays *workday.Service, creds ports.Credentials, locationID string, log *zap.Logger) *WorkdayHandler {
	return &WorkdayHandler{
		workdays:   workdays,
		creds:      creds,
		locationID: locationID,
		log:        log,
	}
}

type OpenWorkdayRequest struct {
	User string `json:"user"`
}

func (h *WorkdayHandler) Open(c *fiber.Ctx) error {
	var req OpenWorkdayRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if req.User == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user is required"})
	}

	w, err := h.workdays.Open(c.Context(), h.creds, h.locationID, req.User)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(w)
}

func (h *WorkdayHandler) Current(c *fiber.Ctx) error {
	w, err := h.workdays.Current(c.Context(), h.locationID)
	if err != nil {
		if errors.Is(err, workday.ErrNoOpenWorkday) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(w)
}

func (h *WorkdayHandler) Close(c *fiber.Ctx) error {
	w, err := h.workdays.Close(c.Context(), h.creds, h.locationID)
	if err != nil {
		if errors.Is(err, workday.ErrNoOpenWorkday) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(w)
}
