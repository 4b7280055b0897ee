package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"clinic-notify/internal/domain"
	"clinic-notify/internal/middleware"
	"clinic-notify/internal/service/notify"
)

// DispatchHandler is the HTTP face domain services and operators use to
// originate notifications.
type DispatchHandler struct {
	notifService notify.Service
}

func NewDispatchHandler(notifService notify.Service) *DispatchHandler {
	return &DispatchHandler{notifService: notifService}
}

func (h *DispatchHandler) Send(c *fiber.Ctx) error {
	var req domain.SendRequest
	if err := c.BodyParser(&req); err != nil {
		return middleware.BadRequest("Invalid request body")
	}

	result, err := h.notifService.Send(c.Context(), middleware.GetActor(c), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

type notifyRoleRequest struct {
	Role     string             `json:"role"`
	BranchID *uuid.UUID         `json:"branch_id,omitempty"`
	Request  domain.SendRequest `json:"request"`
}

func (h *DispatchHandler) NotifyRole(c *fiber.Ctx) error {
	var body notifyRoleRequest
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest("Invalid request body")
	}

	sent, err := h.notifService.NotifyRole(c.Context(), middleware.GetActor(c), body.Role, body.BranchID, body.Request)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"sent": sent,
	})
}

type notifyBranchRequest struct {
	BranchID uuid.UUID          `json:"branch_id"`
	Request  domain.SendRequest `json:"request"`
}

func (h *DispatchHandler) NotifyBranch(c *fiber.Ctx) error {
	var body notifyBranchRequest
	if err := c.BodyParser(&body); err != nil {
		return middleware.BadRequest("Invalid request body")
	}

	sent, err := h.notifService.NotifyBranch(c.Context(), middleware.GetActor(c), body.BranchID, body.Request)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"sent": sent,
	})
}
