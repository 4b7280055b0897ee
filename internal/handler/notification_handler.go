package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"clinic-notify/internal/domain"
	"clinic-notify/internal/middleware"
	"clinic-notify/internal/service/notify"
)

type NotificationHandler struct {
	notifService notify.Service
}

func NewNotificationHandler(notifService notify.Service) *NotificationHandler {
	return &NotificationHandler{notifService: notifService}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)

	filter := domain.NotificationFilter{}
	if v := c.Query("read"); v != "" {
		read := v == "true"
		filter.Read = &read
	}
	if v := c.Query("priority"); v != "" {
		priority := domain.Priority(v)
		if !priority.Valid() {
			return middleware.BadRequest("Unknown priority filter")
		}
		filter.Priority = &priority
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset", "0"))

	payloads, total, err := h.notifService.List(c.Context(), actor, filter)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":   payloads,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	actor := middleware.GetActor(c)

	count, err := h.notifService.UnreadCount(c.Context(), actor)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count": count,
	})
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	notifID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.BadRequest("Invalid notification ID")
	}

	if err := h.notifService.MarkRead(c.Context(), middleware.GetActor(c), notifID); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}

func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	if err := h.notifService.MarkAllRead(c.Context(), middleware.GetActor(c)); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}

func (h *NotificationHandler) Acknowledge(c *fiber.Ctx) error {
	notifID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.BadRequest("Invalid notification ID")
	}

	if err := h.notifService.Acknowledge(c.Context(), middleware.GetActor(c), notifID); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}
