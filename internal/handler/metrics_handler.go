package handler

import (
	"github.com/gofiber/fiber/v2"

	"clinic-notify/internal/service/notify"
)

type MetricsHandler struct {
	notifService notify.Service
}

func NewMetricsHandler(notifService notify.Service) *MetricsHandler {
	return &MetricsHandler{notifService: notifService}
}

// Get returns the in-memory snapshot next to the 24-hour log-derived
// aggregate so operators can spot drift between the two.
func (h *MetricsHandler) Get(c *fiber.Ctx) error {
	report, err := h.notifService.Metrics(c.Context())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(report)
}
