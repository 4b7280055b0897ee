package handler

import (
	"github.com/gofiber/fiber/v2"

	"clinic-notify/internal/domain"
	"clinic-notify/internal/middleware"
	"clinic-notify/internal/service/notify"
)

type PreferenceHandler struct {
	notifService notify.Service
}

func NewPreferenceHandler(notifService notify.Service) *PreferenceHandler {
	return &PreferenceHandler{notifService: notifService}
}

func (h *PreferenceHandler) List(c *fiber.Ctx) error {
	prefs, err := h.notifService.ListPreferences(c.Context(), middleware.GetActor(c))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": prefs,
	})
}

func (h *PreferenceHandler) Update(c *fiber.Ctx) error {
	var input domain.PreferenceInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("Invalid request body")
	}

	pref, err := h.notifService.UpdatePreference(c.Context(), middleware.GetActor(c), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(pref)
}
