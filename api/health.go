package api

import (
	"github.com/gofiber/fiber/v2"

	"messenger/observability"
)

type healthHandler struct {
	stats *observability.DeliveryStats
}

func newHealthHandler(stats *observability.DeliveryStats) *healthHandler {
	return &healthHandler{stats: stats}
}

func (h *healthHandler) snapshot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"stats":  h.stats.Snapshot(),
	})
}
