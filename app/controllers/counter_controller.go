package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/eventkasse/eventkasse/internal/pkg/metrics/counter"
)

// CounterController exposes today's pipeline throughput counters for ops.
type CounterController struct{}

func NewCounterController() *CounterController {
	return &CounterController{}
}

func (cc *CounterController) HandleSnapshot(c *fiber.Ctx) error {
	snapshot, err := counter.Snapshot()
	if err != nil {
		log.Errorf("[Ops] counter snapshot failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(snapshot)
}
