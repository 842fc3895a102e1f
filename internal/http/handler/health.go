package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"ragapi/internal/service"
)

// Health godoc
// @Summary      Process liveness
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /health [get]
func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"ok":      true,
			"service": "api",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// LivenessProbe is a body-less liveness probe for orchestrators.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Status godoc
// @Summary      Dependency health
// @Description  Probes the database, the RAG service and its LLM. 503 when any is down.
// @Tags         health
// @Produce      json
// @Success      200  {object}  model.HealthStatus
// @Failure      503  {object}  model.HealthStatus
// @Router       /status [get]
func Status(health service.HealthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := health.Check(c.UserContext())
		code := fiber.StatusOK
		if !st.OK {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(st)
	}
}
