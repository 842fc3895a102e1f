package handler

import (
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/swaggo/swag"
)

// SwaggerUI serves the API docs with host and scheme taken from the request.
// The spec is shared, so it is rewritten and rendered under one lock.
func SwaggerUI(info *swag.Spec) fiber.Handler {
	var mu sync.Mutex
	ui := swagger.HandlerDefault

	return func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get(fiber.HeaderXForwardedProto); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
		// fasthttp reuses header buffers once the handler returns.
		host := strings.Clone(c.Get(fiber.HeaderHost))
		scheme = strings.Clone(scheme)

		mu.Lock()
		defer mu.Unlock()
		info.Host = host
		info.Schemes = []string{scheme}
		return ui(c)
	}
}
