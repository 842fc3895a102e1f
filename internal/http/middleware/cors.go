package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"ragapi/internal/access"
)

var (
	corsAllowMethods = strings.Join([]string{
		fiber.MethodGet, fiber.MethodPost, fiber.MethodDelete, fiber.MethodOptions,
	}, ", ")
	corsAllowHeaders  = "Content-Type, " + RequestIDHeader
	corsExposeHeaders = RequestIDHeader
)

// CORS annotates responses for origins admitted by policy. A denied origin is not
// rejected here: the request is served without CORS headers and the browser
// blocks the response. Preflight requests are answered with 204 either way.
func CORS(policy *access.Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		preflight := c.Method() == fiber.MethodOptions && c.Get(fiber.HeaderAccessControlRequestMethod) != ""

		if origin != "" {
			c.Vary(fiber.HeaderOrigin)
		}
		allowed := origin != "" && policy.IsAllowed(origin)
		if allowed {
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		}

		if !preflight {
			if allowed {
				c.Set(fiber.HeaderAccessControlExposeHeaders, corsExposeHeaders)
			}
			return c.Next()
		}

		if allowed {
			c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
			if h := c.Get(fiber.HeaderAccessControlRequestHeaders); h != "" {
				c.Set(fiber.HeaderAccessControlAllowHeaders, h)
			} else {
				c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
			}
			c.Set(fiber.HeaderAccessControlMaxAge, "600")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
