package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a default Cache-Control on GET responses that did
// not set one. Incident state changes with every gesture, so it is never
// cached by shared caches.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}

		path := c.Path()
		var value string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			value = "public, max-age=10"
		case path == "/metrics":
			value = "no-cache"
		case strings.HasPrefix(path, "/docs"):
			value = "public, max-age=3600"
		case strings.HasPrefix(path, "/v1/incidents/"):
			value = "private, no-cache"
		}
		if value != "" {
			c.Set(fiber.HeaderCacheControl, value)
		}
		return err
	}
}
