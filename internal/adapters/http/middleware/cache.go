package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// PublicCache lets shared caches keep successful anonymous GET responses
// for maxAge. Responses to signed in callers are marked private.
func PublicCache(maxAge time.Duration) fiber.Handler {
	seconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(c *fiber.Ctx) error {
		// Process request first
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return err
		}
		if ExtractToken(c) != "" {
			c.Set(fiber.HeaderCacheControl, "private, max-age="+seconds)
		} else {
			c.Set(fiber.HeaderCacheControl, "public, max-age="+seconds)
		}
		return err
	}
}

// NoStore keeps session and account responses out of every cache
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Set(fiber.HeaderExpires, "0")
		return c.Next()
	}
}
