// Package http holds the Fiber handlers. Handlers only parse/validate input,
// call a service and map service errors to status codes.
package http

import (
	"errors"
	"log"

	"social-service/internal/auth"
	"social-service/internal/common"
	"social-service/internal/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// serviceError maps the service-layer sentinels to HTTP responses.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, common.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	case errors.Is(err, auth.ErrSessionRevoked):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session revoked"})
	case errors.Is(err, common.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, common.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, common.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ratelimit.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many attempts, try again later"})
	default:
		log.Printf("🔥 [HTTP] %s %s → %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong"})
	}
}

// getQueryInt reads a clamped integer query parameter.
func getQueryInt(c *fiber.Ctx, name string, def, min, max int) int {
	v := c.QueryInt(name, def)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
