package middleware

import (
	"time"

	"catnip/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// StructuredLogger logs every request through the global slog logger.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.Locals("requestid"),
		}
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}

		logger := observability.GlobalLogger
		switch {
		case status >= 500:
			logger.ErrorContext(c.UserContext(), "request", attrs...)
		case status >= 400:
			logger.WarnContext(c.UserContext(), "request", attrs...)
		default:
			logger.InfoContext(c.UserContext(), "request", attrs...)
		}
		return err
	}
}
