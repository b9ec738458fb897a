package server

import (
	"catnip/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondError maps application error codes onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case models.IsCode(err, "NOT_FOUND"):
		status = fiber.StatusNotFound
	case models.IsCode(err, "VALIDATION_ERROR"):
		status = fiber.StatusBadRequest
	case models.IsCode(err, "AUTH_REQUIRED"):
		status = fiber.StatusUnauthorized
	case models.IsCode(err, "UNAUTHORIZED"):
		status = fiber.StatusForbidden
	}
	return models.RespondWithError(c, status, err)
}

func parseLimit(c *fiber.Ctx, fallback int) int {
	limit := c.QueryInt("limit", fallback)
	if limit <= 0 || limit > 100 {
		return fallback
	}
	return limit
}
