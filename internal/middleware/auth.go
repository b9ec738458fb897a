// Package middleware provides authentication and request logging middleware.
package middleware

import (
	"strings"

	"catnip/internal/identity"

	"github.com/gofiber/fiber/v2"
)

const profileKey = "profile"

// AuthRequired enforces a valid bearer token and stores the resolved profile
// on the request.
func AuthRequired(tokens *identity.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		profile, err := tokens.Parse(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		attach(c, profile)
		return c.Next()
	}
}

// OptionalAuth resolves the profile when a valid bearer token is present and
// lets the request through either way.
func OptionalAuth(tokens *identity.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString, ok := bearerToken(c); ok {
			if profile, err := tokens.Parse(tokenString); err == nil {
				attach(c, profile)
			}
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func attach(c *fiber.Ctx, profile identity.Profile) {
	c.Locals(profileKey, profile)
	c.SetUserContext(identity.WithProfile(c.UserContext(), profile))
}

// Profile extracts the authenticated profile attached by AuthRequired or
// OptionalAuth.
func Profile(c *fiber.Ctx) (identity.Profile, bool) {
	profile, ok := c.Locals(profileKey).(identity.Profile)
	return profile, ok
}
