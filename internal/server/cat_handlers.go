package server

import (
	"catnip/internal/community"
	"catnip/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetCats handles GET /api/cats, listing the caller's companions.
func (s *Server) GetCats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)

	cats, err := s.catRepo.ListByUser(ctx, profile.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cats)
}

// AddCat handles POST /api/cats.
func (s *Server) AddCat(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)

	var input community.CatInput
	if err := c.BodyParser(&input); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}
	if err := input.Validate(); err != nil {
		return respondError(c, err)
	}

	cat := &models.Cat{
		UserID:      profile.ID,
		Name:        input.Name,
		Emoji:       input.Emoji,
		Type:        input.Type,
		Description: input.Description,
		Specialty:   input.Specialty,
	}
	created, err := s.catRepo.Add(ctx, cat)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateCat handles PUT /api/cats/:id.
func (s *Server) UpdateCat(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)
	id := c.Params("id")

	var update models.CatUpdate
	if err := c.BodyParser(&update); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}

	cat, err := s.catRepo.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if cat == nil {
		return respondError(c, models.NewNotFoundError("cat", id))
	}
	if cat.UserID != profile.ID {
		return respondError(c, models.NewUnauthorizedError("you can only modify your own cats"))
	}

	updated, err := s.catRepo.Update(ctx, id, update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}
