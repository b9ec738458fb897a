package server

import (
	"catnip/internal/community"
	"catnip/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetEmotions handles GET /api/emotions, listing the caller's journal newest
// first.
func (s *Server) GetEmotions(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)

	records, err := s.emotionRepo.ListByUser(ctx, profile.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(records)
}

// AddEmotion handles POST /api/emotions. Journaling grants companion
// experience afterwards; the entry survives a failed grant.
func (s *Server) AddEmotion(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)

	var input community.EmotionInput
	if err := c.BodyParser(&input); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}
	if err := input.Validate(); err != nil {
		return respondError(c, err)
	}

	record := &models.EmotionRecord{
		UserID:     profile.ID,
		MovieTitle: input.MovieTitle,
		Emotion:    input.Emotion,
		Emoji:      input.Emoji,
		Text:       input.Text,
		Intensity:  input.Intensity,
		Tags:       input.Tags,
	}
	created, err := s.emotionRepo.Create(ctx, record)
	if err != nil {
		return respondError(c, err)
	}

	s.grantExperience(c, profile.ID, models.PostTypeEmotion)
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateEmotion handles PUT /api/emotions/:id.
func (s *Server) UpdateEmotion(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)
	id := c.Params("id")

	var update models.EmotionUpdate
	if err := c.BodyParser(&update); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}

	record, err := s.emotionRepo.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if record == nil {
		return respondError(c, models.NewNotFoundError("emotion record", id))
	}
	if record.UserID != profile.ID {
		return respondError(c, models.NewUnauthorizedError("you can only modify your own journal"))
	}

	updated, err := s.emotionRepo.Update(ctx, id, update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// DeleteEmotion handles DELETE /api/emotions/:id.
func (s *Server) DeleteEmotion(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)
	id := c.Params("id")

	record, err := s.emotionRepo.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if record == nil {
		return respondError(c, models.NewNotFoundError("emotion record", id))
	}
	if record.UserID != profile.ID {
		return respondError(c, models.NewUnauthorizedError("you can only modify your own journal"))
	}

	if err := s.emotionRepo.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
