package server

import (
	"strings"

	"catnip/internal/community"
	"catnip/internal/models"
	"catnip/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts with optional filters:
// ?type=&status=&author=&tags=a,b&sortBy=&sortOrder=&limit=&cursor=
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()

	filters := models.PostFilters{
		Type:      c.Query("type"),
		Status:    c.Query("status"),
		AuthorID:  c.Query("author"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if tags := c.Query("tags"); tags != "" {
		filters.Tags = strings.Split(tags, ",")
	}

	page, err := s.postRepo.ListFiltered(ctx, filters, parseLimit(c, 20), c.Query("cursor"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"posts":      page.Posts,
		"nextCursor": page.NextCursor,
		"hasMore":    page.HasMore,
	})
}

// GetPost handles GET /api/posts/:id.
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if post == nil {
		return respondError(c, models.NewNotFoundError("post", id))
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)

	var input community.PostInput
	if err := c.BodyParser(&input); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}
	if err := input.Validate(); err != nil {
		return respondError(c, err)
	}

	if _, err := s.userRepo.Ensure(ctx, profile); err != nil {
		return respondError(c, err)
	}

	post := &models.Post{
		Type:             input.Type,
		AuthorID:         profile.ID,
		AuthorName:       profile.Name,
		AuthorAvatar:     profile.Avatar,
		Title:            input.Title,
		Content:          input.Content,
		MovieTitle:       input.MovieTitle,
		Rating:           input.Rating,
		Emotion:          input.Emotion,
		EmotionEmoji:     input.EmotionEmoji,
		EmotionIntensity: input.EmotionIntensity,
		Tags:             input.Tags,
	}
	created, err := s.postRepo.Create(ctx, post)
	if err != nil {
		return respondError(c, err)
	}

	s.grantExperience(c, profile.ID, created.Type)
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) grantExperience(c *fiber.Ctx, userID, postType string) {
	activity := map[string]string{
		models.PostTypeReview:     models.ActivityReview,
		models.PostTypeDiscussion: models.ActivityDiscussion,
		models.PostTypeEmotion:    models.ActivityEmotion,
	}[postType]
	if activity == "" {
		return
	}
	if err := s.catRepo.AddExperience(c.UserContext(), userID, activity); err != nil {
		observability.GlobalLogger.WarnContext(c.UserContext(), "experience grant failed",
			"userId", userID, "activity", activity, "error", err.Error())
	}
}

// UpdatePost handles PUT /api/posts/:id. Authorship is checked against a
// fresh read, never trusting the client.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)
	id := c.Params("id")

	var update models.PostUpdate
	if err := c.BodyParser(&update); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if post == nil {
		return respondError(c, models.NewNotFoundError("post", id))
	}
	if post.AuthorID != profile.ID {
		return respondError(c, models.NewUnauthorizedError("you can only modify your own posts"))
	}

	updated, err := s.postRepo.Update(ctx, id, update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// DeletePost handles DELETE /api/posts/:id.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)
	id := c.Params("id")

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if post == nil {
		return respondError(c, models.NewNotFoundError("post", id))
	}
	if post.AuthorID != profile.ID {
		return respondError(c, models.NewUnauthorizedError("you can only modify your own posts"))
	}

	if err := s.postRepo.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TogglePostLike handles POST /api/posts/:id/like and returns the
// authoritative outcome.
func (s *Server) TogglePostLike(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)

	outcome, err := s.postRepo.ToggleLike(ctx, c.Params("id"), profile.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(outcome)
}

// IncrementPostViews handles POST /api/posts/:id/views. Always succeeds; a
// lost bump is never the client's problem.
func (s *Server) IncrementPostViews(c *fiber.Ctx) error {
	s.postRepo.IncrementViews(c.UserContext(), c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}
