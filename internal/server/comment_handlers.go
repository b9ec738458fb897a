package server

import (
	"catnip/internal/community"
	"catnip/internal/models"
	"catnip/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments, returning the thread as a
// reply forest.
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.UserContext()

	flat, err := s.commentRepo.ListByPost(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(repository.BuildForest(flat))
}

// AddComment handles POST /api/posts/:id/comments.
func (s *Server) AddComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)

	var input community.CommentInput
	if err := c.BodyParser(&input); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}
	input.PostID = c.Params("id")
	if err := input.Validate(); err != nil {
		return respondError(c, err)
	}

	comment := &models.Comment{
		PostID:          input.PostID,
		ParentCommentID: input.ParentCommentID,
		AuthorID:        profile.ID,
		AuthorName:      profile.Name,
		AuthorAvatar:    profile.Avatar,
		Content:         input.Content,
	}
	created, err := s.commentRepo.Add(ctx, comment)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateComment handles PUT /api/comments/:id.
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)
	id := c.Params("id")

	var update models.CommentUpdate
	if err := c.BodyParser(&update); err != nil {
		return respondError(c, models.NewValidationError("invalid request body"))
	}

	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if comment == nil {
		return respondError(c, models.NewNotFoundError("comment", id))
	}
	if comment.AuthorID != profile.ID {
		return respondError(c, models.NewUnauthorizedError("you can only modify your own comments"))
	}

	updated, err := s.commentRepo.Update(ctx, id, update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// DeleteComment handles DELETE /api/comments/:id.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)
	id := c.Params("id")

	comment, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if comment == nil {
		return respondError(c, models.NewNotFoundError("comment", id))
	}
	if comment.AuthorID != profile.ID {
		return respondError(c, models.NewUnauthorizedError("you can only modify your own comments"))
	}

	if err := s.commentRepo.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleCommentLike handles POST /api/comments/:id/like.
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	ctx := c.UserContext()
	profile := currentProfile(c)

	outcome, err := s.commentRepo.ToggleLike(ctx, c.Params("id"), profile.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(outcome)
}
