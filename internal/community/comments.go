package community

import (
	"context"

	"catnip/internal/models"
	"catnip/internal/repository"
)

// CommentInput carries the fields a caller may set when commenting. An empty
// ParentCommentID makes a root comment.
type CommentInput struct {
	PostID          string `json:"postId"`
	ParentCommentID string `json:"parentCommentId,omitempty"`
	Content         string `json:"content"`
}

// Validate checks the input before any storage effect.
func (in CommentInput) Validate() error {
	if in.PostID == "" {
		return models.NewValidationError("postId is required")
	}
	if in.Content == "" {
		return models.NewValidationError("content is required")
	}
	return nil
}

// Comments returns the cached comment forest of the focused post.
func (s *Store) Comments() []*models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	forest := make([]*models.Comment, len(s.forest))
	copy(forest, s.forest)
	return forest
}

// FetchComments loads the post's thread and caches it as a reply forest.
func (s *Store) FetchComments(ctx context.Context, postID string) error {
	s.begin(FamilyComments)

	flat, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		s.fail(FamilyComments, err)
		return err
	}

	s.mu.Lock()
	s.forest = repository.BuildForest(flat)
	s.mu.Unlock()
	s.finish(FamilyComments)
	return nil
}

// AddComment posts a comment as the authenticated user and refreshes the
// cached thread. The cached post's comment counter moves with it.
func (s *Store) AddComment(ctx context.Context, input CommentInput) (*models.Comment, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:          input.PostID,
		ParentCommentID: input.ParentCommentID,
		AuthorID:        profile.ID,
		AuthorName:      profile.Name,
		AuthorAvatar:    profile.Avatar,
		Content:         input.Content,
	}
	created, err := s.comments.Add(ctx, comment)
	if err != nil {
		s.fail(FamilyComments, err)
		return nil, err
	}

	s.bumpCachedCommentCount(input.PostID, 1)
	if err := s.refreshThread(ctx, input.PostID); err != nil {
		return created, err
	}
	return created, nil
}

// UpdateComment edits the caller's own comment and refreshes the cached
// thread.
func (s *Store) UpdateComment(ctx context.Context, id string, update models.CommentUpdate) (*models.Comment, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, models.NewNotFoundError("comment", id)
	}
	if existing.AuthorID != profile.ID {
		return nil, models.NewUnauthorizedError("you can only modify your own comments")
	}

	updated, err := s.comments.Update(ctx, id, update)
	if err != nil {
		s.fail(FamilyComments, err)
		return nil, err
	}
	if err := s.refreshThread(ctx, existing.PostID); err != nil {
		return updated, err
	}
	return updated, nil
}

// DeleteComment removes the caller's own comment. Its replies stay and
// surface as roots on the next fetch.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	existing, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return models.NewNotFoundError("comment", id)
	}
	if existing.AuthorID != profile.ID {
		return models.NewUnauthorizedError("you can only modify your own comments")
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		s.fail(FamilyComments, err)
		return err
	}

	s.bumpCachedCommentCount(existing.PostID, -1)
	return s.refreshThread(ctx, existing.PostID)
}

// ToggleCommentLike flips the caller's like on the comment and reconciles the
// cached forest from the returned outcome.
func (s *Store) ToggleCommentLike(ctx context.Context, id string) (repository.LikeOutcome, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return repository.LikeOutcome{}, err
	}

	outcome, err := s.comments.ToggleLike(ctx, id, profile.ID)
	if err != nil {
		s.fail(FamilyComments, err)
		return repository.LikeOutcome{}, err
	}

	s.mu.Lock()
	s.forest = reconcileForest(s.forest, id, profile.ID, outcome)
	s.mu.Unlock()
	return outcome, nil
}

// refreshThread reloads the forest when the affected post is the focused one.
func (s *Store) refreshThread(ctx context.Context, postID string) error {
	s.mu.Lock()
	focused := s.currentPost != nil && s.currentPost.ID == postID
	s.mu.Unlock()
	if !focused {
		return nil
	}
	return s.FetchComments(ctx, postID)
}

func (s *Store) bumpCachedCommentCount(postID string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.postList {
		if p.ID == postID {
			bumped := *p
			bumped.Comments += delta
			s.postList[i] = &bumped
		}
	}
	if s.currentPost != nil && s.currentPost.ID == postID {
		bumped := *s.currentPost
		bumped.Comments += delta
		s.currentPost = &bumped
	}
}

// reconcileForest rewrites the node carrying id with the outcome, copying
// nodes along the path so cached snapshots are never mutated in place.
func reconcileForest(forest []*models.Comment, id, userID string, outcome repository.LikeOutcome) []*models.Comment {
	out := make([]*models.Comment, len(forest))
	for i, node := range forest {
		if node.ID == id {
			updated := *node
			updated.Likes = outcome.Likes
			updated.LikedBy = reconcileMembership(node.LikedBy, userID, outcome.Liked)
			out[i] = &updated
			continue
		}
		if len(node.Replies) > 0 {
			updated := *node
			updated.Replies = reconcileForest(node.Replies, id, userID, outcome)
			out[i] = &updated
			continue
		}
		out[i] = node
	}
	return out
}
