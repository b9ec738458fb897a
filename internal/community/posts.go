package community

import (
	"context"
	"fmt"
	"time"

	"catnip/internal/docstore"
	"catnip/internal/models"
	"catnip/internal/observability"
	"catnip/internal/repository"
)

const defaultPageSize = 20

// PostInput carries the fields a caller may set when creating a post. The
// author snapshot is taken from the authenticated identity, never from input.
type PostInput struct {
	Type             string   `json:"type"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	MovieTitle       string   `json:"movieTitle,omitempty"`
	Rating           int      `json:"rating,omitempty"`
	Emotion          string   `json:"emotion,omitempty"`
	EmotionEmoji     string   `json:"emotionEmoji,omitempty"`
	EmotionIntensity int      `json:"emotionIntensity,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// Validate checks the input before any storage effect.
func (in PostInput) Validate() error {
	if !models.ValidPostType(in.Type) {
		return models.NewValidationError(fmt.Sprintf("invalid post type %q", in.Type))
	}
	if in.Title == "" {
		return models.NewValidationError("title is required")
	}
	if in.Content == "" {
		return models.NewValidationError("content is required")
	}
	if in.Rating < 0 || in.Rating > 5 {
		return models.NewValidationError("rating must be between 0 and 5")
	}
	if in.EmotionIntensity < 0 || in.EmotionIntensity > 10 {
		return models.NewValidationError("emotion intensity must be between 0 and 10")
	}
	return nil
}

func activityForPostType(postType string) string {
	switch postType {
	case models.PostTypeReview:
		return models.ActivityReview
	case models.PostTypeDiscussion:
		return models.ActivityDiscussion
	case models.PostTypeEmotion:
		return models.ActivityEmotion
	}
	return ""
}

// Posts returns the cached feed with its pagination state.
func (s *Store) Posts() (posts []*models.Post, nextCursor string, hasMore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts = make([]*models.Post, len(s.postList))
	copy(posts, s.postList)
	return posts, s.nextCursor, s.hasMore
}

// CurrentPost returns the focused post, or nil when none is focused.
func (s *Store) CurrentPost() *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPost
}

// Filters returns the filters the cached feed was loaded with.
func (s *Store) Filters() models.PostFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// FetchPosts loads the first page of the unfiltered feed, replacing the
// cached list.
func (s *Store) FetchPosts(ctx context.Context, pageSize int) error {
	return s.SearchPosts(ctx, models.PostFilters{}, pageSize)
}

// SearchPosts loads the first page of the feed under the given filters,
// replacing the cached list and remembering the filters for LoadMorePosts.
func (s *Store) SearchPosts(ctx context.Context, filters models.PostFilters, pageSize int) error {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	s.begin(FamilyPosts)

	page, err := s.posts.ListFiltered(ctx, filters, pageSize, "")
	if err != nil {
		s.fail(FamilyPosts, err)
		return err
	}

	s.mu.Lock()
	s.postList = page.Posts
	s.nextCursor = page.NextCursor
	s.hasMore = page.HasMore
	s.filters = filters
	s.pageSize = pageSize
	s.mu.Unlock()
	s.finish(FamilyPosts)
	return nil
}

// LoadMorePosts appends the next feed page under the current filters. It is a
// no-op while a previous load is still in flight or when the feed is
// exhausted.
func (s *Store) LoadMorePosts(ctx context.Context) error {
	s.mu.Lock()
	if s.loadingMore || !s.hasMore || s.nextCursor == "" {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	filters, pageSize, cursor := s.filters, s.pageSize, s.nextCursor
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loadingMore = false
		s.mu.Unlock()
	}()

	page, err := s.posts.ListFiltered(ctx, filters, pageSize, cursor)
	if err != nil {
		s.fail(FamilyPosts, err)
		return err
	}

	s.mu.Lock()
	s.postList = append(s.postList, page.Posts...)
	s.nextCursor = page.NextCursor
	s.hasMore = page.HasMore
	s.mu.Unlock()
	return nil
}

// FetchPostByID focuses a single post.
func (s *Store) FetchPostByID(ctx context.Context, id string) (*models.Post, error) {
	s.begin(FamilyPosts)

	post, err := s.posts.GetByID(ctx, id)
	if err == nil && post == nil {
		err = models.NewNotFoundError("post", id)
	}
	if err != nil {
		s.fail(FamilyPosts, err)
		return nil, err
	}

	s.mu.Lock()
	s.currentPost = post
	s.mu.Unlock()
	s.finish(FamilyPosts)
	return post, nil
}

// AddPost creates a post as the authenticated user. The feed is front-spliced
// optimistically with a locally timestamped copy, then reconciled with the
// stored record (or rolled back on failure). Companion experience is granted
// by post type afterwards, best-effort.
func (s *Store) AddPost(ctx context.Context, input PostInput) (*models.Post, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.Ensure(ctx, profile); err != nil {
		s.fail(FamilyPosts, err)
		return nil, err
	}

	now := time.Now().UnixMilli()
	pending := &models.Post{
		ID:               "pending-" + docstore.NewID(),
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
		LikedBy:          []string{},
		Status:           models.PostStatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if pending.Tags == nil {
		pending.Tags = []string{}
	}

	s.mu.Lock()
	s.postList = append([]*models.Post{pending}, s.postList...)
	s.mu.Unlock()

	draft := *pending
	created, err := s.posts.Create(ctx, &draft)
	if err != nil {
		s.mu.Lock()
		s.removePostLocked(pending.ID)
		s.mu.Unlock()
		s.fail(FamilyPosts, err)
		return nil, err
	}

	s.mu.Lock()
	replaced := false
	for i, p := range s.postList {
		if p.ID == pending.ID {
			s.postList[i] = created
			replaced = true
			break
		}
	}
	if !replaced {
		s.postList = append([]*models.Post{created}, s.postList...)
	}
	s.mu.Unlock()

	s.grantExperience(ctx, profile.ID, activityForPostType(created.Type))
	return created, nil
}

// grantExperience forwards an activity to the companions, swallowing
// failures: an unrewarded cat never fails the action that earned the reward.
func (s *Store) grantExperience(ctx context.Context, userID, activity string) {
	if activity == "" {
		return
	}
	if err := s.cats.AddExperience(ctx, userID, activity); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "experience grant failed",
			"userId", userID, "activity", activity, "error", err.Error())
	}
}

// UpdatePost edits the caller's own post. Authorship is checked against the
// cached copy when present; storage enforces nothing further here.
func (s *Store) UpdatePost(ctx context.Context, id string, update models.PostUpdate) (*models.Post, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkPostAuthor(ctx, id, profile.ID); err != nil {
		return nil, err
	}

	post, err := s.posts.Update(ctx, id, update)
	if err != nil {
		s.fail(FamilyPosts, err)
		return nil, err
	}

	s.mu.Lock()
	s.replacePostLocked(post)
	s.mu.Unlock()
	return post, nil
}

// DeletePost removes the caller's own post and drops it from the cache,
// together with the comment thread if it was focused.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return err
	}
	if err := s.checkPostAuthor(ctx, id, profile.ID); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		s.fail(FamilyPosts, err)
		return err
	}

	s.mu.Lock()
	s.removePostLocked(id)
	if s.currentPost != nil && s.currentPost.ID == id {
		s.currentPost = nil
		s.forest = nil
	}
	s.mu.Unlock()
	return nil
}

// TogglePostLike flips the caller's like on the post and reconciles the cache
// from the returned outcome instead of recomputing locally.
func (s *Store) TogglePostLike(ctx context.Context, id string) (repository.LikeOutcome, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return repository.LikeOutcome{}, err
	}

	outcome, err := s.posts.ToggleLike(ctx, id, profile.ID)
	if err != nil {
		s.fail(FamilyPosts, err)
		return repository.LikeOutcome{}, err
	}

	s.mu.Lock()
	for i, p := range s.postList {
		if p.ID == id {
			s.postList[i] = postWithOutcome(p, profile.ID, outcome)
		}
	}
	if s.currentPost != nil && s.currentPost.ID == id {
		s.currentPost = postWithOutcome(s.currentPost, profile.ID, outcome)
	}
	s.mu.Unlock()
	return outcome, nil
}

// IncrementPostViews bumps the view counter. Best-effort on both sides: the
// repository swallows storage failures and no family error is ever set.
func (s *Store) IncrementPostViews(ctx context.Context, id string) {
	s.posts.IncrementViews(ctx, id)

	s.mu.Lock()
	for i, p := range s.postList {
		if p.ID == id {
			bumped := *p
			bumped.Views++
			s.postList[i] = &bumped
		}
	}
	if s.currentPost != nil && s.currentPost.ID == id {
		bumped := *s.currentPost
		bumped.Views++
		s.currentPost = &bumped
	}
	s.mu.Unlock()
}

func postWithOutcome(p *models.Post, userID string, outcome repository.LikeOutcome) *models.Post {
	updated := *p
	updated.Likes = outcome.Likes
	updated.LikedBy = reconcileMembership(p.LikedBy, userID, outcome.Liked)
	return &updated
}

func reconcileMembership(members []string, userID string, present bool) []string {
	out := make([]string, 0, len(members)+1)
	for _, m := range members {
		if m != userID {
			out = append(out, m)
		}
	}
	if present {
		out = append(out, userID)
	}
	return out
}

// checkPostAuthor verifies userID authored the post, preferring the cached
// copy and falling back to a fresh read.
func (s *Store) checkPostAuthor(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	var cached *models.Post
	for _, p := range s.postList {
		if p.ID == id {
			cached = p
			break
		}
	}
	if cached == nil && s.currentPost != nil && s.currentPost.ID == id {
		cached = s.currentPost
	}
	s.mu.Unlock()

	if cached == nil {
		post, err := s.posts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if post == nil {
			return models.NewNotFoundError("post", id)
		}
		cached = post
	}
	if cached.AuthorID != userID {
		return models.NewUnauthorizedError("you can only modify your own posts")
	}
	return nil
}

// removePostLocked and replacePostLocked are called with the mutex held.
func (s *Store) removePostLocked(id string) {
	out := s.postList[:0]
	for _, p := range s.postList {
		if p.ID != id {
			out = append(out, p)
		}
	}
	s.postList = out
}

func (s *Store) replacePostLocked(post *models.Post) {
	for i, p := range s.postList {
		if p.ID == post.ID {
			s.postList[i] = post
		}
	}
	if s.currentPost != nil && s.currentPost.ID == post.ID {
		s.currentPost = post
	}
}
