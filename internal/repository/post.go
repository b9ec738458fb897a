package repository

import (
	"context"
	"fmt"

	"catnip/internal/docstore"
	"catnip/internal/models"
	"catnip/internal/observability"
)

// PostPage is one page of the feed. HasMore mirrors whether a cursor was
// issued; a page shorter than the requested limit ends the feed.
type PostPage struct {
	Posts      []*models.Post
	NextCursor string
	HasMore    bool
}

// LikeOutcome is the authoritative result of a like toggle: the caller's
// membership after the toggle and the post's (or comment's) like count.
// Caches reconcile from this rather than recomputing locally.
type LikeOutcome struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

// PostRepository manages feed posts and the counters that hang off them.
type PostRepository interface {
	List(ctx context.Context, limit int, cursor string) (PostPage, error)
	ListFiltered(ctx context.Context, filters models.PostFilters, limit int, cursor string) (PostPage, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	Update(ctx context.Context, id string, update models.PostUpdate) (*models.Post, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, postID, userID string) (LikeOutcome, error)
	IncrementViews(ctx context.Context, id string)
}

type postRepository struct {
	store  docstore.Store
	logger *observability.RepoLogger
}

// NewPostRepository creates a new post repository.
func NewPostRepository(store docstore.Store) PostRepository {
	return &postRepository{
		store:  store,
		logger: observability.NewRepoLogger(CollectionPosts),
	}
}

func decodePost(doc docstore.Document) (*models.Post, error) {
	var post models.Post
	if err := docstore.Decode(doc, &post); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	if post.LikedBy == nil {
		post.LikedBy = []string{}
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit int, cursor string) (PostPage, error) {
	return r.ListFiltered(ctx, models.PostFilters{}, limit, cursor)
}

var sortableFields = map[string]bool{
	"createdAt": true,
	"likes":     true,
	"comments":  true,
	"views":     true,
}

func (r *postRepository) ListFiltered(ctx context.Context, filters models.PostFilters, limit int, cursor string) (PostPage, error) {
	defer observability.TrackOp("list", CollectionPosts)()

	if limit <= 0 {
		return PostPage{}, models.NewValidationError("limit must be positive")
	}

	q := docstore.Query{Limit: limit, Cursor: cursor}
	if filters.Type != "" {
		q.Predicates = append(q.Predicates, docstore.Eq("type", filters.Type))
	}
	if filters.Status != "" {
		q.Predicates = append(q.Predicates, docstore.Eq("status", filters.Status))
	}
	if filters.AuthorID != "" {
		q.Predicates = append(q.Predicates, docstore.Eq("authorId", filters.AuthorID))
	}
	if len(filters.Tags) > 0 {
		q.Predicates = append(q.Predicates, docstore.ContainsAny("tags", filters.Tags...))
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	if !sortableFields[sortBy] {
		return PostPage{}, models.NewValidationError(fmt.Sprintf("cannot sort by %q", sortBy))
	}
	switch filters.SortOrder {
	case "", "asc", "desc":
	default:
		return PostPage{}, models.NewValidationError(fmt.Sprintf("invalid sort order %q", filters.SortOrder))
	}
	q.OrderBy = docstore.OrderBy{Field: sortBy, Desc: filters.SortOrder != "asc"}

	result, err := r.store.Query(ctx, CollectionPosts, q)
	if err != nil {
		return PostPage{}, fmt.Errorf("query posts: %w", err)
	}

	page := PostPage{
		Posts:      make([]*models.Post, 0, len(result.Docs)),
		NextCursor: result.NextCursor,
		HasMore:    result.NextCursor != "",
	}
	for _, doc := range result.Docs {
		post, err := decodePost(doc)
		if err != nil {
			return PostPage{}, err
		}
		page.Posts = append(page.Posts, post)
	}
	return page, nil
}

// GetByID returns (nil, nil) when the post does not exist.
func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	doc, err := r.store.Get(ctx, CollectionPosts, id)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodePost(doc)
}

// Create inserts the post and bumps the author's activity counters in the same
// batch: postsCount always, plus the type-specific counter for reviews,
// discussions and emotion posts. The author's user record must already exist.
func (r *postRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	defer observability.TrackOp("create", CollectionPosts)()

	post.ID = docstore.NewID()
	post.Likes = 0
	post.Comments = 0
	post.Views = 0
	post.LikedBy = []string{}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.Status == "" {
		post.Status = models.PostStatusNew
	}
	post.IsActive = true

	fields, err := docstore.Encode(post)
	if err != nil {
		return nil, fmt.Errorf("encode post: %w", err)
	}

	ops := []docstore.BatchOp{
		docstore.InsertOp(CollectionPosts, post.ID, fields),
		docstore.IncrementOp(CollectionUsers, post.AuthorID, "postsCount", 1),
	}
	if stat := models.StatFieldForPostType(post.Type); stat != "" {
		ops = append(ops, docstore.IncrementOp(CollectionUsers, post.AuthorID, stat, 1))
	}

	if err := r.store.Batch(ctx, ops); err != nil {
		r.logger.LogError(ctx, err, "create")
		return nil, fmt.Errorf("create post: %w", err)
	}
	r.logger.LogWrite(ctx, "create", map[string]any{"id": post.ID, "type": post.Type})
	return r.GetByID(ctx, post.ID)
}

func (r *postRepository) Update(ctx context.Context, id string, update models.PostUpdate) (*models.Post, error) {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, models.NewValidationError("no fields to update")
	}

	post, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("post", id)
	}

	if err := r.store.Update(ctx, CollectionPosts, id, fields); err != nil {
		r.logger.LogError(ctx, err, "update")
		return nil, fmt.Errorf("update post %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes the post together with its entire comment thread and walks
// the author's activity counters back down, all in one batch.
func (r *postRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackOp("delete", CollectionPosts)()

	post, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post == nil {
		return models.NewNotFoundError("post", id)
	}

	comments, err := listAll(ctx, r.store, CollectionComments, docstore.Query{
		Predicates: []docstore.Predicate{docstore.Eq("postId", id)},
	})
	if err != nil {
		return fmt.Errorf("list comments for post %s: %w", id, err)
	}

	ops := []docstore.BatchOp{docstore.DeleteOp(CollectionPosts, id)}
	for _, doc := range comments {
		ops = append(ops, docstore.DeleteOp(CollectionComments, fmt.Sprint(doc[docstore.FieldID])))
	}
	ops = append(ops, docstore.IncrementOp(CollectionUsers, post.AuthorID, "postsCount", -1))
	if stat := models.StatFieldForPostType(post.Type); stat != "" {
		ops = append(ops, docstore.IncrementOp(CollectionUsers, post.AuthorID, stat, -1))
	}

	if err := r.store.Batch(ctx, ops); err != nil {
		r.logger.LogError(ctx, err, "delete")
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	r.logger.LogWrite(ctx, "delete", map[string]any{"id": id, "comments": len(comments)})
	return nil
}

// ToggleLike flips the caller's membership in the post's like set and moves
// the like counter with it, crediting the author's likesReceived unless they
// liked their own post. The count written is derived from the observed
// membership, so a drifted counter snaps back in sync here.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (LikeOutcome, error) {
	defer observability.TrackOp("toggle_like", CollectionPosts)()

	post, err := r.GetByID(ctx, postID)
	if err != nil {
		return LikeOutcome{}, err
	}
	if post == nil {
		return LikeOutcome{}, models.NewNotFoundError("post", postID)
	}

	liked := post.LikedByUser(userID)
	delta := int64(1)
	memberOp := docstore.ArrayAddOp(CollectionPosts, postID, "likedBy", userID)
	if liked {
		delta = -1
		memberOp = docstore.ArrayRemoveOp(CollectionPosts, postID, "likedBy", userID)
	}
	target := int64(len(post.LikedBy)) + delta

	ops := []docstore.BatchOp{memberOp}
	if post.Likes == int64(len(post.LikedBy)) {
		ops = append(ops, docstore.IncrementOp(CollectionPosts, postID, "likes", delta))
	} else {
		observability.CounterDrift.WithLabelValues(CollectionPosts, "likes").Inc()
		ops = append(ops, docstore.UpdateOp(CollectionPosts, postID, docstore.Document{"likes": target}))
	}
	if post.AuthorID != userID {
		ops = append(ops, docstore.IncrementOp(CollectionUsers, post.AuthorID, "likesReceived", delta))
	}

	if err := r.store.Batch(ctx, ops); err != nil {
		r.logger.LogError(ctx, err, "toggle_like")
		return LikeOutcome{}, fmt.Errorf("toggle like on post %s: %w", postID, err)
	}
	return LikeOutcome{Liked: !liked, Likes: target}, nil
}

// IncrementViews is best-effort: a failed bump is logged and swallowed so a
// view count never breaks a read path.
func (r *postRepository) IncrementViews(ctx context.Context, id string) {
	if err := r.store.AtomicIncrement(ctx, CollectionPosts, id, "views", 1); err != nil {
		r.logger.LogSwallowed(ctx, err, "increment_views")
	}
}
