package repository

import (
	"context"
	"fmt"

	"catnip/internal/docstore"
	"catnip/internal/models"
	"catnip/internal/observability"
)

// CommentRepository manages the flat comment records a post's thread is built
// from. Nesting is derived on read with BuildForest; storage only ever sees
// flat rows.
type CommentRepository interface {
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Add(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	Update(ctx context.Context, id string, update models.CommentUpdate) (*models.Comment, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, commentID, userID string) (LikeOutcome, error)
}

type commentRepository struct {
	store  docstore.Store
	logger *observability.RepoLogger
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(store docstore.Store) CommentRepository {
	return &commentRepository{
		store:  store,
		logger: observability.NewRepoLogger(CollectionComments),
	}
}

func decodeComment(doc docstore.Document) (*models.Comment, error) {
	var comment models.Comment
	if err := docstore.Decode(doc, &comment); err != nil {
		return nil, fmt.Errorf("decode comment: %w", err)
	}
	if comment.LikedBy == nil {
		comment.LikedBy = []string{}
	}
	return &comment, nil
}

// ListByPost returns the post's comments flat, oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID string) ([]*models.Comment, error) {
	defer observability.TrackOp("list", CollectionComments)()

	docs, err := listAll(ctx, r.store, CollectionComments, docstore.Query{
		Predicates: []docstore.Predicate{docstore.Eq("postId", postID)},
		OrderBy:    docstore.OrderBy{Field: docstore.FieldCreatedAt},
	})
	if err != nil {
		return nil, fmt.Errorf("list comments for post %s: %w", postID, err)
	}

	comments := make([]*models.Comment, 0, len(docs))
	for _, doc := range docs {
		comment, err := decodeComment(doc)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// BuildForest threads a flat comment list into reply trees. Input order is
// preserved among siblings; comments whose parent is missing from the input
// are promoted to roots rather than dropped. The input comments are not
// mutated.
func BuildForest(comments []*models.Comment) []*models.Comment {
	nodes := make([]*models.Comment, 0, len(comments))
	byID := make(map[string]*models.Comment, len(comments))
	for _, c := range comments {
		node := *c
		node.Replies = nil
		nodes = append(nodes, &node)
		byID[node.ID] = &node
	}

	roots := []*models.Comment{}
	for _, node := range nodes {
		parent, ok := byID[node.ParentCommentID]
		if node.ParentCommentID == "" || !ok || parent == node {
			roots = append(roots, node)
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}
	return roots
}

// GetByID returns (nil, nil) when the comment does not exist.
func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	doc, err := r.store.Get(ctx, CollectionComments, id)
	if err != nil {
		return nil, fmt.Errorf("get comment %s: %w", id, err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeComment(doc)
}

// Add inserts the comment and bumps the post's comment counter in the same
// batch, crediting the post author's commentsReceived unless they commented on
// their own post.
func (r *commentRepository) Add(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	defer observability.TrackOp("add", CollectionComments)()

	post, err := r.loadPost(ctx, comment.PostID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("post", comment.PostID)
	}

	comment.ID = docstore.NewID()
	comment.Likes = 0
	comment.LikedBy = []string{}
	comment.Replies = nil

	fields, err := docstore.Encode(comment)
	if err != nil {
		return nil, fmt.Errorf("encode comment: %w", err)
	}

	ops := []docstore.BatchOp{
		docstore.InsertOp(CollectionComments, comment.ID, fields),
		docstore.IncrementOp(CollectionPosts, comment.PostID, "comments", 1),
	}
	if post.AuthorID != comment.AuthorID {
		ops = append(ops, docstore.IncrementOp(CollectionUsers, post.AuthorID, "commentsReceived", 1))
	}

	if err := r.store.Batch(ctx, ops); err != nil {
		r.logger.LogError(ctx, err, "add")
		return nil, fmt.Errorf("add comment: %w", err)
	}
	r.logger.LogWrite(ctx, "add", map[string]any{"id": comment.ID, "postId": comment.PostID})
	return r.GetByID(ctx, comment.ID)
}

func (r *commentRepository) Update(ctx context.Context, id string, update models.CommentUpdate) (*models.Comment, error) {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, models.NewValidationError("no fields to update")
	}

	comment, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, models.NewNotFoundError("comment", id)
	}

	if err := r.store.Update(ctx, CollectionComments, id, fields); err != nil {
		r.logger.LogError(ctx, err, "update")
		return nil, fmt.Errorf("update comment %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

// Delete removes the comment and walks the post counter back down. Replies are
// left in place; they surface as roots once their parent is gone.
func (r *commentRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackOp("delete", CollectionComments)()

	comment, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if comment == nil {
		return models.NewNotFoundError("comment", id)
	}

	post, err := r.loadPost(ctx, comment.PostID)
	if err != nil {
		return err
	}

	ops := []docstore.BatchOp{docstore.DeleteOp(CollectionComments, id)}
	if post != nil {
		ops = append(ops, docstore.IncrementOp(CollectionPosts, comment.PostID, "comments", -1))
		if post.AuthorID != comment.AuthorID {
			ops = append(ops, docstore.IncrementOp(CollectionUsers, post.AuthorID, "commentsReceived", -1))
		}
	}

	if err := r.store.Batch(ctx, ops); err != nil {
		r.logger.LogError(ctx, err, "delete")
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	return nil
}

// ToggleLike flips the caller's membership in the comment's like set. Comment
// likes move no user stats, only the comment's own counter.
func (r *commentRepository) ToggleLike(ctx context.Context, commentID, userID string) (LikeOutcome, error) {
	defer observability.TrackOp("toggle_like", CollectionComments)()

	comment, err := r.GetByID(ctx, commentID)
	if err != nil {
		return LikeOutcome{}, err
	}
	if comment == nil {
		return LikeOutcome{}, models.NewNotFoundError("comment", commentID)
	}

	liked := comment.LikedByUser(userID)
	delta := int64(1)
	memberOp := docstore.ArrayAddOp(CollectionComments, commentID, "likedBy", userID)
	if liked {
		delta = -1
		memberOp = docstore.ArrayRemoveOp(CollectionComments, commentID, "likedBy", userID)
	}
	target := int64(len(comment.LikedBy)) + delta

	ops := []docstore.BatchOp{memberOp}
	if comment.Likes == int64(len(comment.LikedBy)) {
		ops = append(ops, docstore.IncrementOp(CollectionComments, commentID, "likes", delta))
	} else {
		observability.CounterDrift.WithLabelValues(CollectionComments, "likes").Inc()
		ops = append(ops, docstore.UpdateOp(CollectionComments, commentID, docstore.Document{"likes": target}))
	}

	if err := r.store.Batch(ctx, ops); err != nil {
		r.logger.LogError(ctx, err, "toggle_like")
		return LikeOutcome{}, fmt.Errorf("toggle like on comment %s: %w", commentID, err)
	}
	return LikeOutcome{Liked: !liked, Likes: target}, nil
}

func (r *commentRepository) loadPost(ctx context.Context, postID string) (*models.Post, error) {
	doc, err := r.store.Get(ctx, CollectionPosts, postID)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", postID, err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodePost(doc)
}
