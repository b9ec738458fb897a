package repository

import (
	"context"
	"testing"

	"catnip/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Add(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	comments := NewCommentRepository(store)
	posts := NewPostRepository(store)
	users := NewUserRepository(store)
	ctx := context.Background()
	seedUser(t, store, "author", "Ada")
	seedUser(t, store, "fan", "Finn")
	post := seedPost(t, store, "author", models.PostTypeGeneral)

	created, err := comments.Add(ctx, &models.Comment{
		PostID: post.ID, AuthorID: "fan", AuthorName: "Finn", Content: "great pick",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Zero(t, created.Likes)
	assert.Empty(t, created.LikedBy)
	assert.NotZero(t, created.CreatedAt)

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Comments)

	author, err := users.GetByID(ctx, "author")
	require.NoError(t, err)
	assert.Equal(t, int64(1), author.CommentsReceived)
}

func TestCommentRepository_AddOwnPostNoCommentsReceived(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	comments := NewCommentRepository(store)
	users := NewUserRepository(store)
	ctx := context.Background()
	seedUser(t, store, "author", "Ada")
	post := seedPost(t, store, "author", models.PostTypeGeneral)

	_, err := comments.Add(ctx, &models.Comment{
		PostID: post.ID, AuthorID: "author", AuthorName: "Ada", Content: "self reply",
	})
	require.NoError(t, err)

	author, err := users.GetByID(ctx, "author")
	require.NoError(t, err)
	assert.Zero(t, author.CommentsReceived)
}

func TestCommentRepository_AddMissingPost(t *testing.T) {
	t.Parallel()
	comments := NewCommentRepository(newTestStore(t))

	_, err := comments.Add(context.Background(), &models.Comment{
		PostID: "missing", AuthorID: "fan", Content: "hi",
	})
	assert.True(t, models.IsCode(err, "NOT_FOUND"))
}

func TestCommentRepository_ListByPostAndForest(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	comments := NewCommentRepository(store)
	ctx := context.Background()
	seedUser(t, store, "author", "Ada")
	post := seedPost(t, store, "author", models.PostTypeGeneral)

	root, err := comments.Add(ctx, &models.Comment{
		PostID: post.ID, AuthorID: "author", Content: "root",
	})
	require.NoError(t, err)
	reply, err := comments.Add(ctx, &models.Comment{
		PostID: post.ID, AuthorID: "author", Content: "reply", ParentCommentID: root.ID,
	})
	require.NoError(t, err)
	_, err = comments.Add(ctx, &models.Comment{
		PostID: post.ID, AuthorID: "author", Content: "nested", ParentCommentID: reply.ID,
	})
	require.NoError(t, err)

	flat, err := comments.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, flat, 3)
	for _, c := range flat {
		assert.Nil(t, c.Replies)
	}

	forest := BuildForest(flat)
	require.Len(t, forest, 1)
	assert.Equal(t, "root", forest[0].Content)
	require.Len(t, forest[0].Replies, 1)
	assert.Equal(t, "reply", forest[0].Replies[0].Content)
	require.Len(t, forest[0].Replies[0].Replies, 1)
	assert.Equal(t, "nested", forest[0].Replies[0].Replies[0].Content)
}

func TestBuildForest(t *testing.T) {
	t.Parallel()

	t.Run("promotes orphans to roots", func(t *testing.T) {
		t.Parallel()
		flat := []*models.Comment{
			{ID: "a", Content: "root"},
			{ID: "b", ParentCommentID: "a", Content: "child"},
			{ID: "c", ParentCommentID: "gone", Content: "orphan"},
		}
		forest := BuildForest(flat)
		require.Len(t, forest, 2)
		assert.Equal(t, "a", forest[0].ID)
		assert.Equal(t, "c", forest[1].ID)
		require.Len(t, forest[0].Replies, 1)
		assert.Equal(t, "b", forest[0].Replies[0].ID)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		t.Parallel()
		flat := []*models.Comment{
			{ID: "a"},
			{ID: "b", ParentCommentID: "a"},
		}
		_ = BuildForest(flat)
		assert.Nil(t, flat[0].Replies)
	})

	t.Run("preserves sibling order", func(t *testing.T) {
		t.Parallel()
		flat := []*models.Comment{
			{ID: "p"},
			{ID: "r1", ParentCommentID: "p"},
			{ID: "r2", ParentCommentID: "p"},
			{ID: "r3", ParentCommentID: "p"},
		}
		forest := BuildForest(flat)
		require.Len(t, forest, 1)
		require.Len(t, forest[0].Replies, 3)
		assert.Equal(t, "r1", forest[0].Replies[0].ID)
		assert.Equal(t, "r3", forest[0].Replies[2].ID)
	})

	t.Run("self parent becomes root", func(t *testing.T) {
		t.Parallel()
		forest := BuildForest([]*models.Comment{{ID: "x", ParentCommentID: "x"}})
		require.Len(t, forest, 1)
		assert.Empty(t, forest[0].Replies)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, BuildForest(nil))
	})
}

func TestCommentRepository_DeleteLeavesRepliesAsOrphans(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	comments := NewCommentRepository(store)
	posts := NewPostRepository(store)
	ctx := context.Background()
	seedUser(t, store, "author", "Ada")
	post := seedPost(t, store, "author", models.PostTypeGeneral)

	root, err := comments.Add(ctx, &models.Comment{PostID: post.ID, AuthorID: "author", Content: "root"})
	require.NoError(t, err)
	reply, err := comments.Add(ctx, &models.Comment{
		PostID: post.ID, AuthorID: "author", Content: "reply", ParentCommentID: root.ID,
	})
	require.NoError(t, err)

	require.NoError(t, comments.Delete(ctx, root.ID))

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Comments)

	flat, err := comments.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, flat, 1)
	assert.Equal(t, reply.ID, flat[0].ID)

	forest := BuildForest(flat)
	require.Len(t, forest, 1)
	assert.Equal(t, reply.ID, forest[0].ID)
}

func TestCommentRepository_ToggleLike(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	comments := NewCommentRepository(store)
	ctx := context.Background()
	seedUser(t, store, "author", "Ada")
	post := seedPost(t, store, "author", models.PostTypeGeneral)
	comment, err := comments.Add(ctx, &models.Comment{PostID: post.ID, AuthorID: "author", Content: "c"})
	require.NoError(t, err)

	outcome, err := comments.ToggleLike(ctx, comment.ID, "fan")
	require.NoError(t, err)
	assert.True(t, outcome.Liked)
	assert.Equal(t, int64(1), outcome.Likes)

	outcome, err = comments.ToggleLike(ctx, comment.ID, "fan")
	require.NoError(t, err)
	assert.False(t, outcome.Liked)
	assert.Zero(t, outcome.Likes)

	got, err := comments.GetByID(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(got.LikedBy)), got.Likes)
	assert.Empty(t, got.LikedBy)
}

func TestCommentRepository_Update(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	comments := NewCommentRepository(store)
	ctx := context.Background()
	seedUser(t, store, "author", "Ada")
	post := seedPost(t, store, "author", models.PostTypeGeneral)
	comment, err := comments.Add(ctx, &models.Comment{PostID: post.ID, AuthorID: "author", Content: "before"})
	require.NoError(t, err)

	content := "after"
	updated, err := comments.Update(ctx, comment.ID, models.CommentUpdate{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Content)

	_, err = comments.Update(ctx, comment.ID, models.CommentUpdate{})
	assert.True(t, models.IsCode(err, "VALIDATION_ERROR"))
}
