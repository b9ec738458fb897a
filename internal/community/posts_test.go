package community

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"catnip/internal/identity"
	"catnip/internal/models"
	"catnip/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_FetchPosts(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	mustAddPost(t, store, "first")
	mustAddPost(t, store, "second")

	require.NoError(t, store.FetchPosts(ctx, 10))

	posts, cursor, hasMore := store.Posts()
	assert.Len(t, posts, 2)
	assert.Empty(t, cursor)
	assert.False(t, hasMore)

	status, err := store.FamilyStatus(FamilyPosts)
	assert.Equal(t, StatusLoaded, status)
	assert.NoError(t, err)
}

func TestStore_AddPostRequiresAuth(t *testing.T) {
	t.Parallel()
	// A panicking stub proves no repository is touched when identity fails.
	store := NewStore(Repositories{Posts: &postRepoStub{}}, identity.StaticProvider{})

	_, err := store.AddPost(context.Background(), PostInput{
		Type: models.PostTypeGeneral, Title: "t", Content: "c",
	})
	assert.True(t, models.IsCode(err, "AUTH_REQUIRED"))

	posts, _, _ := store.Posts()
	assert.Empty(t, posts)
}

func TestStore_AddPostValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input PostInput
	}{
		{"invalid type", PostInput{Type: "rant", Title: "t", Content: "c"}},
		{"missing title", PostInput{Type: models.PostTypeGeneral, Content: "c"}},
		{"missing content", PostInput{Type: models.PostTypeGeneral, Title: "t"}},
		{"rating out of range", PostInput{Type: models.PostTypeReview, Title: "t", Content: "c", Rating: 6}},
		{"intensity out of range", PostInput{Type: models.PostTypeEmotion, Title: "t", Content: "c", EmotionIntensity: 11}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.AddPost(ctx, tc.input)
			assert.True(t, models.IsCode(err, "VALIDATION_ERROR"))
		})
	}
}

func TestStore_AddPostFrontSplices(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	mustAddPost(t, store, "older")
	require.NoError(t, store.FetchPosts(ctx, 10))

	created := mustAddPost(t, store, "newest")
	assert.False(t, strings.HasPrefix(created.ID, "pending-"))
	assert.Equal(t, testProfile.ID, created.AuthorID)
	assert.Equal(t, testProfile.Name, created.AuthorName)

	posts, _, _ := store.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, created.ID, posts[0].ID)
	assert.Equal(t, "newest", posts[0].Title)
}

func TestStore_AddPostRollsBackOnFailure(t *testing.T) {
	t.Parallel()
	repos := newTestRepos(t)
	boom := errors.New("storage down")
	repos.Posts = &postRepoStub{
		create: func(context.Context, *models.Post) (*models.Post, error) { return nil, boom },
	}
	store := NewStore(repos, identity.StaticProvider{Profile: testProfile, Authenticated: true})

	_, err := store.AddPost(context.Background(), PostInput{
		Type: models.PostTypeGeneral, Title: "t", Content: "c",
	})
	assert.ErrorIs(t, err, boom)

	posts, _, _ := store.Posts()
	assert.Empty(t, posts, "optimistic entry must be rolled back")

	status, ferr := store.FamilyStatus(FamilyPosts)
	assert.Equal(t, StatusErrored, status)
	assert.ErrorIs(t, ferr, boom)
}

func TestStore_AddPostGrantsExperience(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddCat(ctx, CatInput{Name: "Mochi"})
	require.NoError(t, err)

	_, err = store.AddPost(ctx, PostInput{
		Type: models.PostTypeReview, Title: "Heat", Content: "slaps", MovieTitle: "Heat", Rating: 5,
	})
	require.NoError(t, err)

	require.NoError(t, store.FetchCats(ctx))
	cats := store.Cats()
	require.Len(t, cats, 1)
	assert.Equal(t, int64(models.ExperienceReview), cats[0].Experience)
	assert.Equal(t, int64(1), cats[0].Stats.Reviews)
}

func TestStore_AddPostSurvivesFailedGrant(t *testing.T) {
	t.Parallel()
	repos := newTestRepos(t)
	repos.Cats = &catRepoStub{
		addExperience: func(context.Context, string, string) error { return errors.New("cats asleep") },
	}
	store := NewStore(repos, identity.StaticProvider{Profile: testProfile, Authenticated: true})

	post, err := store.AddPost(context.Background(), PostInput{
		Type: models.PostTypeReview, Title: "t", Content: "c",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
}

func TestStore_LoadMorePosts(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		mustAddPost(t, store, "post")
	}

	require.NoError(t, store.FetchPosts(ctx, 2))
	posts, cursor, hasMore := store.Posts()
	require.Len(t, posts, 2)
	require.True(t, hasMore)
	require.NotEmpty(t, cursor)

	require.NoError(t, store.LoadMorePosts(ctx))
	posts, _, _ = store.Posts()
	assert.Len(t, posts, 4)

	require.NoError(t, store.LoadMorePosts(ctx))
	posts, _, hasMore = store.Posts()
	assert.Len(t, posts, 5)
	assert.False(t, hasMore)

	// Exhausted feed: a further call is a no-op.
	require.NoError(t, store.LoadMorePosts(ctx))
	posts, _, _ = store.Posts()
	assert.Len(t, posts, 5)
}

func TestStore_LoadMorePostsInFlightGuard(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	var calls sync.WaitGroup
	var callCount int
	var mu sync.Mutex

	repos := Repositories{Posts: &postRepoStub{
		listFiltered: func(context.Context, models.PostFilters, int, string) (repository.PostPage, error) {
			mu.Lock()
			callCount++
			first := callCount == 1
			mu.Unlock()
			if first {
				<-release
			}
			return repository.PostPage{}, nil
		},
	}}
	store := NewStore(repos, identity.StaticProvider{Profile: testProfile, Authenticated: true})

	// Seed pagination state so LoadMorePosts has a cursor to follow.
	store.mu.Lock()
	store.hasMore = true
	store.nextCursor = "cur"
	store.pageSize = 2
	store.mu.Unlock()

	calls.Add(1)
	go func() {
		defer calls.Done()
		_ = store.LoadMorePosts(context.Background())
	}()

	// Wait until the first load is parked inside the repository.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return callCount == 1
	}, testTimeout, testTick)

	require.NoError(t, store.LoadMorePosts(context.Background()))
	mu.Lock()
	assert.Equal(t, 1, callCount, "second call must be a no-op while the first is in flight")
	mu.Unlock()

	close(release)
	calls.Wait()
}

func TestStore_LoadMorePostsWithoutCursor(t *testing.T) {
	t.Parallel()
	store := NewStore(Repositories{Posts: &postRepoStub{}}, identity.StaticProvider{})
	assert.NoError(t, store.LoadMorePosts(context.Background()))
}

func TestStore_FetchPostByID(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	created := mustAddPost(t, store, "focus me")

	post, err := store.FetchPostByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, post.ID)
	assert.Equal(t, post, store.CurrentPost())

	_, err = store.FetchPostByID(ctx, "missing")
	assert.True(t, models.IsCode(err, "NOT_FOUND"))
	status, _ := store.FamilyStatus(FamilyPosts)
	assert.Equal(t, StatusErrored, status)
}

func TestStore_UpdatePostOwnership(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	created := mustAddPost(t, store, "mine")

	title := "mine, edited"
	updated, err := store.UpdatePost(ctx, created.ID, models.PostUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "mine, edited", updated.Title)

	posts, _, _ := store.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "mine, edited", posts[0].Title)
}

func TestStore_UpdatePostRejectsOthers(t *testing.T) {
	t.Parallel()
	repos := newTestRepos(t)
	owner := NewStore(repos, identity.StaticProvider{Profile: testProfile, Authenticated: true})
	created := mustAddPost(t, owner, "not yours")

	intruder := NewStore(repos, identity.StaticProvider{
		Profile: identity.Profile{ID: "u2", Name: "Eve"}, Authenticated: true,
	})
	title := "hijacked"
	_, err := intruder.UpdatePost(context.Background(), created.ID, models.PostUpdate{Title: &title})
	assert.True(t, models.IsCode(err, "UNAUTHORIZED"))
}

func TestStore_DeletePostClearsFocus(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	created := mustAddPost(t, store, "doomed")
	_, err := store.FetchPostByID(ctx, created.ID)
	require.NoError(t, err)
	_, err = store.AddComment(ctx, CommentInput{PostID: created.ID, Content: "last words"})
	require.NoError(t, err)

	require.NoError(t, store.DeletePost(ctx, created.ID))

	assert.Nil(t, store.CurrentPost())
	assert.Empty(t, store.Comments())
	posts, _, _ := store.Posts()
	assert.Empty(t, posts)
}

func TestStore_TogglePostLike(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	created := mustAddPost(t, store, "likeable")
	_, err := store.FetchPostByID(ctx, created.ID)
	require.NoError(t, err)

	outcome, err := store.TogglePostLike(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Liked)
	assert.Equal(t, int64(1), outcome.Likes)

	current := store.CurrentPost()
	assert.Equal(t, int64(1), current.Likes)
	assert.Contains(t, current.LikedBy, testProfile.ID)
	posts, _, _ := store.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, int64(1), posts[0].Likes)

	outcome, err = store.TogglePostLike(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Liked)
	assert.Zero(t, outcome.Likes)
	assert.NotContains(t, store.CurrentPost().LikedBy, testProfile.ID)
}

func TestStore_IncrementPostViews(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	created := mustAddPost(t, store, "watched")
	_, err := store.FetchPostByID(ctx, created.ID)
	require.NoError(t, err)

	store.IncrementPostViews(ctx, created.ID)
	assert.Equal(t, int64(1), store.CurrentPost().Views)

	// A missing post never surfaces an error or a family failure.
	store.IncrementPostViews(ctx, "missing")
	status, err := store.FamilyStatus(FamilyPosts)
	assert.Equal(t, StatusLoaded, status)
	assert.NoError(t, err)
}
