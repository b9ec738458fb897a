package community

import (
	"context"
	"testing"
	"time"

	"catnip/internal/docstore"
	"catnip/internal/identity"
	"catnip/internal/models"
	"catnip/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testProfile = identity.Profile{ID: "u1", Name: "Ada", Avatar: "🎬"}

const (
	testTimeout = 2 * time.Second
	testTick    = 5 * time.Millisecond
)

func newTestRepos(t *testing.T) Repositories {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := docstore.NewRedis(client, repository.Schema())
	return Repositories{
		Posts:    repository.NewPostRepository(store),
		Comments: repository.NewCommentRepository(store),
		Cats:     repository.NewCatRepository(store),
		Emotions: repository.NewEmotionRepository(store),
		Users:    repository.NewUserRepository(store),
	}
}

// newTestStore builds a session store over real repositories with an
// authenticated identity.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestRepos(t), identity.StaticProvider{Profile: testProfile, Authenticated: true})
}

func newAnonymousStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestRepos(t), identity.StaticProvider{})
}

func mustAddPost(t *testing.T, s *Store, title string) *models.Post {
	t.Helper()
	post, err := s.AddPost(context.Background(), PostInput{
		Type: models.PostTypeGeneral, Title: title, Content: "body of " + title,
	})
	require.NoError(t, err)
	return post
}

// Stubs with function fields, for forcing failures and asserting what was
// never called. Methods without a configured function fail loudly rather than
// silently succeed.

type postRepoStub struct {
	listFiltered   func(ctx context.Context, filters models.PostFilters, limit int, cursor string) (repository.PostPage, error)
	getByID        func(ctx context.Context, id string) (*models.Post, error)
	create         func(ctx context.Context, post *models.Post) (*models.Post, error)
	update         func(ctx context.Context, id string, update models.PostUpdate) (*models.Post, error)
	delete         func(ctx context.Context, id string) error
	toggleLike     func(ctx context.Context, postID, userID string) (repository.LikeOutcome, error)
	incrementViews func(ctx context.Context, id string)
}

func (s *postRepoStub) List(ctx context.Context, limit int, cursor string) (repository.PostPage, error) {
	return s.ListFiltered(ctx, models.PostFilters{}, limit, cursor)
}

func (s *postRepoStub) ListFiltered(ctx context.Context, filters models.PostFilters, limit int, cursor string) (repository.PostPage, error) {
	if s.listFiltered == nil {
		panic("unexpected ListFiltered call")
	}
	return s.listFiltered(ctx, filters, limit, cursor)
}

func (s *postRepoStub) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if s.getByID == nil {
		panic("unexpected GetByID call")
	}
	return s.getByID(ctx, id)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	if s.create == nil {
		panic("unexpected Create call")
	}
	return s.create(ctx, post)
}

func (s *postRepoStub) Update(ctx context.Context, id string, update models.PostUpdate) (*models.Post, error) {
	if s.update == nil {
		panic("unexpected Update call")
	}
	return s.update(ctx, id, update)
}

func (s *postRepoStub) Delete(ctx context.Context, id string) error {
	if s.delete == nil {
		panic("unexpected Delete call")
	}
	return s.delete(ctx, id)
}

func (s *postRepoStub) ToggleLike(ctx context.Context, postID, userID string) (repository.LikeOutcome, error) {
	if s.toggleLike == nil {
		panic("unexpected ToggleLike call")
	}
	return s.toggleLike(ctx, postID, userID)
}

func (s *postRepoStub) IncrementViews(ctx context.Context, id string) {
	if s.incrementViews == nil {
		panic("unexpected IncrementViews call")
	}
	s.incrementViews(ctx, id)
}

type catRepoStub struct {
	listByUser    func(ctx context.Context, userID string) ([]*models.Cat, error)
	getByID       func(ctx context.Context, id string) (*models.Cat, error)
	add           func(ctx context.Context, cat *models.Cat) (*models.Cat, error)
	update        func(ctx context.Context, id string, update models.CatUpdate) (*models.Cat, error)
	addExperience func(ctx context.Context, userID, activity string) error
}

func (s *catRepoStub) ListByUser(ctx context.Context, userID string) ([]*models.Cat, error) {
	if s.listByUser == nil {
		panic("unexpected ListByUser call")
	}
	return s.listByUser(ctx, userID)
}

func (s *catRepoStub) GetByID(ctx context.Context, id string) (*models.Cat, error) {
	if s.getByID == nil {
		panic("unexpected GetByID call")
	}
	return s.getByID(ctx, id)
}

func (s *catRepoStub) Add(ctx context.Context, cat *models.Cat) (*models.Cat, error) {
	if s.add == nil {
		panic("unexpected Add call")
	}
	return s.add(ctx, cat)
}

func (s *catRepoStub) Update(ctx context.Context, id string, update models.CatUpdate) (*models.Cat, error) {
	if s.update == nil {
		panic("unexpected Update call")
	}
	return s.update(ctx, id, update)
}

func (s *catRepoStub) AddExperience(ctx context.Context, userID, activity string) error {
	if s.addExperience == nil {
		panic("unexpected AddExperience call")
	}
	return s.addExperience(ctx, userID, activity)
}
