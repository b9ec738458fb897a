package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catnip/internal/config"
	"catnip/internal/docstore"
	"catnip/internal/identity"
	"catnip/internal/models"
	"catnip/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer wires a server over miniredis. The prometheus middleware is
// left out: it registers into the global registry, which tests must not do
// twice.
func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := docstore.NewRedis(client, repository.Schema())

	cfg := &config.Config{Port: "0", JWTSecret: "test-secret", Env: "test"}
	srv := &Server{
		config:      cfg,
		store:       store,
		tokens:      identity.NewTokenManager(cfg.JWTSecret),
		userRepo:    repository.NewUserRepository(store),
		postRepo:    repository.NewPostRepository(store),
		commentRepo: repository.NewCommentRepository(store),
		catRepo:     repository.NewCatRepository(store),
		emotionRepo: repository.NewEmotionRepository(store),
	}

	app := fiber.New()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	return srv, app
}

func authToken(t *testing.T, srv *Server, profile identity.Profile) string {
	t.Helper()
	token, err := srv.tokens.Generate(profile, time.Hour)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

var adaProfile = identity.Profile{ID: "u1", Name: "Ada", Avatar: "🎬"}

func createPost(t *testing.T, app *fiber.App, token string, input map[string]any) models.Post {
	t.Helper()
	resp := doJSON(t, app, "POST", "/api/posts", token, input)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var post models.Post
	decodeBody(t, resp, &post)
	return post
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t)

	resp := doJSON(t, app, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthRequiredEndpoints(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t)

	cases := []struct {
		method, path string
	}{
		{"POST", "/api/posts"},
		{"PUT", "/api/posts/p1"},
		{"DELETE", "/api/posts/p1"},
		{"POST", "/api/posts/p1/like"},
		{"POST", "/api/posts/p1/comments"},
		{"PUT", "/api/comments/c1"},
		{"GET", "/api/cats"},
		{"POST", "/api/emotions"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := doJSON(t, app, tc.method, tc.path, "", map[string]any{})
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRejectsBadToken(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t)
	resp := doJSON(t, app, "POST", "/api/posts", "garbage", map[string]any{})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndGetPost(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)

	created := createPost(t, app, token, map[string]any{
		"type": "review", "title": "Heat", "content": "slaps",
		"movieTitle": "Heat", "rating": 5, "tags": []string{"crime"},
	})
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, adaProfile.ID, created.AuthorID)
	assert.Equal(t, adaProfile.Name, created.AuthorName)
	assert.Equal(t, "new", created.Status)
	assert.Zero(t, created.Likes)

	resp := doJSON(t, app, "GET", "/api/posts/"+created.ID, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got models.Post
	decodeBody(t, resp, &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Heat", got.Title)
}

func TestCreatePostValidation(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)

	resp := doJSON(t, app, "POST", "/api/posts", token, map[string]any{
		"type": "review", "content": "no title",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestGetPostsPaginates(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)
	for i := 0; i < 5; i++ {
		createPost(t, app, token, map[string]any{
			"type": "general", "title": "post", "content": "body",
		})
	}

	resp := doJSON(t, app, "GET", "/api/posts/?limit=3", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page struct {
		Posts      []models.Post `json:"posts"`
		NextCursor string        `json:"nextCursor"`
		HasMore    bool          `json:"hasMore"`
	}
	decodeBody(t, resp, &page)
	assert.Len(t, page.Posts, 3)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)

	resp = doJSON(t, app, "GET", "/api/posts/?limit=3&cursor="+page.NextCursor, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &page)
	assert.Len(t, page.Posts, 2)
	assert.False(t, page.HasMore)
}

func TestGetPostsFiltersByType(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)
	createPost(t, app, token, map[string]any{
		"type": "review", "title": "r", "content": "c", "rating": 4,
	})
	createPost(t, app, token, map[string]any{
		"type": "discussion", "title": "d", "content": "c",
	})

	resp := doJSON(t, app, "GET", "/api/posts/?type=review", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page struct {
		Posts []models.Post `json:"posts"`
	}
	decodeBody(t, resp, &page)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "review", page.Posts[0].Type)
}

func TestUpdatePostOwnershipEnforced(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	ownerToken := authToken(t, srv, adaProfile)
	created := createPost(t, app, ownerToken, map[string]any{
		"type": "general", "title": "mine", "content": "body",
	})

	resp := doJSON(t, app, "PUT", "/api/posts/"+created.ID, ownerToken, map[string]any{
		"title": "mine, edited",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var updated models.Post
	decodeBody(t, resp, &updated)
	assert.Equal(t, "mine, edited", updated.Title)

	eveToken := authToken(t, srv, identity.Profile{ID: "u2", Name: "Eve"})
	resp = doJSON(t, app, "PUT", "/api/posts/"+created.ID, eveToken, map[string]any{
		"title": "hijacked",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestDeletePostCascades(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)
	created := createPost(t, app, token, map[string]any{
		"type": "general", "title": "doomed", "content": "body",
	})
	resp := doJSON(t, app, "POST", "/api/posts/"+created.ID+"/comments", token, map[string]any{
		"content": "last words",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, "DELETE", "/api/posts/"+created.ID, token, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/api/posts/"+created.ID, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTogglePostLike(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)
	created := createPost(t, app, token, map[string]any{
		"type": "general", "title": "likeable", "content": "body",
	})

	resp := doJSON(t, app, "POST", "/api/posts/"+created.ID+"/like", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var outcome repository.LikeOutcome
	decodeBody(t, resp, &outcome)
	assert.True(t, outcome.Liked)
	assert.Equal(t, int64(1), outcome.Likes)

	resp = doJSON(t, app, "POST", "/api/posts/"+created.ID+"/like", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &outcome)
	assert.False(t, outcome.Liked)
	assert.Zero(t, outcome.Likes)
}

func TestIncrementViewsAlwaysNoContent(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)
	created := createPost(t, app, token, map[string]any{
		"type": "general", "title": "watched", "content": "body",
	})

	resp := doJSON(t, app, "POST", "/api/posts/"+created.ID+"/views", "", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/api/posts/missing/views", "", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestCommentThread(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)
	created := createPost(t, app, token, map[string]any{
		"type": "discussion", "title": "talk", "content": "body",
	})

	resp := doJSON(t, app, "POST", "/api/posts/"+created.ID+"/comments", token, map[string]any{
		"content": "root",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var root models.Comment
	decodeBody(t, resp, &root)

	resp = doJSON(t, app, "POST", "/api/posts/"+created.ID+"/comments", token, map[string]any{
		"content": "reply", "parentCommentId": root.ID,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/api/posts/"+created.ID+"/comments", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var forest []models.Comment
	decodeBody(t, resp, &forest)
	require.Len(t, forest, 1)
	require.Len(t, forest[0].Replies, 1)
	assert.Equal(t, "reply", forest[0].Replies[0].Content)
}

func TestCatLifecycle(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)

	resp := doJSON(t, app, "POST", "/api/cats", token, map[string]any{
		"name": "Mochi", "emoji": "🐱", "type": "tabby",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var cat models.Cat
	decodeBody(t, resp, &cat)
	assert.Equal(t, int64(1), cat.Level)

	// A review feeds the companion.
	createPost(t, app, token, map[string]any{
		"type": "review", "title": "Heat", "content": "slaps", "rating": 5,
	})

	resp = doJSON(t, app, "GET", "/api/cats", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var cats []models.Cat
	decodeBody(t, resp, &cats)
	require.Len(t, cats, 1)
	assert.Equal(t, int64(models.ExperienceReview), cats[0].Experience)
}

func TestEmotionLifecycle(t *testing.T) {
	t.Parallel()
	srv, app := newTestServer(t)
	token := authToken(t, srv, adaProfile)

	resp := doJSON(t, app, "POST", "/api/emotions", token, map[string]any{
		"movieTitle": "Alien", "emotion": "dread", "intensity": 8,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var record models.EmotionRecord
	decodeBody(t, resp, &record)
	assert.Equal(t, adaProfile.ID, record.UserID)

	resp = doJSON(t, app, "GET", "/api/emotions", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var records []models.EmotionRecord
	decodeBody(t, resp, &records)
	require.Len(t, records, 1)

	resp = doJSON(t, app, "DELETE", "/api/emotions/"+record.ID, token, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
