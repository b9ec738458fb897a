package repository

import (
	"context"
	"testing"

	"catnip/internal/docstore"
	"catnip/internal/identity"
	"catnip/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) docstore.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return docstore.NewRedis(client, Schema())
}

func seedUser(t *testing.T, store docstore.Store, id, name string) *models.User {
	t.Helper()
	user, err := NewUserRepository(store).Ensure(context.Background(), identity.Profile{
		ID:     id,
		Name:   name,
		Avatar: "😺",
	})
	require.NoError(t, err)
	return user
}

func seedPost(t *testing.T, store docstore.Store, authorID, postType string) *models.Post {
	t.Helper()
	post, err := NewPostRepository(store).Create(context.Background(), &models.Post{
		Type:       postType,
		AuthorID:   authorID,
		AuthorName: "Author",
		Title:      "a title",
		Content:    "some content",
	})
	require.NoError(t, err)
	return post
}
