package community

import (
	"context"
	"testing"

	"catnip/internal/identity"
	"catnip/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddEmotionFrontSplices(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AddEmotion(ctx, EmotionInput{
		MovieTitle: "Stalker", Emotion: "awe", Intensity: 9,
	})
	require.NoError(t, err)
	second, err := store.AddEmotion(ctx, EmotionInput{
		MovieTitle: "Solaris", Emotion: "longing", Intensity: 7,
	})
	require.NoError(t, err)

	records := store.Emotions()
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, first.ID, records[1].ID)
	assert.Equal(t, testProfile.ID, records[0].UserID)
}

func TestStore_AddEmotionGrantsExperience(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.AddCat(ctx, CatInput{Name: "Mochi"})
	require.NoError(t, err)

	_, err = store.AddEmotion(ctx, EmotionInput{
		MovieTitle: "Alien", Emotion: "dread", Intensity: 8,
	})
	require.NoError(t, err)

	require.NoError(t, store.FetchCats(ctx))
	cats := store.Cats()
	require.Len(t, cats, 1)
	assert.Equal(t, int64(models.ExperienceEmotion), cats[0].Experience)
	assert.Equal(t, int64(1), cats[0].Stats.Emotions)
}

func TestStore_AddEmotionValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input EmotionInput
	}{
		{"missing movie", EmotionInput{Emotion: "awe", Intensity: 5}},
		{"missing emotion", EmotionInput{MovieTitle: "Heat", Intensity: 5}},
		{"intensity too low", EmotionInput{MovieTitle: "Heat", Emotion: "awe", Intensity: 0}},
		{"intensity too high", EmotionInput{MovieTitle: "Heat", Emotion: "awe", Intensity: 11}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.AddEmotion(ctx, tc.input)
			assert.True(t, models.IsCode(err, "VALIDATION_ERROR"))
		})
	}
}

func TestStore_FetchEmotionsRequiresAuth(t *testing.T) {
	t.Parallel()
	store := newAnonymousStore(t)
	err := store.FetchEmotions(context.Background())
	assert.True(t, models.IsCode(err, "AUTH_REQUIRED"))
}

func TestStore_UpdateEmotionOwnership(t *testing.T) {
	t.Parallel()
	repos := newTestRepos(t)
	owner := NewStore(repos, identity.StaticProvider{Profile: testProfile, Authenticated: true})
	ctx := context.Background()
	record, err := owner.AddEmotion(ctx, EmotionInput{
		MovieTitle: "Heat", Emotion: "tension", Intensity: 6,
	})
	require.NoError(t, err)

	intensity := 9
	updated, err := owner.UpdateEmotion(ctx, record.ID, models.EmotionUpdate{Intensity: &intensity})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Intensity)
	assert.Equal(t, 9, owner.Emotions()[0].Intensity)

	intruder := NewStore(repos, identity.StaticProvider{
		Profile: identity.Profile{ID: "u2", Name: "Eve"}, Authenticated: true,
	})
	_, err = intruder.UpdateEmotion(ctx, record.ID, models.EmotionUpdate{Intensity: &intensity})
	assert.True(t, models.IsCode(err, "UNAUTHORIZED"))
}

func TestStore_DeleteEmotion(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	record, err := store.AddEmotion(ctx, EmotionInput{
		MovieTitle: "Heat", Emotion: "tension", Intensity: 6,
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteEmotion(ctx, record.ID))
	assert.Empty(t, store.Emotions())

	assert.True(t, models.IsCode(store.DeleteEmotion(ctx, record.ID), "NOT_FOUND"))
}
