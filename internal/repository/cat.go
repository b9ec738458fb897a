package repository

import (
	"context"
	"errors"
	"fmt"

	"catnip/internal/docstore"
	"catnip/internal/models"
	"catnip/internal/observability"
)

// CatRepository manages a user's gamified companions.
type CatRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*models.Cat, error)
	GetByID(ctx context.Context, id string) (*models.Cat, error)
	Add(ctx context.Context, cat *models.Cat) (*models.Cat, error)
	Update(ctx context.Context, id string, update models.CatUpdate) (*models.Cat, error)
	AddExperience(ctx context.Context, userID, activity string) error
}

type catRepository struct {
	store  docstore.Store
	logger *observability.RepoLogger
}

// NewCatRepository creates a new cat repository.
func NewCatRepository(store docstore.Store) CatRepository {
	return &catRepository{
		store:  store,
		logger: observability.NewRepoLogger(CollectionCats),
	}
}

func decodeCat(doc docstore.Document) (*models.Cat, error) {
	var cat models.Cat
	if err := docstore.Decode(doc, &cat); err != nil {
		return nil, fmt.Errorf("decode cat: %w", err)
	}
	if cat.Achievements == nil {
		cat.Achievements = []string{}
	}
	return &cat, nil
}

// ListByUser returns the user's companions, oldest first.
func (r *catRepository) ListByUser(ctx context.Context, userID string) ([]*models.Cat, error) {
	defer observability.TrackOp("list", CollectionCats)()

	docs, err := listAll(ctx, r.store, CollectionCats, docstore.Query{
		Predicates: []docstore.Predicate{docstore.Eq("userId", userID)},
		OrderBy:    docstore.OrderBy{Field: docstore.FieldCreatedAt},
	})
	if err != nil {
		return nil, fmt.Errorf("list cats for user %s: %w", userID, err)
	}

	cats := make([]*models.Cat, 0, len(docs))
	for _, doc := range docs {
		cat, err := decodeCat(doc)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// GetByID returns (nil, nil) when the cat does not exist.
func (r *catRepository) GetByID(ctx context.Context, id string) (*models.Cat, error) {
	doc, err := r.store.Get(ctx, CollectionCats, id)
	if err != nil {
		return nil, fmt.Errorf("get cat %s: %w", id, err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeCat(doc)
}

// Add inserts a companion. Level is derived from whatever experience it starts
// with; the two are never stored independently.
func (r *catRepository) Add(ctx context.Context, cat *models.Cat) (*models.Cat, error) {
	defer observability.TrackOp("add", CollectionCats)()

	cat.ID = docstore.NewID()
	cat.Level = models.LevelForExperience(cat.Experience)
	if cat.MaxExperience == 0 {
		cat.MaxExperience = models.ExperiencePerLevel
	}
	if cat.Achievements == nil {
		cat.Achievements = []string{}
	}

	fields, err := docstore.Encode(cat)
	if err != nil {
		return nil, fmt.Errorf("encode cat: %w", err)
	}
	if err := r.store.Batch(ctx, []docstore.BatchOp{docstore.InsertOp(CollectionCats, cat.ID, fields)}); err != nil {
		r.logger.LogError(ctx, err, "add")
		return nil, fmt.Errorf("add cat: %w", err)
	}
	r.logger.LogWrite(ctx, "add", map[string]any{"id": cat.ID, "userId": cat.UserID})
	return r.GetByID(ctx, cat.ID)
}

func (r *catRepository) Update(ctx context.Context, id string, update models.CatUpdate) (*models.Cat, error) {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, models.NewValidationError("no fields to update")
	}

	cat, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, models.NewNotFoundError("cat", id)
	}

	if err := r.store.Update(ctx, CollectionCats, id, fields); err != nil {
		r.logger.LogError(ctx, err, "update")
		return nil, fmt.Errorf("update cat %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

// AddExperience fans the activity's points out to every companion the user
// owns. Each cat is updated independently, not transactionally: one failed
// update neither blocks nor rolls back the others. Unknown activity kinds
// grant nothing.
func (r *catRepository) AddExperience(ctx context.Context, userID, activity string) error {
	points := models.ExperienceForActivity(activity)
	if points == 0 {
		return nil
	}

	cats, err := r.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	var errs []error
	for _, cat := range cats {
		experience := cat.Experience + points
		stats := cat.Stats
		switch activity {
		case models.ActivityReview:
			stats.Reviews++
		case models.ActivityDiscussion:
			stats.Discussions++
		case models.ActivityEmotion:
			stats.Emotions++
		}

		fields := docstore.Document{
			"experience": experience,
			"level":      models.LevelForExperience(experience),
			"stats":      stats,
		}
		if err := r.store.Update(ctx, CollectionCats, cat.ID, fields); err != nil {
			r.logger.LogError(ctx, err, "add_experience")
			errs = append(errs, fmt.Errorf("cat %s: %w", cat.ID, err))
			continue
		}
		observability.ExperienceGranted.WithLabelValues(activity).Add(float64(points))
	}
	return errors.Join(errs...)
}
