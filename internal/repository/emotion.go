package repository

import (
	"context"
	"fmt"

	"catnip/internal/docstore"
	"catnip/internal/models"
	"catnip/internal/observability"
)

// EmotionRepository manages a user's private mood-journal entries. The
// companion experience granted for journaling is orchestrated a layer up, not
// here.
type EmotionRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*models.EmotionRecord, error)
	GetByID(ctx context.Context, id string) (*models.EmotionRecord, error)
	Create(ctx context.Context, record *models.EmotionRecord) (*models.EmotionRecord, error)
	Update(ctx context.Context, id string, update models.EmotionUpdate) (*models.EmotionRecord, error)
	Delete(ctx context.Context, id string) error
}

type emotionRepository struct {
	store  docstore.Store
	logger *observability.RepoLogger
}

// NewEmotionRepository creates a new emotion repository.
func NewEmotionRepository(store docstore.Store) EmotionRepository {
	return &emotionRepository{
		store:  store,
		logger: observability.NewRepoLogger(CollectionEmotions),
	}
}

func decodeEmotion(doc docstore.Document) (*models.EmotionRecord, error) {
	var record models.EmotionRecord
	if err := docstore.Decode(doc, &record); err != nil {
		return nil, fmt.Errorf("decode emotion record: %w", err)
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}
	return &record, nil
}

// ListByUser returns the user's journal, newest first.
func (r *emotionRepository) ListByUser(ctx context.Context, userID string) ([]*models.EmotionRecord, error) {
	defer observability.TrackOp("list", CollectionEmotions)()

	docs, err := listAll(ctx, r.store, CollectionEmotions, docstore.Query{
		Predicates: []docstore.Predicate{docstore.Eq("userId", userID)},
		OrderBy:    docstore.OrderBy{Field: docstore.FieldCreatedAt, Desc: true},
	})
	if err != nil {
		return nil, fmt.Errorf("list emotions for user %s: %w", userID, err)
	}

	records := make([]*models.EmotionRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := decodeEmotion(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// GetByID returns (nil, nil) when the record does not exist.
func (r *emotionRepository) GetByID(ctx context.Context, id string) (*models.EmotionRecord, error) {
	doc, err := r.store.Get(ctx, CollectionEmotions, id)
	if err != nil {
		return nil, fmt.Errorf("get emotion record %s: %w", id, err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeEmotion(doc)
}

func (r *emotionRepository) Create(ctx context.Context, record *models.EmotionRecord) (*models.EmotionRecord, error) {
	defer observability.TrackOp("create", CollectionEmotions)()

	record.ID = docstore.NewID()
	if record.Tags == nil {
		record.Tags = []string{}
	}

	fields, err := docstore.Encode(record)
	if err != nil {
		return nil, fmt.Errorf("encode emotion record: %w", err)
	}
	if err := r.store.Batch(ctx, []docstore.BatchOp{docstore.InsertOp(CollectionEmotions, record.ID, fields)}); err != nil {
		r.logger.LogError(ctx, err, "create")
		return nil, fmt.Errorf("create emotion record: %w", err)
	}
	r.logger.LogWrite(ctx, "create", map[string]any{"id": record.ID, "userId": record.UserID})
	return r.GetByID(ctx, record.ID)
}

func (r *emotionRepository) Update(ctx context.Context, id string, update models.EmotionUpdate) (*models.EmotionRecord, error) {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, models.NewValidationError("no fields to update")
	}

	record, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, models.NewNotFoundError("emotion record", id)
	}

	if err := r.store.Update(ctx, CollectionEmotions, id, fields); err != nil {
		r.logger.LogError(ctx, err, "update")
		return nil, fmt.Errorf("update emotion record %s: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

func (r *emotionRepository) Delete(ctx context.Context, id string) error {
	record, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return models.NewNotFoundError("emotion record", id)
	}
	if err := r.store.Delete(ctx, CollectionEmotions, id); err != nil {
		r.logger.LogError(ctx, err, "delete")
		return fmt.Errorf("delete emotion record %s: %w", id, err)
	}
	return nil
}
