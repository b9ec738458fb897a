package repository

import (
	"context"
	"fmt"

	"catnip/internal/docstore"
	"catnip/internal/identity"
	"catnip/internal/models"
	"catnip/internal/observability"
)

// UserRepository mirrors externally managed identities into local user records
// so activity counters have a document to land on.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Ensure(ctx context.Context, profile identity.Profile) (*models.User, error)
}

type userRepository struct {
	store  docstore.Store
	logger *observability.RepoLogger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepository{
		store:  store,
		logger: observability.NewRepoLogger(CollectionUsers),
	}
}

func decodeUser(doc docstore.Document) (*models.User, error) {
	var user models.User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// GetByID returns (nil, nil) when the user does not exist.
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	if doc == nil {
		return nil, nil
	}
	return decodeUser(doc)
}

// Ensure creates the local mirror for the profile if it does not exist yet and
// refreshes the display snapshot when it drifted. Counters start at zero and
// are only ever moved by increments.
func (r *userRepository) Ensure(ctx context.Context, profile identity.Profile) (*models.User, error) {
	defer observability.TrackOp("ensure", CollectionUsers)()

	user, err := r.GetByID(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		fields, err := docstore.Encode(models.User{
			ID:     profile.ID,
			Name:   profile.Name,
			Avatar: profile.Avatar,
		})
		if err != nil {
			return nil, fmt.Errorf("encode user: %w", err)
		}
		if err := r.store.Batch(ctx, []docstore.BatchOp{docstore.InsertOp(CollectionUsers, profile.ID, fields)}); err != nil {
			r.logger.LogError(ctx, err, "ensure")
			return nil, fmt.Errorf("create user %s: %w", profile.ID, err)
		}
		r.logger.LogWrite(ctx, "ensure", map[string]any{"id": profile.ID})
		return r.GetByID(ctx, profile.ID)
	}

	if user.Name != profile.Name || user.Avatar != profile.Avatar {
		fields := docstore.Document{"name": profile.Name, "avatar": profile.Avatar}
		if err := r.store.Update(ctx, CollectionUsers, profile.ID, fields); err != nil {
			r.logger.LogError(ctx, err, "ensure")
			return nil, fmt.Errorf("refresh user %s: %w", profile.ID, err)
		}
		return r.GetByID(ctx, profile.ID)
	}
	return user, nil
}
