package community

import (
	"context"

	"catnip/internal/models"
)

// CatInput carries the fields a caller may set when adopting a companion.
type CatInput struct {
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
}

// Validate checks the input before any storage effect.
func (in CatInput) Validate() error {
	if in.Name == "" {
		return models.NewValidationError("name is required")
	}
	return nil
}

// Cats returns the cached companions of the authenticated user.
func (s *Store) Cats() []*models.Cat {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats := make([]*models.Cat, len(s.catList))
	copy(cats, s.catList)
	return cats
}

// FetchCats loads the authenticated user's companions.
func (s *Store) FetchCats(ctx context.Context) error {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return err
	}
	s.begin(FamilyCats)

	cats, err := s.cats.ListByUser(ctx, profile.ID)
	if err != nil {
		s.fail(FamilyCats, err)
		return err
	}

	s.mu.Lock()
	s.catList = cats
	s.mu.Unlock()
	s.finish(FamilyCats)
	return nil
}

// AddCat adopts a companion for the authenticated user.
func (s *Store) AddCat(ctx context.Context, input CatInput) (*models.Cat, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	cat := &models.Cat{
		UserID:      profile.ID,
		Name:        input.Name,
		Emoji:       input.Emoji,
		Type:        input.Type,
		Description: input.Description,
		Specialty:   input.Specialty,
	}
	created, err := s.cats.Add(ctx, cat)
	if err != nil {
		s.fail(FamilyCats, err)
		return nil, err
	}

	s.mu.Lock()
	s.catList = append(s.catList, created)
	s.mu.Unlock()
	return created, nil
}

// UpdateCat renames or redecorates the caller's own companion.
func (s *Store) UpdateCat(ctx context.Context, id string, update models.CatUpdate) (*models.Cat, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.cats.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, models.NewNotFoundError("cat", id)
	}
	if existing.UserID != profile.ID {
		return nil, models.NewUnauthorizedError("you can only modify your own cats")
	}

	updated, err := s.cats.Update(ctx, id, update)
	if err != nil {
		s.fail(FamilyCats, err)
		return nil, err
	}

	s.mu.Lock()
	for i, c := range s.catList {
		if c.ID == id {
			s.catList[i] = updated
		}
	}
	s.mu.Unlock()
	return updated, nil
}
