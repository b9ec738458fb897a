package community

import (
	"context"

	"catnip/internal/models"
)

// EmotionInput carries the fields a caller may set when journaling a mood.
type EmotionInput struct {
	MovieTitle string   `json:"movieTitle"`
	Emotion    string   `json:"emotion"`
	Emoji      string   `json:"emoji,omitempty"`
	Text       string   `json:"text,omitempty"`
	Intensity  int      `json:"intensity"`
	Tags       []string `json:"tags,omitempty"`
}

// Validate checks the input before any storage effect.
func (in EmotionInput) Validate() error {
	if in.MovieTitle == "" {
		return models.NewValidationError("movieTitle is required")
	}
	if in.Emotion == "" {
		return models.NewValidationError("emotion is required")
	}
	if in.Intensity < 1 || in.Intensity > 10 {
		return models.NewValidationError("intensity must be between 1 and 10")
	}
	return nil
}

// Emotions returns the cached journal, newest first.
func (s *Store) Emotions() []*models.EmotionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]*models.EmotionRecord, len(s.emotionList))
	copy(records, s.emotionList)
	return records
}

// FetchEmotions loads the authenticated user's journal.
func (s *Store) FetchEmotions(ctx context.Context) error {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return err
	}
	s.begin(FamilyEmotions)

	records, err := s.emotions.ListByUser(ctx, profile.ID)
	if err != nil {
		s.fail(FamilyEmotions, err)
		return err
	}

	s.mu.Lock()
	s.emotionList = records
	s.mu.Unlock()
	s.finish(FamilyEmotions)
	return nil
}

// AddEmotion journals a mood for the authenticated user, then grants
// companion experience. The entry survives a failed grant.
func (s *Store) AddEmotion(ctx context.Context, input EmotionInput) (*models.EmotionRecord, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	record := &models.EmotionRecord{
		UserID:     profile.ID,
		MovieTitle: input.MovieTitle,
		Emotion:    input.Emotion,
		Emoji:      input.Emoji,
		Text:       input.Text,
		Intensity:  input.Intensity,
		Tags:       input.Tags,
	}
	created, err := s.emotions.Create(ctx, record)
	if err != nil {
		s.fail(FamilyEmotions, err)
		return nil, err
	}

	s.mu.Lock()
	s.emotionList = append([]*models.EmotionRecord{created}, s.emotionList...)
	s.mu.Unlock()

	s.grantExperience(ctx, profile.ID, models.ActivityEmotion)
	return created, nil
}

// UpdateEmotion edits the caller's own journal entry.
func (s *Store) UpdateEmotion(ctx context.Context, id string, update models.EmotionUpdate) (*models.EmotionRecord, error) {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.emotions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, models.NewNotFoundError("emotion record", id)
	}
	if existing.UserID != profile.ID {
		return nil, models.NewUnauthorizedError("you can only modify your own journal")
	}

	updated, err := s.emotions.Update(ctx, id, update)
	if err != nil {
		s.fail(FamilyEmotions, err)
		return nil, err
	}

	s.mu.Lock()
	for i, r := range s.emotionList {
		if r.ID == id {
			s.emotionList[i] = updated
		}
	}
	s.mu.Unlock()
	return updated, nil
}

// DeleteEmotion removes the caller's own journal entry.
func (s *Store) DeleteEmotion(ctx context.Context, id string) error {
	profile, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	existing, err := s.emotions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return models.NewNotFoundError("emotion record", id)
	}
	if existing.UserID != profile.ID {
		return models.NewUnauthorizedError("you can only modify your own journal")
	}

	if err := s.emotions.Delete(ctx, id); err != nil {
		s.fail(FamilyEmotions, err)
		return err
	}

	s.mu.Lock()
	out := s.emotionList[:0]
	for _, r := range s.emotionList {
		if r.ID != id {
			out = append(out, r)
		}
	}
	s.emotionList = out
	s.mu.Unlock()
	return nil
}
