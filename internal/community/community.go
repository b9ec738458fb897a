// Package community implements the session store: a mutex-guarded cache of
// feed posts, the focused post's comment thread, companions and the mood
// journal, together with the actions that mutate them through the
// repositories. Each data family tracks its own load status so a failure in
// one never blocks the others.
package community

import (
	"context"
	"sync"

	"catnip/internal/identity"
	"catnip/internal/models"
	"catnip/internal/repository"
)

// Family identifies one independently loaded slice of session state.
type Family string

const (
	FamilyPosts    Family = "posts"
	FamilyComments Family = "comments"
	FamilyCats     Family = "cats"
	FamilyEmotions Family = "emotions"
)

// Status is a family's position in its load lifecycle. Loaded and errored
// both transition back to loading on refetch.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusErrored Status = "errored"
)

type familyState struct {
	status Status
	err    error
}

// Store is the per-session state holder. All exported methods are safe for
// concurrent use; the mutex is never held across repository calls, so slow
// loads in one family do not stall the others.
type Store struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	cats     repository.CatRepository
	emotions repository.EmotionRepository
	users    repository.UserRepository
	who      identity.Provider

	mu       sync.Mutex
	families map[Family]*familyState

	postList    []*models.Post
	nextCursor  string
	hasMore     bool
	filters     models.PostFilters
	pageSize    int
	loadingMore bool

	currentPost *models.Post
	forest      []*models.Comment

	catList     []*models.Cat
	emotionList []*models.EmotionRecord
}

// Repositories bundles the data access a Store works through.
type Repositories struct {
	Posts    repository.PostRepository
	Comments repository.CommentRepository
	Cats     repository.CatRepository
	Emotions repository.EmotionRepository
	Users    repository.UserRepository
}

// NewStore creates a session store resolving the current user through who.
func NewStore(repos Repositories, who identity.Provider) *Store {
	return &Store{
		posts:    repos.Posts,
		comments: repos.Comments,
		cats:     repos.Cats,
		emotions: repos.Emotions,
		users:    repos.Users,
		who:      who,
		families: map[Family]*familyState{
			FamilyPosts:    {status: StatusIdle},
			FamilyComments: {status: StatusIdle},
			FamilyCats:     {status: StatusIdle},
			FamilyEmotions: {status: StatusIdle},
		},
	}
}

// FamilyStatus returns the family's load status and its last error, if any.
func (s *Store) FamilyStatus(f Family) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.families[f]
	if st == nil {
		return StatusIdle, nil
	}
	return st.status, st.err
}

// ClearErrors drops every family's error. Status and last-error share one
// per-family enum, so an errored family has to land somewhere concrete:
// loaded when it still holds data from a previous fetch, idle when it is
// empty. Neither path restarts a fetch; a refetch is the only way back to
// loading.
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f, st := range s.families {
		if st.status != StatusErrored {
			st.err = nil
			continue
		}
		st.err = nil
		if s.familyHasData(f) {
			st.status = StatusLoaded
		} else {
			st.status = StatusIdle
		}
	}
}

// familyHasData is called with the mutex held.
func (s *Store) familyHasData(f Family) bool {
	switch f {
	case FamilyPosts:
		return len(s.postList) > 0 || s.currentPost != nil
	case FamilyComments:
		return len(s.forest) > 0
	case FamilyCats:
		return len(s.catList) > 0
	case FamilyEmotions:
		return len(s.emotionList) > 0
	}
	return false
}

func (s *Store) begin(f Family) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.families[f]
	st.status = StatusLoading
	st.err = nil
}

func (s *Store) fail(f Family, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.families[f]
	st.status = StatusErrored
	st.err = err
}

func (s *Store) finish(f Family) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.families[f]
	st.status = StatusLoaded
	st.err = nil
}

// requireUser resolves the authenticated identity or fails fast, before any
// repository or cache effect.
func (s *Store) requireUser(ctx context.Context) (identity.Profile, error) {
	profile, ok := s.who.CurrentUser(ctx)
	if !ok {
		return identity.Profile{}, models.NewAuthRequiredError()
	}
	return profile, nil
}
