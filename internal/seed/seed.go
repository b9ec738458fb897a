// Package seed provides development data seeding. Everything is written
// through the repositories so the denormalized counters come out consistent
// with the records they count.
package seed

import (
	"context"
	"fmt"
	"log"

	"catnip/internal/identity"
	"catnip/internal/models"
	"catnip/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

// Options configures the seeder.
type Options struct {
	NumUsers        int
	PostsPerUser    int
	CommentsPerPost int
	CatsPerUser     int
	EmotionsPerUser int
	LikeProbability float64
	Seed            int64
}

// DefaultOptions returns a small but lively data set.
func DefaultOptions() Options {
	return Options{
		NumUsers:        8,
		PostsPerUser:    4,
		CommentsPerPost: 3,
		CatsPerUser:     2,
		EmotionsPerUser: 5,
		LikeProbability: 0.4,
	}
}

var (
	movieTitles = []string{
		"The Seventh Reel", "Midnight in Marseille", "Paper Planets",
		"The Last Projectionist", "Static", "A Winter's Heist",
		"Neon Harvest", "The Cartographer's Daughter", "Low Tide",
		"Every Other Sunday", "The Glass Orchard", "Night Ferry",
	}
	emotions = []struct {
		name  string
		emoji string
	}{
		{"moved", "🥹"}, {"thrilled", "🤩"}, {"melancholy", "🌧️"},
		{"nostalgic", "📼"}, {"terrified", "😱"}, {"inspired", "✨"},
		{"confused", "🤔"}, {"cozy", "☕"},
	}
	catTypes       = []string{"critic", "dreamer", "archivist", "popcorn"}
	catSpecialties = []string{"film noir", "musicals", "slow cinema", "creature features", "documentaries"}
	postTags       = []string{"classic", "rewatch", "hidden-gem", "oscar-bait", "midnight", "cried", "plot-twist", "soundtrack"}
)

// Seeder writes fake community data through the repositories.
type Seeder struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	cats     repository.CatRepository
	emotions repository.EmotionRepository
	faker    *gofakeit.Faker
}

// New creates a Seeder over the given repositories.
func New(users repository.UserRepository, posts repository.PostRepository, comments repository.CommentRepository, cats repository.CatRepository, emotionRepo repository.EmotionRepository, seed int64) *Seeder {
	return &Seeder{
		users:    users,
		posts:    posts,
		comments: comments,
		cats:     cats,
		emotions: emotionRepo,
		faker:    gofakeit.New(seed),
	}
}

// Run seeds the store per opts.
func (s *Seeder) Run(ctx context.Context, opts Options) error {
	profiles := make([]identity.Profile, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		profile := identity.Profile{
			ID:     s.faker.UUID(),
			Name:   s.faker.Name(),
			Avatar: s.faker.Emoji(),
		}
		if _, err := s.users.Ensure(ctx, profile); err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		profiles = append(profiles, profile)
	}
	log.Printf("seeded %d users", len(profiles))

	for _, profile := range profiles {
		for i := 0; i < opts.CatsPerUser; i++ {
			if err := s.seedCat(ctx, profile); err != nil {
				return err
			}
		}
		for i := 0; i < opts.EmotionsPerUser; i++ {
			if err := s.seedEmotion(ctx, profile); err != nil {
				return err
			}
		}
	}

	var posts []*models.Post
	for _, profile := range profiles {
		for i := 0; i < opts.PostsPerUser; i++ {
			post, err := s.seedPost(ctx, profile)
			if err != nil {
				return err
			}
			posts = append(posts, post)
		}
	}
	log.Printf("seeded %d posts", len(posts))

	for _, post := range posts {
		var thread []*models.Comment
		for i := 0; i < opts.CommentsPerPost; i++ {
			author := profiles[s.faker.IntRange(0, len(profiles)-1)]
			comment := &models.Comment{
				PostID:       post.ID,
				AuthorID:     author.ID,
				AuthorName:   author.Name,
				AuthorAvatar: author.Avatar,
				Content:      s.faker.Sentence(s.faker.IntRange(6, 16)),
			}
			// Half the later comments reply to an earlier one.
			if len(thread) > 0 && s.faker.Bool() {
				comment.ParentCommentID = thread[s.faker.IntRange(0, len(thread)-1)].ID
			}
			created, err := s.comments.Add(ctx, comment)
			if err != nil {
				return fmt.Errorf("seed comment: %w", err)
			}
			thread = append(thread, created)
		}

		for _, profile := range profiles {
			if s.faker.Float64Range(0, 1) < opts.LikeProbability {
				if _, err := s.posts.ToggleLike(ctx, post.ID, profile.ID); err != nil {
					return fmt.Errorf("seed like: %w", err)
				}
			}
		}
	}
	return nil
}

func (s *Seeder) seedPost(ctx context.Context, profile identity.Profile) (*models.Post, error) {
	types := []string{models.PostTypeReview, models.PostTypeDiscussion, models.PostTypeEmotion, models.PostTypeGeneral}
	postType := types[s.faker.IntRange(0, len(types)-1)]

	post := &models.Post{
		Type:         postType,
		AuthorID:     profile.ID,
		AuthorName:   profile.Name,
		AuthorAvatar: profile.Avatar,
		Title:        s.faker.Sentence(s.faker.IntRange(3, 7)),
		Content:      s.faker.Paragraph(1, 3, 12, " "),
		MovieTitle:   movieTitles[s.faker.IntRange(0, len(movieTitles)-1)],
		Tags:         s.pickTags(),
	}
	switch postType {
	case models.PostTypeReview:
		post.Rating = s.faker.IntRange(1, 5)
	case models.PostTypeEmotion:
		mood := emotions[s.faker.IntRange(0, len(emotions)-1)]
		post.Emotion = mood.name
		post.EmotionEmoji = mood.emoji
		post.EmotionIntensity = s.faker.IntRange(1, 10)
	}

	created, err := s.posts.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("seed post: %w", err)
	}
	return created, nil
}

func (s *Seeder) seedCat(ctx context.Context, profile identity.Profile) error {
	cat := &models.Cat{
		UserID:      profile.ID,
		Name:        s.faker.PetName(),
		Emoji:       "🐱",
		Type:        catTypes[s.faker.IntRange(0, len(catTypes)-1)],
		Specialty:   catSpecialties[s.faker.IntRange(0, len(catSpecialties)-1)],
		Description: s.faker.Sentence(8),
	}
	if _, err := s.cats.Add(ctx, cat); err != nil {
		return fmt.Errorf("seed cat: %w", err)
	}
	return nil
}

func (s *Seeder) seedEmotion(ctx context.Context, profile identity.Profile) error {
	mood := emotions[s.faker.IntRange(0, len(emotions)-1)]
	record := &models.EmotionRecord{
		UserID:     profile.ID,
		MovieTitle: movieTitles[s.faker.IntRange(0, len(movieTitles)-1)],
		Emotion:    mood.name,
		Emoji:      mood.emoji,
		Text:       s.faker.Sentence(s.faker.IntRange(5, 14)),
		Intensity:  s.faker.IntRange(1, 10),
		Tags:       s.pickTags(),
	}
	if _, err := s.emotions.Create(ctx, record); err != nil {
		return fmt.Errorf("seed emotion: %w", err)
	}
	return nil
}

func (s *Seeder) pickTags() []string {
	n := s.faker.IntRange(0, 3)
	tags := make([]string, 0, n)
	for len(tags) < n {
		tag := postTags[s.faker.IntRange(0, len(postTags)-1)]
		seen := false
		for _, t := range tags {
			if t == tag {
				seen = true
			}
		}
		if !seen {
			tags = append(tags, tag)
		}
	}
	return tags
}
