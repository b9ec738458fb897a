// Command main seeds the configured document store with development data.
package main

import (
	"context"
	"flag"
	"log"

	"catnip/internal/config"
	"catnip/internal/repository"
	"catnip/internal/seed"
	"catnip/internal/server"
)

func main() {
	users := flag.Int("users", 0, "number of users to seed (0 = default)")
	posts := flag.Int("posts", 0, "posts per user (0 = default)")
	randSeed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := server.OpenStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}

	opts := seed.DefaultOptions()
	if *users > 0 {
		opts.NumUsers = *users
	}
	if *posts > 0 {
		opts.PostsPerUser = *posts
	}

	seeder := seed.New(
		repository.NewUserRepository(store),
		repository.NewPostRepository(store),
		repository.NewCommentRepository(store),
		repository.NewCatRepository(store),
		repository.NewEmotionRepository(store),
		*randSeed,
	)
	if err := seeder.Run(context.Background(), opts); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding complete")
}
