// Package server contains HTTP and WebSocket handlers for the application's
// API endpoints.
package server

import (
	"fmt"

	"catnip/internal/config"
	"catnip/internal/database"
	"catnip/internal/docstore"
	"catnip/internal/identity"
	"catnip/internal/middleware"
	"catnip/internal/repository"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config *config.Config
	store  docstore.Store
	tokens *identity.TokenManager
	prom   *fiberprometheus.FiberPrometheus

	userRepo    repository.UserRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	catRepo     repository.CatRepository
	emotionRepo repository.EmotionRepository
}

// NewServer creates a server, opening the document store the configured
// driver selects.
func NewServer(cfg *config.Config) (*Server, error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, store), nil
}

// OpenStore opens the configured document store backend with the
// application's collection schema.
func OpenStore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.DocstoreDriver {
	case config.DriverRedis:
		client, err := docstore.OpenRedis(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return docstore.NewRedis(client, repository.Schema()), nil
	case config.DriverPostgres, config.DriverSQLite:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		store, err := docstore.NewSQL(db, repository.Schema())
		if err != nil {
			return nil, fmt.Errorf("open sql store: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown docstore driver %q", cfg.DocstoreDriver)
}

// NewServerWithDeps creates a Server using an already-opened store. Use this
// in tests.
func NewServerWithDeps(cfg *config.Config, store docstore.Store) *Server {
	return &Server{
		config:      cfg,
		store:       store,
		tokens:      identity.NewTokenManager(cfg.JWTSecret),
		prom:        fiberprometheus.New("catnip-api"),
		userRepo:    repository.NewUserRepository(store),
		postRepo:    repository.NewPostRepository(store),
		commentRepo: repository.NewCommentRepository(store),
		catRepo:     repository.NewCatRepository(store),
		emotionRepo: repository.NewEmotionRepository(store),
	}
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestTracing())
	app.Use(middleware.StructuredLogger())

	if s.prom != nil {
		app.Use(s.prom.Middleware)
	}

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	posts := api.Group("/posts")
	posts.Get("/", middleware.OptionalAuth(s.tokens), s.GetPosts)
	posts.Get("/:id/comments", s.GetComments)
	posts.Get("/:id", middleware.OptionalAuth(s.tokens), s.GetPost)
	posts.Post("/:id/views", s.IncrementPostViews)

	protected := middleware.AuthRequired(s.tokens)
	posts.Post("/", protected, s.CreatePost)
	posts.Put("/:id", protected, s.UpdatePost)
	posts.Delete("/:id", protected, s.DeletePost)
	posts.Post("/:id/like", protected, s.TogglePostLike)
	posts.Post("/:id/comments", protected, s.AddComment)

	comments := api.Group("/comments", protected)
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)
	comments.Post("/:id/like", s.ToggleCommentLike)

	cats := api.Group("/cats", protected)
	cats.Get("/", s.GetCats)
	cats.Post("/", s.AddCat)
	cats.Put("/:id", s.UpdateCat)

	emotions := api.Group("/emotions", protected)
	emotions.Get("/", s.GetEmotions)
	emotions.Post("/", s.AddEmotion)
	emotions.Put("/:id", s.UpdateEmotion)
	emotions.Delete("/:id", s.DeleteEmotion)

	s.setupWebSocketRoutes(app)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// currentProfile returns the authenticated profile; routes behind
// AuthRequired always have one.
func currentProfile(c *fiber.Ctx) identity.Profile {
	profile, _ := middleware.Profile(c)
	return profile
}
