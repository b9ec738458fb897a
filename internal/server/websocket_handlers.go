package server

import (
	"context"
	"sync"

	"catnip/internal/docstore"
	"catnip/internal/observability"
	"catnip/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func (s *Server) setupWebSocketRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/posts/:id", websocket.New(s.streamPost))
}

type postEvent struct {
	Event string            `json:"event"`
	Post  docstore.Document `json:"post,omitempty"`
}

// streamPost pushes the post's current state on connect and again on every
// change until the client disconnects or the post is deleted.
func (s *Server) streamPost(conn *websocket.Conn) {
	defer conn.Close()
	id := conn.Params("id")
	ctx := context.Background()

	doc, err := s.store.Get(ctx, repository.CollectionPosts, id)
	if err != nil || doc == nil {
		_ = conn.WriteJSON(postEvent{Event: "not_found"})
		return
	}

	var writeMu sync.Mutex
	send := func(ev postEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(ev)
	}

	if err := send(postEvent{Event: "snapshot", Post: doc}); err != nil {
		return
	}

	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	unsubscribe, err := s.store.Subscribe(ctx, repository.CollectionPosts, id, func(doc docstore.Document) {
		if doc == nil {
			_ = send(postEvent{Event: "deleted"})
			finish()
			return
		}
		if err := send(postEvent{Event: "updated", Post: doc}); err != nil {
			finish()
		}
	})
	if err != nil {
		observability.GlobalLogger.Error("post subscription failed", "postId", id, "error", err.Error())
		return
	}
	defer unsubscribe()

	observability.LiveSubscriptions.Inc()
	defer observability.LiveSubscriptions.Dec()

	// Drain client frames so close is detected promptly.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				finish()
				return
			}
		}
	}()

	<-done
}
