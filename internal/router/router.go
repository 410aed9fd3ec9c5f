package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"repurpose-backend/internal/handlers"
	"repurpose-backend/internal/middleware"
	"repurpose-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	sourceHandler *handlers.SourceHandler,
	channelHandler *handlers.ChannelHandler,
	usageHandler *handlers.UsageHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Browse routes hit the upstream video API on cache misses, so they get
	// their own limiter (30 req/min per IP).
	browseLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Source Routes ────
		r.Route("/sources", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", sourceHandler.Create)
			r.Get("/", sourceHandler.List)
			r.Get("/{id}", sourceHandler.Get)
			r.Delete("/{id}", sourceHandler.Delete)
			r.Post("/{id}/extract", sourceHandler.Extract)
			r.Post("/{id}/generate", sourceHandler.Generate)
			r.Post("/{id}/chat", sourceHandler.Chat)
			r.Get("/{id}/content", sourceHandler.GetContent)
			r.Get("/{id}/history", sourceHandler.History)
		})

		// ──── Gateway Browse Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(browseLimiter.Middleware)
			r.Get("/channels/search", channelHandler.Search)
			r.Get("/channels/{id}", channelHandler.GetChannel)
			r.Get("/videos/{id}", channelHandler.GetVideo)
			r.Get("/playlists/{id}/items", channelHandler.GetPlaylistItems)
		})

		// ──── Usage Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/usage", usageHandler.GetUsage)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.GetJob)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
