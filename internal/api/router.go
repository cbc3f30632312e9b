package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"micropost-be/internal/api/handlers"
	"micropost-be/internal/auth"
	"micropost-be/internal/monitoring"
	"micropost-be/internal/services"
	"micropost-be/internal/websocket"
)

// NewRouter creates and configures a new Chi router.
func NewRouter(hub *websocket.Hub, userService services.UserServiceProvider, postService services.PostServiceProvider, eventService services.EventServiceProvider, stats *monitoring.StatUpdater) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for development
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"}, // Adjust for your frontend URL
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	postHandler := handlers.NewPostHandler(postService)
	eventHandler := handlers.NewEventHandler(eventService)
	healthHandler := handlers.NewHealthHandler(stats)
	wsHandler := handlers.NewWebSocketHandler(hub)

	r.Get("/health", healthHandler.Check)

	// Live activity feed
	r.Get("/ws", wsHandler.Serve)

	// Public auth endpoints
	r.Post("/register/", userHandler.Register)
	r.Post("/login/", userHandler.Login)

	// Everything below requires a valid access token
	r.Group(func(r chi.Router) {
		r.Use(auth.JWTMiddleware())

		r.Get("/me/", userHandler.GetMe)
		r.Get("/events/", eventHandler.GetRecent)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.List)
			r.Post("/", postHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Put("/", postHandler.Update)
				r.Delete("/", postHandler.Delete)
				r.Route("/like", func(r chi.Router) {
					r.Post("/", postHandler.Like)
					r.Delete("/", postHandler.Unlike)
				})
			})
		})
	})

	return r
}
