package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/avoronkov/fieldside/handlers"
	"github.com/avoronkov/fieldside/middleware"
	"github.com/avoronkov/fieldside/models"
)

// SetupRoutes wires every HTTP endpoint. Read endpoints and the websocket
// feed are public; everything that mutates club data or live match state
// requires an admin or editor token.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	allowedOrigins []string,
	authHandler *handlers.AuthHandler,
	teamHandler *handlers.TeamHandler,
	playerHandler *handlers.PlayerHandler,
	postHandler *handlers.PostHandler,
	matchHandler *handlers.MatchHandler,
	liveHandler *handlers.LiveHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	staffOnly := middleware.Authorize(models.RoleAdmin, models.RoleEditor)
	adminOnly := middleware.Authorize(models.RoleAdmin)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", teamHandler.List)
		r.Get("/{teamID}", teamHandler.Get)
		r.Get("/{teamID}/players", playerHandler.ListByTeam)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(staffOnly)

			r.Post("/", teamHandler.Create)
			r.Put("/{teamID}", teamHandler.Update)
			r.Delete("/{teamID}", teamHandler.Delete)
			r.Post("/{teamID}/crest", teamHandler.UploadCrest)
			r.Post("/{teamID}/players", playerHandler.Create)
		})
	})

	router.Route("/players", func(r chi.Router) {
		r.Get("/{playerID}", playerHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(staffOnly)

			r.Put("/{playerID}", playerHandler.Update)
			r.Delete("/{playerID}", playerHandler.Delete)
			r.Post("/{playerID}/photo", playerHandler.UploadPhoto)
		})
	})

	router.Route("/posts", func(r chi.Router) {
		// Optional auth so staff listing posts can include their drafts.
		r.With(middleware.AuthenticateOptional(jwtSecret)).Get("/", postHandler.List)
		r.Get("/{slug}", postHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(staffOnly)

			r.Post("/", postHandler.Create)
			r.Put("/{postID}", postHandler.Update)
			r.Delete("/{postID}", postHandler.Delete)
			r.Post("/{postID}/cover", postHandler.UploadCover)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/", matchHandler.List)
		r.Get("/{matchID}", matchHandler.Get)
		r.Get("/{matchID}/report", matchHandler.Report)
		r.Get("/{matchID}/live", liveHandler.Snapshot)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(staffOnly)

			r.Post("/", matchHandler.Create)
			r.Put("/{matchID}", matchHandler.Update)
			r.Post("/{matchID}/cancel", matchHandler.Cancel)
		})

		// Live match control is admin-only; editors can manage fixtures but
		// not drive a running match.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(adminOnly)

			r.Post("/{matchID}/live/start", liveHandler.Start)
			r.Post("/{matchID}/live/pause", liveHandler.Pause)
			r.Post("/{matchID}/live/resume", liveHandler.Resume)
			r.Post("/{matchID}/live/end", liveHandler.End)
			r.Patch("/{matchID}/live/players/{playerID}", liveHandler.UpdatePlayerStat)
			r.Put("/{matchID}/live/score", liveHandler.UpdateScore)
		})
	})

	router.Get("/ws/matches/{matchID}", webSocketHandler.Serve)
}
