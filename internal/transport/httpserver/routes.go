package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"osbb-app-go/internal/config"
	"osbb-app-go/internal/transport/httpserver/handler"
	"osbb-app-go/internal/transport/httpserver/middleware"
	"osbb-app-go/pkg/logger"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, users middleware.UserLookup, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.NewCORS(cfg.CORS.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		auth := middleware.NewIdentityVerifier(cfg.Auth, users, log)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Get("/auth/me", handlers.AuthMe)

			r.Post("/votings", handlers.CreateVoting)
			r.Get("/votings", handlers.ListVotings)
			r.Get("/votings/{id}", handlers.GetVoting)
			r.Post("/votings/{id}/activate", handlers.ActivateVoting)
			r.Post("/votings/{id}/close", handlers.CloseVoting)
			r.Post("/votings/{id}/cancel", handlers.CancelVoting)
			r.Post("/votings/{id}/votes", handlers.CastVote)
			r.Get("/votings/{id}/votes", handlers.ListVotes)
			r.Get("/votings/{id}/result", handlers.VotingResult)
			r.Get("/votings/{id}/audit", handlers.VotingAudit)
		})
	})

	return r
}
