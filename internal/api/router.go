package api

import (
	"net/http"
	"time"

	"code_duel/internal/api/handler"
	"code_duel/internal/api/middleware"
	"code_duel/internal/app/service"
	"code_duel/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

type Services struct {
	Auth    *service.AuthService
	Problem *service.ProblemService
	Duel    *service.DuelService
	Profile *service.ProfileService
}

// NewRouter mounts the REST API under /api/v1 and the socket endpoint at /ws.
func NewRouter(svc Services, socket http.Handler) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)

	// Tokens come from "Authorization: Bearer T", or ?token=T for sockets.
	r.Use(jwtauth.Verify(security.TokenAuth, jwtauth.TokenFromHeader, middleware.TokenFromQuery))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// The socket outlives any request timeout.
	r.With(middleware.Authenticator).Handle("/ws", socket)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(chiMiddleware.Timeout(60 * time.Second))

		authHandler := handler.NewAuthHandler(svc.Auth)
		v1.Route("/auth", authHandler.RegisterRoutes)

		problemHandler := handler.NewProblemHandler(svc.Problem)
		v1.Route("/problems", problemHandler.RegisterRoutes)

		duelHandler := handler.NewDuelHandler(svc.Duel)
		v1.Group(duelHandler.RegisterRoutes)

		profileHandler := handler.NewProfileHandler(svc.Profile)
		v1.Group(profileHandler.RegisterRoutes)
	})

	return r
}
