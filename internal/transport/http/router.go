package http

import (
	"net/http"

	"github.com/go-api-authcore/internal/config"
	"github.com/go-api-authcore/internal/domain"
	"github.com/go-api-authcore/internal/transport/http/handler"
	appmiddleware "github.com/go-api-authcore/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustedProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limit := func(next http.Handler) http.Handler { return next }
	if deps.Limiter != nil {
		limit = deps.Limiter.Limit
	}
	authMw := appmiddleware.Auth(deps.Verifier)

	healthH := handler.NewHealthHandler(deps.Version)
	authH := handler.NewAuthHandler(deps.Auth)
	principalH := handler.NewPrincipalHandler(deps.Provisioning)
	roleH := handler.NewRoleHandler(deps.Roles)
	pwH := handler.NewPasswordRecoveryHandler(deps.Recovery)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(limit).Post("/auth/login", authH.Login)
		r.With(limit).Post("/auth/otp/{flow}/request", authH.RequestCode)
		r.With(limit).Post("/auth/otp/{flow}/verify", authH.VerifyCode)
		r.With(limit).Post("/password-recovery/{action}", pwH.Action)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/auth/me", authH.Me)
			r.Post("/auth/password", pwH.ChangePassword)

			// Back-office administrators only
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireAccountType(domain.AccountTypeBackOffice))
				r.Use(appmiddleware.RequireRole(domain.RoleIDAdmin))

				r.Post("/principals", principalH.Provision)
				r.Get("/principals", principalH.List)
				r.Get("/principals/{id}", principalH.Get)
				r.Get("/principals/{id}/identifiers", principalH.Identifiers)
				r.Get("/principals/{id}/roles", roleH.PrincipalRoles)
				r.Post("/principals/{id}/roles", roleH.Grant)

				r.Get("/roles", roleH.List)
				r.Get("/roles/{id}", roleH.Get)
			})
		})
	})

	return r
}
