package http

import (
	"github.com/go-api-authcore/internal/application/auth"
	"github.com/go-api-authcore/internal/application/provisioning"
	"github.com/go-api-authcore/internal/application/recovery"
	"github.com/go-api-authcore/internal/application/role"
	jwtinfra "github.com/go-api-authcore/internal/infrastructure/jwt"
	appmiddleware "github.com/go-api-authcore/internal/transport/http/middleware"
)

// TokenVerifier is the minimal interface the router requires to authenticate bearer tokens.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Deps holds the application services the router exposes.
type Deps struct {
	Auth         auth.Service
	Provisioning provisioning.Service
	Roles        role.Service
	Recovery     recovery.Service
	Verifier     TokenVerifier
	// Limiter throttles the public login and OTP endpoints. The caller owns
	// its lifecycle and must Stop it on shutdown.
	Limiter *appmiddleware.RateLimiter
	Version string
}
