package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Authentication taxonomy. Each member wraps one of the generic sentinels above,
// so errors.Is works against either level.
var (
	ErrInvalidContactFormat = fmt.Errorf("invalid contact format: %w", ErrBadRequest)
	ErrPrincipalNotFound    = fmt.Errorf("principal not found: %w", ErrUnauthorized)
	ErrInvalidCredentials   = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrInvalidOrExpiredCode = fmt.Errorf("invalid or expired code: %w", ErrUnauthorized)
	ErrMalformedToken       = fmt.Errorf("malformed token: %w", ErrUnauthorized)
	ErrAccessDenied         = fmt.Errorf("access denied: %w", ErrForbidden)
	ErrDeliveryFailure      = errors.New("code delivery failed")
)
