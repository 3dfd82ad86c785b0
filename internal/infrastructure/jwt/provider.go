package jwtinfra

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-authcore/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claim names carried by session tokens.
const (
	ClaimPrincipalID   = "principal_id"
	ClaimContact       = "contact"
	ClaimEmail         = "email"
	ClaimRoleIDs       = "role_ids"
	ClaimRoleID        = "role_id"
	ClaimAccountTypeID = "account_type_id"
	ClaimUsername      = "username"
)

// ErrClaimNotFound is returned by ExtractClaim when a verified token lacks the claim.
var ErrClaimNotFound = errors.New("claim not found")

// Claims holds the JWT payload fields.
// RoleIDs is authoritative; RoleID is the first entry of RoleIDs, kept for
// callers that only look at one role, and is absent when RoleIDs is empty.
type Claims struct {
	PrincipalID   int64   `json:"principal_id"`
	Contact       string  `json:"contact"`
	Email         string  `json:"email"`
	RoleIDs       []int64 `json:"role_ids"`
	RoleID        *int64  `json:"role_id,omitempty"`
	AccountTypeID int64   `json:"account_type_id"`
	Username      string  `json:"username"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs with a server-held symmetric key.
type Provider struct {
	key    []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// Option customises a Provider.
type Option func(*Provider)

// WithClock overrides the time source used for issued-at, expiry and validation.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithIssuer sets the iss claim on signed tokens and requires it on verification.
func WithIssuer(issuer string) Option {
	return func(p *Provider) { p.issuer = issuer }
}

func NewProvider(key []byte, expiry time.Duration, opts ...Option) (*Provider, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is empty")
	}
	if expiry <= 0 {
		return nil, errors.New("token expiry must be positive")
	}
	p := &Provider{key: key, expiry: expiry, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Sign stamps subject, issued-at and expiry onto claims and returns the signed token.
func (p *Provider) Sign(claims Claims) (string, error) {
	now := p.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Email,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.key)
}

// Verify checks signature, algorithm and expiry and returns the typed claims.
// Every failure wraps domain.ErrMalformedToken.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, p.keyFunc, p.parserOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrMalformedToken)
	}
	return claims, nil
}

// IsValid reports whether tokenStr verifies, is unexpired and belongs to expectedSubject.
func (p *Provider) IsValid(tokenStr, expectedSubject string) bool {
	claims, err := p.Verify(tokenStr)
	if err != nil {
		return false
	}
	return expectedSubject != "" && claims.Subject == expectedSubject
}

func (p *Provider) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return p.key, nil
}

func (p *Provider) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	return opts
}

// ExtractClaim verifies tokenStr and decodes the named claim into T.
// Numeric claims decode into any integer type; lists decode into slices.
func ExtractClaim[T any](p *Provider, tokenStr, name string) (T, error) {
	var zero T
	mc := jwt.MapClaims{}
	opts := append(p.parserOptions(), jwt.WithJSONNumber())
	token, err := jwt.ParseWithClaims(tokenStr, mc, p.keyFunc, opts...)
	if err != nil || !token.Valid {
		return zero, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	raw, ok := mc[name]
	if !ok || raw == nil {
		return zero, fmt.Errorf("%s: %w", name, ErrClaimNotFound)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return zero, fmt.Errorf("re-encode claim %s: %w", name, err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, fmt.Errorf("decode claim %s: %w", name, err)
	}
	return out, nil
}
