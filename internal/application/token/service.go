package token

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-api-authcore/internal/domain"
	jwtinfra "github.com/go-api-authcore/internal/infrastructure/jwt"
)

// Service mints session tokens for principals and answers questions about them.
type Service interface {
	Issue(ctx context.Context, p *domain.Principal) (string, error)
	IsValid(token, expectedSubject string) bool
	Claims(token string) (*jwtinfra.Claims, error)
	ExtractPrincipalID(token string) (int64, error)
	ExtractAccountTypeID(token string) (int64, error)
	ExtractRoleIDs(token string) ([]int64, error)
	HasRole(token string, roleID int64) bool
	HasAnyRole(token string, roleIDs ...int64) bool
}

type roleLookup interface {
	ActiveRoleIDs(ctx context.Context, principalID int64) ([]int64, error)
}

type service struct {
	roles    roleLookup
	provider *jwtinfra.Provider
}

type ServiceDeps struct {
	Roles    roleLookup
	Provider *jwtinfra.Provider
}

func NewService(deps ServiceDeps) Service {
	return &service{roles: deps.Roles, provider: deps.Provider}
}

func (s *service) Issue(ctx context.Context, p *domain.Principal) (string, error) {
	roleIDs, err := s.roles.ActiveRoleIDs(ctx, p.PrincipalID)
	if err != nil {
		return "", fmt.Errorf("lookup roles: %w", err)
	}
	if roleIDs == nil {
		roleIDs = []int64{}
	}
	claims := jwtinfra.Claims{
		PrincipalID:   p.PrincipalID,
		Contact:       p.Contact,
		Email:         p.Email,
		RoleIDs:       roleIDs,
		AccountTypeID: p.AccountTypeID,
		Username:      p.Username,
	}
	if len(roleIDs) > 0 {
		primary := roleIDs[0]
		claims.RoleID = &primary
	}
	return s.provider.Sign(claims)
}

func (s *service) IsValid(token, expectedSubject string) bool {
	return s.provider.IsValid(token, expectedSubject)
}

func (s *service) Claims(token string) (*jwtinfra.Claims, error) {
	return s.provider.Verify(token)
}

func (s *service) ExtractPrincipalID(token string) (int64, error) {
	return jwtinfra.ExtractClaim[int64](s.provider, token, jwtinfra.ClaimPrincipalID)
}

func (s *service) ExtractAccountTypeID(token string) (int64, error) {
	return jwtinfra.ExtractClaim[int64](s.provider, token, jwtinfra.ClaimAccountTypeID)
}

func (s *service) ExtractRoleIDs(token string) ([]int64, error) {
	return jwtinfra.ExtractClaim[[]int64](s.provider, token, jwtinfra.ClaimRoleIDs)
}

// HasRole reports whether a valid token lists roleID. Malformed tokens hold no roles.
func (s *service) HasRole(token string, roleID int64) bool {
	ids, err := s.ExtractRoleIDs(token)
	return err == nil && slices.Contains(ids, roleID)
}

// HasAnyRole reports whether a valid token lists at least one of roleIDs.
func (s *service) HasAnyRole(token string, roleIDs ...int64) bool {
	ids, err := s.ExtractRoleIDs(token)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(roleIDs, func(id int64) bool { return slices.Contains(ids, id) })
}
