package role

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-api-authcore/internal/domain"
	"github.com/go-api-authcore/internal/pkg/id"
)

// GrantRequest assigns a catalog role to an existing principal.
type GrantRequest struct {
	RoleName string `json:"role_name" validate:"required"`
}

type Service interface {
	List(ctx context.Context) ([]domain.Role, error)
	Get(ctx context.Context, roleID int64) (*domain.Role, error)
	// Grant appends an active assignment. It does not reorder existing ones,
	// so the principal's primary role is unchanged.
	Grant(ctx context.Context, principalID int64, req GrantRequest) (*domain.RoleAssignment, error)
	Roles(ctx context.Context, principalID int64) ([]int64, error)
}

type roleCatalog interface {
	Scan(ctx context.Context) ([]domain.Role, error)
	Get(ctx context.Context, roleID int64) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
}

type assignmentStore interface {
	Create(ctx context.Context, a *domain.RoleAssignment) error
	ActiveRoleIDs(ctx context.Context, principalID int64) ([]int64, error)
}

type principalGetter interface {
	Get(ctx context.Context, principalID int64) (*domain.Principal, error)
}

type service struct {
	catalog     roleCatalog
	assignments assignmentStore
	principals  principalGetter
	now         func() time.Time
}

type ServiceDeps struct {
	Catalog     roleCatalog
	Assignments assignmentStore
	Principals  principalGetter
	Now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		catalog:     deps.Catalog,
		assignments: deps.Assignments,
		principals:  deps.Principals,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) List(ctx context.Context) ([]domain.Role, error) {
	return s.catalog.Scan(ctx)
}

func (s *service) Get(ctx context.Context, roleID int64) (*domain.Role, error) {
	return s.catalog.Get(ctx, roleID)
}

func (s *service) Grant(ctx context.Context, principalID int64, req GrantRequest) (*domain.RoleAssignment, error) {
	if _, err := s.principals.Get(ctx, principalID); err != nil {
		return nil, err
	}
	r, err := s.catalog.GetByName(ctx, req.RoleName)
	if err != nil {
		return nil, fmt.Errorf("resolve role %q: %w", req.RoleName, err)
	}
	held, err := s.assignments.ActiveRoleIDs(ctx, principalID)
	if err != nil {
		return nil, err
	}
	for _, rid := range held {
		if rid == r.RoleID {
			return nil, fmt.Errorf("principal %d already holds %s: %w", principalID, r.Name, domain.ErrConflict)
		}
	}
	now := s.now().UTC()
	a := &domain.RoleAssignment{
		PrincipalID:  principalID,
		AssignmentID: id.NewAt(now),
		RoleID:       r.RoleID,
		StateID:      domain.StateActive,
		CreatedAt:    now,
	}
	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, err
	}
	slog.Info("role granted", "principal_id", principalID, "role_id", r.RoleID)
	return a, nil
}

func (s *service) Roles(ctx context.Context, principalID int64) ([]int64, error) {
	if _, err := s.principals.Get(ctx, principalID); err != nil {
		return nil, err
	}
	return s.assignments.ActiveRoleIDs(ctx, principalID)
}
