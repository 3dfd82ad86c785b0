package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-api-authcore/internal/domain"
	"github.com/go-api-authcore/internal/pkg/id"
)

const (
	uniqueEmail    = "email"
	uniqueContact  = "contact"
	uniqueUsername = "username"

	createAttempts = 3
)

// StepResult records the outcome of one best-effort provisioning step.
type StepResult struct {
	Step string
	Err  error
}

func (r StepResult) OK() bool { return r.Err == nil }

func (r StepResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Step  string `json:"step"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}{Step: r.Step, OK: r.OK()}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Report is the result of Provision. The principal always exists when a
// Report is returned; the secondary steps may have failed independently.
type Report struct {
	Principal      *domain.Principal `json:"principal"`
	Identifier     StepResult        `json:"identifier"`
	RoleAssignment StepResult        `json:"role_assignment"`
}

// Complete reports whether every secondary step succeeded.
func (r *Report) Complete() bool {
	return r.Identifier.OK() && r.RoleAssignment.OK()
}

type Service interface {
	Provision(ctx context.Context, req domain.ProvisionRequest) (*Report, error)
	Get(ctx context.Context, principalID int64) (*domain.Principal, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Principal, string, error)
	Identifiers(ctx context.Context, principalID int64) ([]domain.ExternalIdentifier, error)
}

type principalStore interface {
	usernameChecker
	Create(ctx context.Context, p *domain.Principal) error
	Get(ctx context.Context, principalID int64) (*domain.Principal, error)
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Principal, string, error)
}

type idAllocator interface {
	NextPrincipalID(ctx context.Context) (int64, error)
}

type passwordHasher interface {
	Hash(raw string) (string, error)
}

type roleCatalog interface {
	GetByName(ctx context.Context, name string) (*domain.Role, error)
}

type roleAssigner interface {
	Create(ctx context.Context, a *domain.RoleAssignment) error
}

type identifierStore interface {
	Create(ctx context.Context, ident *domain.ExternalIdentifier) error
	ListByPrincipal(ctx context.Context, principalID int64) ([]domain.ExternalIdentifier, error)
}

type service struct {
	principals  principalStore
	ids         idAllocator
	hasher      passwordHasher
	roles       roleCatalog
	assignments roleAssigner
	identifiers identifierStore
	now         func() time.Time
}

type ServiceDeps struct {
	Principals  principalStore
	IDs         idAllocator
	Hasher      passwordHasher
	Roles       roleCatalog
	Assignments roleAssigner
	Identifiers identifierStore
	Now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		principals:  deps.Principals,
		ids:         deps.IDs,
		hasher:      deps.Hasher,
		roles:       deps.Roles,
		assignments: deps.Assignments,
		identifiers: deps.Identifiers,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Provision(ctx context.Context, req domain.ProvisionRequest) (*Report, error) {
	email := domain.NormalizeContact(strings.TrimSpace(req.Email))
	contact := domain.NormalizeContact(strings.TrimSpace(req.Contact))
	if _, err := domain.ClassifyContact(contact); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, uniqueEmail, email); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, uniqueContact, contact); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	stateID := req.StateID
	if stateID == 0 {
		stateID = domain.StateActive
	}

	now := s.now().UTC()
	p := &domain.Principal{
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		Contact:       contact,
		PasswordHash:  hash,
		AccountTypeID: req.AccountTypeID,
		StateID:       stateID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.create(ctx, p); err != nil {
		return nil, err
	}

	report := &Report{
		Principal:      p,
		Identifier:     s.createIdentifier(ctx, p, req.EntityKind, stateID, now),
		RoleAssignment: s.assignRole(ctx, p, req.DefaultRoleName, stateID, now),
	}
	if !report.Complete() {
		slog.Warn("principal provisioned partially",
			"principal_id", p.PrincipalID,
			"identifier_ok", report.Identifier.OK(),
			"role_ok", report.RoleAssignment.OK())
	}
	return report, nil
}

func (s *service) ensureFree(ctx context.Context, kind, value string) error {
	taken, err := s.principals.Taken(ctx, kind, value)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%s already registered: %w", kind, domain.ErrConflict)
	}
	return nil
}

// create allocates an id and username and stores p. A concurrent registration
// can grab the chosen username between check and write, so a conflict
// triggers a fresh allocation.
func (s *service) create(ctx context.Context, p *domain.Principal) error {
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		if p.Username, err = allocateUsername(ctx, s.principals, p.Name); err != nil {
			return fmt.Errorf("allocate username: %w", err)
		}
		if p.PrincipalID, err = s.ids.NextPrincipalID(ctx); err != nil {
			return fmt.Errorf("allocate principal id: %w", err)
		}
		err = s.principals.Create(ctx, p)
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return err
		}
		if ferr := s.ensureFree(ctx, uniqueEmail, p.Email); ferr != nil {
			return ferr
		}
		if ferr := s.ensureFree(ctx, uniqueContact, p.Contact); ferr != nil {
			return ferr
		}
	}
	return err
}

func (s *service) createIdentifier(ctx context.Context, p *domain.Principal, entityKind string, stateID int64, now time.Time) StepResult {
	res := StepResult{Step: "external_identifier"}
	res.Err = s.identifiers.Create(ctx, &domain.ExternalIdentifier{
		IdentifierID: id.NewAt(now),
		PrincipalID:  p.PrincipalID,
		EntityKind:   entityKind,
		StateID:      stateID,
		CreatedAt:    now,
	})
	if res.Err != nil {
		slog.Error("create external identifier failed", "principal_id", p.PrincipalID, "entity_kind", entityKind, "err", res.Err)
	}
	return res
}

func (s *service) assignRole(ctx context.Context, p *domain.Principal, roleName string, stateID int64, now time.Time) StepResult {
	res := StepResult{Step: "role_assignment"}
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		res.Err = fmt.Errorf("resolve role %q: %w", roleName, err)
	} else {
		res.Err = s.assignments.Create(ctx, &domain.RoleAssignment{
			PrincipalID:  p.PrincipalID,
			AssignmentID: id.NewAt(now),
			RoleID:       role.RoleID,
			StateID:      stateID,
			CreatedAt:    now,
		})
	}
	if res.Err != nil {
		slog.Error("create role assignment failed", "principal_id", p.PrincipalID, "role", roleName, "err", res.Err)
	}
	return res
}

func (s *service) Get(ctx context.Context, principalID int64) (*domain.Principal, error) {
	return s.principals.Get(ctx, principalID)
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.Principal, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.principals.ScanPage(ctx, int32(limit), cursor)
}

func (s *service) Identifiers(ctx context.Context, principalID int64) ([]domain.ExternalIdentifier, error) {
	if _, err := s.principals.Get(ctx, principalID); err != nil {
		return nil, err
	}
	return s.identifiers.ListByPrincipal(ctx, principalID)
}
