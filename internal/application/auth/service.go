package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-api-authcore/internal/domain"
)

// LoginRequest authenticates with an identifier (email, contact or username) and password.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// CodeRequest starts an OTP flow. Identifier must be an email or a contact number.
type CodeRequest struct {
	Identifier string `json:"identifier" validate:"required,contact"`
	Password   string `json:"password" validate:"required"`
}

// VerifyRequest completes an OTP flow.
type VerifyRequest struct {
	Identifier string `json:"identifier" validate:"required,contact"`
	Code       string `json:"code" validate:"required,numeric,len=6"`
}

// Challenge describes where an OTP was sent.
type Challenge struct {
	Purpose string `json:"purpose"`
	Channel string `json:"channel"`
}

// Flow names an OTP login variant: its purpose tag and the account type it requires.
type Flow struct {
	Name                string
	Purpose             string
	RequiredAccountType int64 // 0 means any account type
}

var (
	FlowLogin      = Flow{Name: "login", Purpose: domain.PurposeLogin}
	FlowBackOffice = Flow{Name: "backoffice", Purpose: domain.PurposeLoginBackOffice, RequiredAccountType: domain.AccountTypeBackOffice}
	FlowUser       = Flow{Name: "user", Purpose: domain.PurposeLoginUser, RequiredAccountType: domain.AccountTypeCorporate}
)

// FlowByName resolves the flow segment of an OTP route.
func FlowByName(name string) (Flow, bool) {
	for _, f := range []Flow{FlowLogin, FlowBackOffice, FlowUser} {
		if f.Name == name {
			return f, true
		}
	}
	return Flow{}, false
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (string, error)
	RequestCode(ctx context.Context, flow Flow, req CodeRequest) (*Challenge, error)
	VerifyCode(ctx context.Context, flow Flow, req VerifyRequest) (string, error)
}

type principalLookup interface {
	Lookup(ctx context.Context, identifier string) (*domain.Principal, error)
}

type accountTypeLookup interface {
	Get(ctx context.Context, accountTypeID int64) (*domain.AccountType, error)
}

type secretComparer interface {
	Compare(raw, storedHash string) bool
	Decoy(raw string)
}

type otpEngine interface {
	RequestCode(ctx context.Context, contact, purpose string) (string, error)
	VerifyCode(ctx context.Context, contact, code, purpose string) bool
}

type tokenIssuer interface {
	Issue(ctx context.Context, p *domain.Principal) (string, error)
}

type service struct {
	principals   principalLookup
	accountTypes accountTypeLookup
	secrets      secretComparer
	otp          otpEngine
	tokens       tokenIssuer
}

type ServiceDeps struct {
	Principals   principalLookup
	AccountTypes accountTypeLookup
	Secrets      secretComparer
	OTP          otpEngine
	Tokens       tokenIssuer
}

func NewService(deps ServiceDeps) Service {
	return &service{
		principals:   deps.Principals,
		accountTypes: deps.AccountTypes,
		secrets:      deps.Secrets,
		otp:          deps.OTP,
		tokens:       deps.Tokens,
	}
}

func (s *service) Login(ctx context.Context, req LoginRequest) (string, error) {
	p, err := s.authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(ctx, p)
}

// RequestCode checks the password, then the flow's account-type gate, and only
// then sends a code to the identifier the caller submitted.
func (s *service) RequestCode(ctx context.Context, flow Flow, req CodeRequest) (*Challenge, error) {
	kind, err := domain.ClassifyContact(req.Identifier)
	if err != nil {
		return nil, err
	}
	p, err := s.authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, flow, p); err != nil {
		slog.Info("otp flow denied", "flow", flow.Name, "principal_id", p.PrincipalID, "account_type_id", p.AccountTypeID)
		return nil, err
	}
	if _, err := s.otp.RequestCode(ctx, req.Identifier, flow.Purpose); err != nil {
		return nil, err
	}
	ch := &Challenge{Purpose: flow.Purpose, Channel: "email"}
	if kind == domain.ContactPhone {
		ch.Channel = "sms"
	}
	return ch, nil
}

func (s *service) VerifyCode(ctx context.Context, flow Flow, req VerifyRequest) (string, error) {
	if !s.otp.VerifyCode(ctx, req.Identifier, req.Code, flow.Purpose) {
		return "", domain.ErrInvalidOrExpiredCode
	}
	p, err := s.lookup(ctx, req.Identifier)
	if err != nil {
		return "", err
	}
	if !p.Active() {
		return "", domain.ErrInvalidCredentials
	}
	if err := s.gate(ctx, flow, p); err != nil {
		return "", err
	}
	return s.tokens.Issue(ctx, p)
}

// authenticate resolves identifier and checks password. Principals that are
// not ACTIVE fail exactly like a wrong password.
func (s *service) authenticate(ctx context.Context, identifier, password string) (*domain.Principal, error) {
	p, err := s.lookup(ctx, identifier)
	if errors.Is(err, domain.ErrPrincipalNotFound) {
		s.secrets.Decoy(password)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if !p.Active() || !s.secrets.Compare(password, p.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return p, nil
}

func (s *service) lookup(ctx context.Context, identifier string) (*domain.Principal, error) {
	p, err := s.principals.Lookup(ctx, domain.NormalizeContact(identifier))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup principal: %w", err)
	}
	return p, nil
}

func (s *service) gate(ctx context.Context, flow Flow, p *domain.Principal) error {
	if flow.RequiredAccountType == 0 {
		return nil
	}
	at, err := s.accountTypes.Get(ctx, p.AccountTypeID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrAccessDenied
	}
	if err != nil {
		return fmt.Errorf("lookup account type: %w", err)
	}
	if at.AccountTypeID != flow.RequiredAccountType {
		return domain.ErrAccessDenied
	}
	return nil
}
