// Package recovery resets and changes principal passwords. Resets are
// authorised by a one-time code sent under the RESET_PASSWORD purpose, so a
// login code can never be replayed to change a password.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-api-authcore/internal/domain"
)

type ResetRequest struct {
	Contact string `json:"contact" validate:"required,contact"`
}

type ResetConfirmRequest struct {
	Contact     string `json:"contact" validate:"required,contact"`
	Code        string `json:"code" validate:"required,numeric,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

type Service interface {
	// RequestReset sends a reset code when contact belongs to an active
	// principal. Unknown or inactive contacts succeed silently.
	RequestReset(ctx context.Context, req ResetRequest) error
	ConfirmReset(ctx context.Context, req ResetConfirmRequest) error
	ChangePassword(ctx context.Context, principalID int64, req ChangePasswordRequest) error
}

type principalStore interface {
	Lookup(ctx context.Context, identifier string) (*domain.Principal, error)
	Get(ctx context.Context, principalID int64) (*domain.Principal, error)
	Update(ctx context.Context, principalID int64, updates map[string]interface{}) error
}

type secrets interface {
	Hash(raw string) (string, error)
	Compare(raw, storedHash string) bool
}

type otpEngine interface {
	RequestCode(ctx context.Context, contact, purpose string) (string, error)
	VerifyCode(ctx context.Context, contact, code, purpose string) bool
}

type service struct {
	principals principalStore
	secrets    secrets
	otp        otpEngine
}

type ServiceDeps struct {
	Principals principalStore
	Secrets    secrets
	OTP        otpEngine
}

func NewService(deps ServiceDeps) Service {
	return &service{principals: deps.Principals, secrets: deps.Secrets, otp: deps.OTP}
}

func (s *service) RequestReset(ctx context.Context, req ResetRequest) error {
	p, err := s.principals.Lookup(ctx, req.Contact)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("password reset for unknown contact")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup principal: %w", err)
	}
	if !p.Active() {
		slog.Info("password reset for inactive principal", "principal_id", p.PrincipalID)
		return nil
	}
	// A failed send answers like an unknown contact; the code stays stored.
	if _, err := s.otp.RequestCode(ctx, req.Contact, domain.PurposeResetPassword); err != nil {
		slog.Warn("password reset code not sent", "principal_id", p.PrincipalID, "err", err)
	}
	return nil
}

func (s *service) ConfirmReset(ctx context.Context, req ResetConfirmRequest) error {
	if !s.otp.VerifyCode(ctx, req.Contact, req.Code, domain.PurposeResetPassword) {
		return domain.ErrInvalidOrExpiredCode
	}
	p, err := s.principals.Lookup(ctx, req.Contact)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrPrincipalNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup principal: %w", err)
	}
	if !p.Active() {
		return domain.ErrInvalidCredentials
	}
	if err := s.setPassword(ctx, p.PrincipalID, req.NewPassword); err != nil {
		return err
	}
	slog.Info("password reset", "principal_id", p.PrincipalID)
	return nil
}

func (s *service) ChangePassword(ctx context.Context, principalID int64, req ChangePasswordRequest) error {
	p, err := s.principals.Get(ctx, principalID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrPrincipalNotFound
	}
	if err != nil {
		return fmt.Errorf("get principal: %w", err)
	}
	if !p.Active() || !s.secrets.Compare(req.CurrentPassword, p.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	return s.setPassword(ctx, principalID, req.NewPassword)
}

func (s *service) setPassword(ctx context.Context, principalID int64, raw string) error {
	hash, err := s.secrets.Hash(raw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.principals.Update(ctx, principalID, map[string]interface{}{"password_hash": hash}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
