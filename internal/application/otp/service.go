package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-api-authcore/internal/domain"
	"github.com/go-api-authcore/internal/pkg/id"
)

const (
	CodeLength    = 6
	CodeTTL       = 5 * time.Minute
	SweepInterval = 5 * time.Minute

	defaultDeliveryTimeout = 10 * time.Second
)

type Service interface {
	// RequestCode stores a fresh code for (contact, purpose), invalidating any
	// earlier unused one, and delivers it. When delivery fails the code stays
	// valid and is returned together with an error wrapping domain.ErrDeliveryFailure.
	RequestCode(ctx context.Context, contact, purpose string) (string, error)
	// VerifyCode consumes a live matching code. Every failure mode yields false.
	VerifyCode(ctx context.Context, contact, code, purpose string) bool
	// CleanupExpired deletes every code whose expiry has passed, used or not.
	CleanupExpired(ctx context.Context) (int, error)
}

var errChannelUnavailable = errors.New("delivery channel not configured")

type codeStore interface {
	Rotate(ctx context.Context, c *domain.OneTimeCode) error
	Consume(ctx context.Context, contact, code, purpose string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type emailSender interface {
	SendOTPEmail(ctx context.Context, address, code, purpose string) error
}

type smsSender interface {
	SendOTPSMS(ctx context.Context, number, code, purpose string) error
}

type service struct {
	store           codeStore
	mailer          emailSender
	sms             smsSender
	random          io.Reader
	now             func() time.Time
	deliveryTimeout time.Duration
}

// ServiceDeps wires the engine. Random must be safe for concurrent use;
// it defaults to crypto/rand. Now defaults to time.Now.
type ServiceDeps struct {
	Store           codeStore
	Mailer          emailSender
	SMS             smsSender
	Random          io.Reader
	Now             func() time.Time
	DeliveryTimeout time.Duration
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:           deps.Store,
		mailer:          deps.Mailer,
		sms:             deps.SMS,
		random:          deps.Random,
		now:             deps.Now,
		deliveryTimeout: deps.DeliveryTimeout,
	}
	if s.random == nil {
		s.random = rand.Reader
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.deliveryTimeout <= 0 {
		s.deliveryTimeout = defaultDeliveryTimeout
	}
	return s
}

func (s *service) RequestCode(ctx context.Context, contact, purpose string) (string, error) {
	kind, err := domain.ClassifyContact(contact)
	if err != nil {
		return "", err
	}
	contact = domain.NormalizeContact(contact)
	if strings.TrimSpace(purpose) == "" {
		return "", fmt.Errorf("purpose required: %w", domain.ErrBadRequest)
	}
	code, err := digits(s.random, CodeLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	now := s.now().UTC()
	c := &domain.OneTimeCode{
		CodeID:      id.NewAt(now),
		Contact:     contact,
		ContactKind: kind,
		Code:        code,
		Purpose:     purpose,
		ExpiresAt:   now.Add(CodeTTL),
		CreatedAt:   now,
	}
	if err := s.store.Rotate(ctx, c); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	codesRequested.WithLabelValues(purpose, channel(kind)).Inc()

	if err := s.deliver(ctx, c); err != nil {
		deliveryFailures.WithLabelValues(channel(kind)).Inc()
		slog.Warn("otp delivery failed", "purpose", purpose, "channel", channel(kind), "err", err)
		return code, fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}
	return code, nil
}

// deliver sends c through exactly one channel chosen by its contact kind.
func (s *service) deliver(ctx context.Context, c *domain.OneTimeCode) error {
	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()
	switch c.ContactKind {
	case domain.ContactEmail:
		if s.mailer == nil {
			return errChannelUnavailable
		}
		return s.mailer.SendOTPEmail(ctx, c.Contact, c.Code, c.Purpose)
	case domain.ContactPhone:
		if s.sms == nil {
			return errChannelUnavailable
		}
		return s.sms.SendOTPSMS(ctx, c.Contact, c.Code, c.Purpose)
	}
	return fmt.Errorf("unknown contact kind %q", c.ContactKind)
}

func (s *service) VerifyCode(ctx context.Context, contact, code, purpose string) bool {
	if contact == "" || code == "" || purpose == "" {
		codesVerified.WithLabelValues("rejected").Inc()
		return false
	}
	ok, err := s.store.Consume(ctx, domain.NormalizeContact(contact), code, purpose, s.now().UTC())
	if err != nil {
		slog.Error("otp verify failed", "purpose", purpose, "err", err)
		codesVerified.WithLabelValues("error").Inc()
		return false
	}
	if !ok {
		codesVerified.WithLabelValues("rejected").Inc()
		return false
	}
	codesVerified.WithLabelValues("accepted").Inc()
	return true
}

func (s *service) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpired(ctx, s.now().UTC())
	codesSwept.Add(float64(n))
	if err != nil {
		return n, fmt.Errorf("delete expired codes: %w", err)
	}
	return n, nil
}

func channel(kind domain.ContactKind) string {
	if kind == domain.ContactPhone {
		return "sms"
	}
	return "email"
}
