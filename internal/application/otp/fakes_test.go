package otp

import (
	"context"
	"sync"
	"time"

	"github.com/go-api-authcore/internal/domain"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory codeStore with the same atomicity as the DynamoDB repo.
type memStore struct {
	mu    sync.Mutex
	codes []domain.OneTimeCode
}

func (m *memStore) Rotate(_ context.Context, c *domain.OneTimeCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.codes {
		if m.codes[i].Contact == c.Contact && m.codes[i].Purpose == c.Purpose {
			m.codes[i].Used = true
		}
	}
	m.codes = append(m.codes, *c)
	return nil
}

func (m *memStore) Consume(_ context.Context, contact, code, purpose string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.codes {
		c := &m.codes[i]
		if c.Contact == contact && c.Code == code && c.Purpose == purpose && c.ValidAt(now) {
			c.Used = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.codes[:0]
	deleted := 0
	for _, c := range m.codes {
		if c.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	m.codes = kept
	return deleted, nil
}

func (m *memStore) live(contact, purpose string, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.codes {
		if c.Contact == contact && c.Purpose == purpose && c.ValidAt(now) {
			n++
		}
	}
	return n
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendOTPEmail(ctx context.Context, address, code, purpose string) error {
	return m.Called(ctx, address, code, purpose).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendOTPSMS(ctx context.Context, number, code, purpose string) error {
	return m.Called(ctx, number, code, purpose).Error(0)
}
