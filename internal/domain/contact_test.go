package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyContact(t *testing.T) {
	cases := []struct {
		in   string
		want ContactKind
	}{
		{"user@x.com", ContactEmail},
		{"a.b+tag@sub.example.org", ContactEmail},
		{"555-0100", ContactPhone},
		{"+52 55 1234 5678", ContactPhone},
		{"5551234567", ContactPhone},
	}
	for _, tc := range cases {
		got, err := ClassifyContact(tc.in)
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestClassifyContact_Invalid(t *testing.T) {
	for _, in := range []string{"", " user@x.com", "user@", "user@localhost", "Jane <j@x.com>", "12345", "abc-defg", "555--0100"} {
		_, err := ClassifyContact(in)
		assert.True(t, errors.Is(err, ErrInvalidContactFormat), in)
		assert.True(t, errors.Is(err, ErrBadRequest), in)
	}
}

func TestNormalizeContact(t *testing.T) {
	assert.Equal(t, "jane@b.com", NormalizeContact("Jane@B.com"))
	assert.Equal(t, "555-0100", NormalizeContact("555-0100"))
	assert.Equal(t, "Ana.Perez", NormalizeContact("Ana.Perez"))

	kind, err := ClassifyContact(NormalizeContact("Jane@B.com"))
	assert.NoError(t, err)
	assert.Equal(t, ContactEmail, kind)
}

func TestOneTimeCode_ValidAtIsStrict(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &OneTimeCode{ExpiresAt: exp}
	assert.True(t, c.ValidAt(exp.Add(-time.Nanosecond)))
	assert.False(t, c.ValidAt(exp))
	c.Used = true
	assert.False(t, c.ValidAt(exp.Add(-time.Minute)))
}

func TestTaxonomyWrapsGenericSentinels(t *testing.T) {
	assert.True(t, errors.Is(ErrPrincipalNotFound, ErrUnauthorized))
	assert.True(t, errors.Is(ErrInvalidCredentials, ErrUnauthorized))
	assert.True(t, errors.Is(ErrInvalidOrExpiredCode, ErrUnauthorized))
	assert.True(t, errors.Is(ErrAccessDenied, ErrForbidden))
	assert.False(t, errors.Is(ErrDeliveryFailure, ErrUnauthorized))
}
