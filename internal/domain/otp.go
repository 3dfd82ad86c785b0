package domain

import "time"

// ContactKind is derived from the shape of a contact string.
type ContactKind string

const (
	ContactEmail ContactKind = "EMAIL"
	ContactPhone ContactKind = "PHONE"
)

// Purpose tags used by the login flows. Other subsystems may use any other string.
const (
	PurposeLogin           = "LOGIN"
	PurposeLoginBackOffice = "LOGIN_BACKOFFICE"
	PurposeLoginUser       = "LOGIN_USER"
	PurposeResetPassword   = "RESET_PASSWORD"
)

// OneTimeCode is a single-use numeric code scoped to a (contact, purpose) pair.
// Used only ever moves from false to true.
type OneTimeCode struct {
	CodeID      string      `json:"id" dynamodbav:"code_id"`
	Contact     string      `json:"contact" dynamodbav:"contact"`
	ContactKind ContactKind `json:"contact_kind" dynamodbav:"contact_kind"`
	Code        string      `json:"-" dynamodbav:"code"`
	Purpose     string      `json:"purpose" dynamodbav:"purpose"`
	ExpiresAt   time.Time   `json:"expires_at" dynamodbav:"-"`
	Used        bool        `json:"used" dynamodbav:"used"`
	CreatedAt   time.Time   `json:"created" dynamodbav:"-"`
}

// ValidAt reports whether the code can still be consumed at now.
// Expiry is strict: a code is already expired at its expiry instant.
func (c *OneTimeCode) ValidAt(now time.Time) bool {
	return !c.Used && c.ExpiresAt.After(now)
}
