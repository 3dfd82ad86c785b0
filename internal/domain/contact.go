package domain

import (
	"net/mail"
	"regexp"
	"strings"
)

// phonePattern accepts an optional leading +, then 7-15 digits optionally
// grouped by single spaces, dots or dashes ("555-0100", "+52 55 1234 5678").
var phonePattern = regexp.MustCompile(`^\+?[0-9]+([ .-]?[0-9]+)*$`)

// ClassifyContact derives the contact kind from its format.
func ClassifyContact(contact string) (ContactKind, error) {
	c := strings.TrimSpace(contact)
	if c == "" || c != contact {
		return "", ErrInvalidContactFormat
	}
	if strings.Contains(c, "@") {
		addr, err := mail.ParseAddress(c)
		if err != nil || addr.Address != c || !strings.Contains(c[strings.LastIndex(c, "@"):], ".") {
			return "", ErrInvalidContactFormat
		}
		return ContactEmail, nil
	}
	if phonePattern.MatchString(c) {
		digits := 0
		for _, r := range c {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 7 && digits <= 15 {
			return ContactPhone, nil
		}
	}
	return "", ErrInvalidContactFormat
}

// NormalizeContact returns the stored form of an identifier. Email addresses
// compare case-insensitively, so they are lowercased; anything else is
// returned as given.
func NormalizeContact(identifier string) string {
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier)
	}
	return identifier
}
