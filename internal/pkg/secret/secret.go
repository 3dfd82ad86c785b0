// Package secret hashes and compares principal passwords with bcrypt.
package secret

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var placeholder = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("no principal has this password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

// Hash returns the bcrypt hash of raw.
func Hash(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare reports whether raw matches storedHash. A malformed hash is a mismatch.
func Compare(raw, storedHash string) bool {
	if raw == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(raw)) == nil
}

// Decoy spends one full bcrypt comparison on a placeholder hash. Callers run it
// when no principal matched so that path takes as long as a wrong password.
func Decoy(raw string) {
	_ = bcrypt.CompareHashAndPassword(placeholder(), []byte(raw))
}

// Bcrypt adapts Hash and Compare to the hasher interfaces the services depend on.
type Bcrypt struct{}

func (Bcrypt) Hash(raw string) (string, error)     { return Hash(raw) }
func (Bcrypt) Compare(raw, storedHash string) bool { return Compare(raw, storedHash) }
func (Bcrypt) Decoy(raw string)                    { Decoy(raw) }
