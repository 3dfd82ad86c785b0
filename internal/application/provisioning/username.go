package provisioning

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	fallbackUsername  = "user"
	maxUsernameProbes = 100
)

// BaseUsername derives a username from a display name: diacritics folded,
// lowercased, non-alphanumeric runs collapsed, words joined by ".".
func BaseUsername(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(words) == 0 {
		return fallbackUsername
	}
	return strings.Join(words, ".")
}

type usernameChecker interface {
	Taken(ctx context.Context, kind, value string) (bool, error)
}

// allocateUsername returns the first free candidate among base, base2, base3, ...
func allocateUsername(ctx context.Context, store usernameChecker, name string) (string, error) {
	base := BaseUsername(name)
	for i := 1; i <= maxUsernameProbes; i++ {
		candidate := base
		if i > 1 {
			candidate = base + strconv.Itoa(i)
		}
		taken, err := store.Taken(ctx, uniqueUsername, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free username for %q", base)
}
