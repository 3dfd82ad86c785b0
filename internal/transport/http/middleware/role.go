package middleware

import (
	"net/http"
	"slices"
)

// RequireRole allows the request when the token's role list contains any of roleIDs.
// The full list is checked, never just the primary role.
func RequireRole(roleIDs ...int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				unauthorized(w, r, "no claims in context")
				return
			}
			for _, id := range roleIDs {
				if slices.Contains(claims.RoleIDs, id) {
					next.ServeHTTP(w, r)
					return
				}
			}
			forbidden(w, r, "missing role")
		})
	}
}

// RequireAccountType allows the request only for tokens of the given account type.
func RequireAccountType(accountTypeID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				unauthorized(w, r, "no claims in context")
				return
			}
			if claims.AccountTypeID != accountTypeID {
				forbidden(w, r, "wrong account type")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
