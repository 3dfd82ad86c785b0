package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	jwtinfra "github.com/go-api-authcore/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
)

func withClaims(c *jwtinfra.Claims) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/", nil).WithContext(WithClaims(context.Background(), c))
}

func TestRequireRole_NoClaimsInContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	RequireRole(1)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRole_WrongRole(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(1)(http.HandlerFunc(okHandler)).ServeHTTP(rr, withClaims(&jwtinfra.Claims{RoleIDs: []int64{2}}))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireRole_ChecksWholeList(t *testing.T) {
	primary := int64(2)
	rr := httptest.NewRecorder()
	RequireRole(1)(http.HandlerFunc(okHandler)).ServeHTTP(rr, withClaims(&jwtinfra.Claims{RoleIDs: []int64{2, 1}, RoleID: &primary}))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole_MultipleAllowedRoles(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(1, 3)(http.HandlerFunc(okHandler)).ServeHTTP(rr, withClaims(&jwtinfra.Claims{RoleIDs: []int64{3}}))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAccountType(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireAccountType(1)(http.HandlerFunc(okHandler)).ServeHTTP(rr, withClaims(&jwtinfra.Claims{AccountTypeID: 2}))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	RequireAccountType(1)(http.HandlerFunc(okHandler)).ServeHTTP(rr, withClaims(&jwtinfra.Claims{AccountTypeID: 1}))
	assert.Equal(t, http.StatusOK, rr.Code)
}
