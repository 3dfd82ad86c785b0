package handler

import (
	"net/http"

	"github.com/go-api-authcore/internal/application/auth"
	"github.com/go-api-authcore/internal/domain"
	"github.com/go-api-authcore/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// AuthHandler serves the login and OTP flows.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

// ChallengeEnvelope reports that a code was sent.
type ChallengeEnvelope struct {
	Message string `json:"message"`
	Purpose string `json:"purpose"`
	Channel string `json:"channel"`
}

// MeEnvelope is the introspection view of the caller's token.
type MeEnvelope struct {
	PrincipalID   int64   `json:"principal_id"`
	Email         string  `json:"email"`
	Contact       string  `json:"contact"`
	Username      string  `json:"username"`
	RoleIDs       []int64 `json:"role_ids"`
	RoleID        *int64  `json:"role_id,omitempty"`
	AccountTypeID int64   `json:"account_type_id"`
	ExpiresAt     int64   `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	tok, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: tok})
}

func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	flow, ok := auth.FlowByName(chi.URLParam(r, "flow"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown flow")
		return
	}
	var req auth.CodeRequest
	if !decode(w, r, &req) {
		return
	}
	ch, err := h.svc.RequestCode(r.Context(), flow, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ChallengeEnvelope{Message: "code sent", Purpose: ch.Purpose, Channel: ch.Channel})
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	flow, ok := auth.FlowByName(chi.URLParam(r, "flow"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown flow")
		return
	}
	var req auth.VerifyRequest
	if !decode(w, r, &req) {
		return
	}
	tok, err := h.svc.VerifyCode(r.Context(), flow, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: tok})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpError(w, r, domain.ErrMalformedToken)
		return
	}
	me := MeEnvelope{
		PrincipalID:   claims.PrincipalID,
		Email:         claims.Email,
		Contact:       claims.Contact,
		Username:      claims.Username,
		RoleIDs:       claims.RoleIDs,
		RoleID:        claims.RoleID,
		AccountTypeID: claims.AccountTypeID,
	}
	if claims.ExpiresAt != nil {
		me.ExpiresAt = claims.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, me)
}
