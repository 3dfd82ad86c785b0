package handler

import (
	"net/http"

	"github.com/go-api-authcore/internal/application/recovery"
	"github.com/go-api-authcore/internal/domain"
	"github.com/go-api-authcore/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// PasswordRecoveryHandler handles password reset and change endpoints.
type PasswordRecoveryHandler struct {
	svc recovery.Service
}

func NewPasswordRecoveryHandler(svc recovery.Service) *PasswordRecoveryHandler {
	return &PasswordRecoveryHandler{svc: svc}
}

func (h *PasswordRecoveryHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "request":
		var req recovery.ResetRequest
		if !decode(w, r, &req) {
			return
		}
		if err := h.svc.RequestReset(r.Context(), req); err != nil {
			httpError(w, r, err)
			return
		}
		// Same answer whether or not the contact is registered.
		writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "if the contact is registered, a code was sent"})
	case "confirm":
		var req recovery.ResetConfirmRequest
		if !decode(w, r, &req) {
			return
		}
		if err := h.svc.ConfirmReset(r.Context(), req); err != nil {
			httpError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (h *PasswordRecoveryHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpError(w, r, domain.ErrMalformedToken)
		return
	}
	var req recovery.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.PrincipalID, req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}
