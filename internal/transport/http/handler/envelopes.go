package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-api-authcore/internal/domain"
	"github.com/go-api-authcore/internal/pkg/validate"
)

const authFailed = "authentication failed"

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TokenEnvelope wraps responses that mint a session token.
type TokenEnvelope struct {
	Token string `json:"token"`
}

// PrincipalsPage wraps a page of principals.
type PrincipalsPage struct {
	Data       []domain.Principal `json:"data"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decode reads a JSON body into dst and validates it. It writes the 400 itself.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// httpError maps service errors to responses. Every authentication failure
// renders the same opaque body so callers cannot enumerate accounts.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrDeliveryFailure):
		writeError(w, http.StatusBadGateway, "code delivery failed")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrAccessDenied):
		slog.Info("authentication failed", "path", r.URL.Path, "reason", err.Error())
		writeError(w, http.StatusUnauthorized, authFailed)
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
