package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// authFailed matches the handler body for every authentication failure.
const authFailed = "authentication failed"

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// unauthorized logs reason and writes the opaque 401 body.
func unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Info("authentication failed", "path", r.URL.Path, "reason", reason)
	writeJSONError(w, http.StatusUnauthorized, authFailed)
}

func forbidden(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Info("access forbidden", "path", r.URL.Path, "reason", reason)
	writeJSONError(w, http.StatusForbidden, "forbidden")
}
