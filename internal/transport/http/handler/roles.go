package handler

import (
	"net/http"
	"strconv"

	"github.com/go-api-authcore/internal/application/role"
	"github.com/go-chi/chi/v5"
)

// RoleHandler serves the role catalog and principal role grants (admin-only).
type RoleHandler struct {
	svc role.Service
}

func NewRoleHandler(svc role.Service) *RoleHandler { return &RoleHandler{svc: svc} }

// RolesEnvelope lists a principal's active role ids, primary first.
type RolesEnvelope struct {
	PrincipalID int64   `json:"principal_id"`
	RoleIDs     []int64 `json:"role_ids"`
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.List(r.Context())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	roleID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	rl, err := h.svc.Get(r.Context(), roleID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rl)
}

func (h *RoleHandler) Grant(w http.ResponseWriter, r *http.Request) {
	principalID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req role.GrantRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.svc.Grant(r.Context(), principalID, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *RoleHandler) PrincipalRoles(w http.ResponseWriter, r *http.Request) {
	principalID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	ids, err := h.svc.Roles(r.Context(), principalID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RolesEnvelope{PrincipalID: principalID, RoleIDs: ids})
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
