package handler

import (
	"net/http"
	"strconv"

	"github.com/go-api-authcore/internal/application/provisioning"
	"github.com/go-api-authcore/internal/domain"
)

// PrincipalHandler serves administrative principal endpoints.
type PrincipalHandler struct {
	svc provisioning.Service
}

func NewPrincipalHandler(svc provisioning.Service) *PrincipalHandler {
	return &PrincipalHandler{svc: svc}
}

// Provision creates a principal. 201 when every step succeeded, 207 when the
// principal exists but a secondary step failed.
func (h *PrincipalHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req domain.ProvisionRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := h.svc.Provision(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !report.Complete() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}

func (h *PrincipalHandler) Get(w http.ResponseWriter, r *http.Request) {
	principalID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), principalID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PrincipalHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, next, err := h.svc.List(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PrincipalsPage{Data: items, NextCursor: next})
}

func (h *PrincipalHandler) Identifiers(w http.ResponseWriter, r *http.Request) {
	principalID, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	idents, err := h.svc.Identifiers(r.Context(), principalID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idents)
}
