package handler

import (
	"net/http"

	"github.com/securevoting/backend/internal/application/voter"
	"github.com/securevoting/backend/internal/transport/http/middleware"
)

// VoterHandler handles the authenticated voter profile endpoint.
type VoterHandler struct {
	svc voter.Service
}

func NewVoterHandler(svc voter.Service) *VoterHandler { return &VoterHandler{svc: svc} }

func (h *VoterHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	v, err := h.svc.Get(r.Context(), ident.VoterID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
