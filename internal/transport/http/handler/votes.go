package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/securevoting/backend/internal/application/ledger"
	"github.com/securevoting/backend/internal/domain"
	"github.com/securevoting/backend/internal/transport/http/middleware"
)

// VoteHandler handles ballot, receipt, tally, and audit endpoints.
type VoteHandler struct {
	svc ledger.Service
}

func NewVoteHandler(svc ledger.Service) *VoteHandler { return &VoteHandler{svc: svc} }

func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		CandidateID int `json:"candidateId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The ledger re-validates the token itself; the middleware check alone
	// could be stale by the time the ballot is appended.
	receipt, err := h.svc.CastVote(r.Context(), ident.Token, req.CandidateID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ReceiptEnvelope{Receipt: receipt, Message: "vote recorded"})
}

func (h *VoteHandler) Status(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	receipt, voted, err := h.svc.Status(r.Context(), ident.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		HasVoted bool            `json:"has_voted"`
		Receipt  *domain.Receipt `json:"receipt,omitempty"`
	}{HasVoted: voted, Receipt: receipt})
}

func (h *VoteHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.VerifyReceipt(r.Context(), chi.URLParam(r, "receiptId"))
	if err != nil {
		if errors.Is(err, domain.ErrIntegrity) {
			writeJSON(w, http.StatusOK, ReceiptEnvelope{Verified: false, Error: err.Error()})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReceiptEnvelope{
		Verified: true,
		Receipt:  &domain.Receipt{ReceiptID: rec.ReceiptID, RecordHash: rec.Hash, Timestamp: rec.Timestamp},
	})
}

func (h *VoteHandler) Tally(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Tally(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	env := TallyEnvelope{Results: make([]CandidateTally, 0, len(h.svc.Candidates()))}
	for _, c := range h.svc.Candidates() {
		n := counts[c.ID]
		env.Results = append(env.Results, CandidateTally{CandidateID: c.ID, Name: c.Name, Party: c.Party, Votes: n})
		env.Total += n
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *VoteHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Candidates())
}

func (h *VoteHandler) Export(w http.ResponseWriter, r *http.Request) {
	key, err := h.svc.ExportAudit(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "audit snapshot exported", "key": key})
}
