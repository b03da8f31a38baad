package handler

import (
	"encoding/json"
	"net/http"

	"github.com/securevoting/backend/internal/application/session"
	"github.com/securevoting/backend/internal/application/voter"
	"github.com/securevoting/backend/internal/domain"
	"github.com/securevoting/backend/internal/transport/http/middleware"
)

// AuthHandler handles registration, OTP, login, and logout endpoints.
type AuthHandler struct {
	voters   voter.Service
	sessions session.Service
}

func NewAuthHandler(voters voter.Service, sessions session.Service) *AuthHandler {
	return &AuthHandler{voters: voters, sessions: sessions}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, otpExpiresIn, err := h.voters.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{
		Voter:        v,
		OTPExpiresIn: otpExpiresIn,
		Message:      "registered, verification OTP sent",
	})
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mobile string `json:"mobile"`
		Type   string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = domain.OTPPurposeLogin
	}
	expiresIn, err := h.voters.RequestOTP(r.Context(), req.Mobile, req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPEnvelope{Message: "OTP sent", ExpiresIn: expiresIn})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mobile string `json:"mobile"`
		OTP    string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.voters.VerifyMobile(r.Context(), req.Mobile, req.OTP); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "mobile number verified"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.voters.Login(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Bearer:    result.Token,
		ExpiresIn: result.ExpiresIn,
		Voter:     result.Voter,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.sessions.Revoke(r.Context(), ident.Token); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
