package handler

import (
	"encoding/json"
	"net/http"

	"github.com/securevoting/backend/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthEnvelope wraps login/register responses.
type AuthEnvelope struct {
	Bearer       string        `json:"Bearer,omitempty"`
	ExpiresIn    int           `json:"expires_in,omitempty"`
	Voter        *domain.Voter `json:"voter,omitempty"`
	OTPExpiresIn int           `json:"otp_expires_in,omitempty"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// OTPEnvelope wraps OTP issuance responses. The code itself is never in the
// response; it travels only over SMS.
type OTPEnvelope struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
}

// ReceiptEnvelope wraps cast-vote and receipt-verification responses.
type ReceiptEnvelope struct {
	Receipt  *domain.Receipt `json:"receipt,omitempty"`
	Verified bool            `json:"verified,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// TallyEnvelope wraps per-candidate vote counts.
type TallyEnvelope struct {
	Results []CandidateTally `json:"results"`
	Total   int              `json:"total"`
}

// CandidateTally is one row of the tally, roster order.
type CandidateTally struct {
	CandidateID int    `json:"candidate_id"`
	Name        string `json:"name"`
	Party       string `json:"party"`
	Votes       int    `json:"votes"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
