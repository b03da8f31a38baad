package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/securevoting/backend/internal/application/otp"
	"github.com/securevoting/backend/internal/application/session"
	"github.com/securevoting/backend/internal/config"
	"github.com/securevoting/backend/internal/domain"
	jwtinfra "github.com/securevoting/backend/internal/infrastructure/jwt"
	"github.com/securevoting/backend/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSMS struct{ messages []string }

func (r *recordingSMS) SendSMS(_ context.Context, _, message string) error {
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingSMS) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.messages)
	code := regexp.MustCompile(`\d{6}`).FindString(r.messages[len(r.messages)-1])
	require.Len(t, code, 6)
	return code
}

type nopArchive struct{}

func (nopArchive) PutSnapshot(context.Context, []byte) (string, error) {
	return "ledger-snapshots/test.json", nil
}

func newTestRouter(t *testing.T) (http.Handler, *recordingSMS) {
	t.Helper()
	sms := &recordingSMS{}
	voters := memory.NewVoterStore()
	provider, err := jwtinfra.NewProvider("test-secret", 24*time.Hour)
	require.NoError(t, err)

	deps := &Deps{
		Voters: voters,
		Votes:  memory.NewVoteStore(voters),
		OTP: otp.NewService(otp.ServiceDeps{
			Store:      memory.NewOTPStore(),
			SMSSender:  sms,
			CodeLength: 6,
			TTL:        10 * time.Minute,
			Cooldown:   2 * time.Minute,
		}),
		Sessions: session.NewService(session.ServiceDeps{
			Store:    memory.NewSessionStore(),
			Provider: provider,
		}),
		Archive:   nopArchive{},
		SMSSender: sms,
		Candidates: []domain.Candidate{
			{ID: 1, Name: "Rajesh Kumar", Party: "Indian National Congress"},
			{ID: 2, Name: "Priya Sharma", Party: "Bharatiya Janata Party"},
		},
	}
	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	return NewRouter(cfg, deps), sms
}

func doJSON(t *testing.T, router http.Handler, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, r)
	return rr
}

// TestFullVotingFlow exercises the whole lifecycle through the router:
// register, verify mobile, log in, cast, re-cast, verify receipt, tally,
// log out.
func TestFullVotingFlow(t *testing.T) {
	router, sms := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"voterID": "ABC1234567", "email": "asha@example.com", "password": "Str0ng@Pass",
		"mobile": "9876543210", "state": "Maharashtra", "constituency": "Mumbai North",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// Verification OTP arrives over SMS only.
	code := sms.lastCode(t)
	rr = doJSON(t, router, http.MethodPost, "/v1/auth/otp/verify", "", map[string]string{
		"mobile": "9876543210", "otp": code,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"loginType": "voterID", "voterID": "ABC1234567", "password": "Str0ng@Pass",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var login struct {
		Bearer string `json:"Bearer"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&login))
	require.NotEmpty(t, login.Bearer)

	rr = doJSON(t, router, http.MethodPost, "/v1/votes", login.Bearer, map[string]int{"candidateId": 2})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var cast struct {
		Receipt domain.Receipt `json:"receipt"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&cast))
	require.NotEmpty(t, cast.Receipt.ReceiptID)

	// A second ballot from the same voter is rejected.
	rr = doJSON(t, router, http.MethodPost, "/v1/votes", login.Bearer, map[string]int{"candidateId": 1})
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Receipt verification needs no session.
	rr = doJSON(t, router, http.MethodGet, "/v1/votes/receipt/"+cast.Receipt.ReceiptID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var verified struct {
		Verified bool `json:"verified"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&verified))
	assert.True(t, verified.Verified)

	rr = doJSON(t, router, http.MethodGet, "/v1/votes/tally", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var tally struct {
		Results []struct {
			CandidateID int `json:"candidate_id"`
			Votes       int `json:"votes"`
		} `json:"results"`
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tally))
	assert.Equal(t, 1, tally.Total)
	for _, row := range tally.Results {
		if row.CandidateID == 2 {
			assert.Equal(t, 1, row.Votes)
		} else {
			assert.Equal(t, 0, row.Votes)
		}
	}

	rr = doJSON(t, router, http.MethodGet, "/v1/votes/status", login.Bearer, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var status struct {
		HasVoted bool           `json:"has_voted"`
		Receipt  domain.Receipt `json:"receipt"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.True(t, status.HasVoted)
	assert.Equal(t, cast.Receipt.ReceiptID, status.Receipt.ReceiptID)

	rr = doJSON(t, router, http.MethodPost, "/v1/auth/logout", login.Bearer, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// The revoked token is dead immediately.
	rr = doJSON(t, router, http.MethodGet, "/v1/voters/me", login.Bearer, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCast_RequiresVerifiedMobile(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"voterID": "XYZ7654321", "email": "ravi@example.com", "password": "Str0ng@Pass",
		"mobile": "9123456780", "state": "Kerala", "constituency": "Kochi",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// Log in without verifying the mobile.
	rr = doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"loginType": "voterID", "voterID": "XYZ7654321", "password": "Str0ng@Pass",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var login struct {
		Bearer string `json:"Bearer"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&login))

	rr = doJSON(t, router, http.MethodPost, "/v1/votes", login.Bearer, map[string]int{"candidateId": 1})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLoginWithOTP_ThroughRouter(t *testing.T) {
	router, sms := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"voterID": "DEF1112223", "email": "meena@example.com", "password": "Str0ng@Pass",
		"mobile": "9898989898", "state": "Gujarat", "constituency": "Surat",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doJSON(t, router, http.MethodPost, "/v1/auth/otp/send", "", map[string]string{
		"mobile": "9898989898", "type": "login",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	code := sms.lastCode(t)
	rr = doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"loginType": "mobile", "mobile": "9898989898", "otp": code,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestCandidates_Public(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/v1/candidates", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var roster []domain.Candidate
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&roster))
	assert.Len(t, roster, 2)
}
