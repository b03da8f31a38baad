package http

import (
	"github.com/securevoting/backend/internal/application/ledger"
	"github.com/securevoting/backend/internal/application/otp"
	"github.com/securevoting/backend/internal/application/session"
	"github.com/securevoting/backend/internal/application/voter"
	"github.com/securevoting/backend/internal/domain"
	"github.com/securevoting/backend/internal/infrastructure/smtp"
	"github.com/securevoting/backend/internal/infrastructure/sns"
)

// Deps holds the stores and infrastructure the router needs. The OTP and
// session services are built by the caller, which also owns their background
// sweep loop; the voter and ledger services are composed here on top of them.
type Deps struct {
	Voters     voter.Store
	Votes      ledger.VoteStore
	OTP        otp.Service
	Sessions   session.Service
	Archive    ledger.Archiver
	Mailer     smtp.Mailer
	SMSSender  sns.SMSSender
	Candidates []domain.Candidate
}
