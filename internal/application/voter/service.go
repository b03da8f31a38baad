// Package voter owns registration, mobile verification, and login against
// the identity store.
package voter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/securevoting/backend/internal/domain"
	"github.com/securevoting/backend/internal/infrastructure/smtp"
	"github.com/securevoting/backend/internal/pkg/credential"
	"github.com/securevoting/backend/internal/pkg/id"
	"github.com/securevoting/backend/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// errBadCredentials is deliberately identical for unknown identities and
// wrong passwords.
var errBadCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

// Store is the identity persistence. The raw voter ID is hashed before any
// store call; uniqueness holds over voter_id_hash, mobile, and email.
type Store interface {
	Put(ctx context.Context, v *domain.Voter) error
	Get(ctx context.Context, voterID string) (*domain.Voter, error)
	GetByVoterIDHash(ctx context.Context, hash string) (*domain.Voter, error)
	GetByMobile(ctx context.Context, mobile string) (*domain.Voter, error)
	GetByEmail(ctx context.Context, email string) (*domain.Voter, error)
	Update(ctx context.Context, voterID string, updates map[string]interface{}) error
}

// OTPService is the slice of the OTP authenticator this service needs.
type OTPService interface {
	Request(ctx context.Context, mobile, purpose string) (int, error)
	Verify(ctx context.Context, mobile, code, purpose string) error
}

// SessionService mints tokens on successful login.
type SessionService interface {
	Create(ctx context.Context, voterID string) (token string, expiresIn int, err error)
}

type LoginResult struct {
	Token     string
	ExpiresIn int
	Voter     *domain.Voter
}

type Service interface {
	// Register creates an unverified voter and triggers a verification OTP.
	// Returns the new voter and the OTP lifetime in seconds.
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.Voter, int, error)
	// RequestOTP issues a code for login or verification. Login codes
	// require an existing account for the mobile.
	RequestOTP(ctx context.Context, mobile, purpose string) (int, error)
	// VerifyMobile consumes a verification OTP and marks the voter verified.
	VerifyMobile(ctx context.Context, mobile, code string) error
	// Login authenticates by voterID+password, email+password, or
	// mobile+OTP and mints a session.
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	Get(ctx context.Context, voterID string) (*domain.Voter, error)
}

type service struct {
	store    Store
	otp      OTPService
	sessions SessionService
	mailer   smtp.Mailer
}

type ServiceDeps struct {
	Store    Store
	OTP      OTPService
	Sessions SessionService
	Mailer   smtp.Mailer
}

func NewService(deps ServiceDeps) Service {
	return &service{store: deps.Store, otp: deps.OTP, sessions: deps.Sessions, mailer: deps.Mailer}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Voter, int, error) {
	if err := validate.Struct(req); err != nil {
		return nil, 0, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	for _, res := range []credential.Result{
		credential.ValidateVoterID(req.VoterID),
		credential.ValidateEmail(req.Email),
		credential.ValidatePassword(req.Password),
		credential.ValidateMobile(req.Mobile),
		credential.ValidateState(req.State),
	} {
		if !res.Valid {
			return nil, 0, fmt.Errorf("%s: %w", res.Reason, domain.ErrBadRequest)
		}
	}

	voterIDHash := credential.HashIdentifier(credential.NormalizeVoterID(req.VoterID))
	mobile := credential.NormalizeMobile(req.Mobile)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.store.GetByVoterIDHash(ctx, voterIDHash); err == nil {
		return nil, 0, fmt.Errorf("a voter with this voter ID already exists: %w", domain.ErrConflict)
	}
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return nil, 0, fmt.Errorf("a voter with this email already exists: %w", domain.ErrConflict)
	}
	if _, err := s.store.GetByMobile(ctx, mobile); err == nil {
		return nil, 0, fmt.Errorf("a voter with this mobile number already exists: %w", domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, 0, err
	}
	now := time.Now().UTC()
	v := &domain.Voter{
		VoterID:      id.New(),
		VoterIDHash:  voterIDHash,
		Mobile:       mobile,
		Email:        email,
		PasswordHash: string(hash),
		State:        strings.TrimSpace(req.State),
		Constituency: strings.TrimSpace(req.Constituency),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Put(ctx, v); err != nil {
		return nil, 0, err
	}

	expiresIn, err := s.otp.Request(ctx, mobile, domain.OTPPurposeVerification)
	if err != nil {
		return nil, 0, err
	}

	if s.mailer != nil {
		if err := s.mailer.SendEmail(email, "Welcome to SecureVoting",
			"Your account has been created. Verify your mobile number to enable voting."); err != nil {
			slog.Warn("failed to send welcome email", "voter_id", v.VoterID, "err", err)
		}
	}
	return v, expiresIn, nil
}

func (s *service) RequestOTP(ctx context.Context, mobile, purpose string) (int, error) {
	if res := credential.ValidateMobile(mobile); !res.Valid {
		return 0, fmt.Errorf("%s: %w", res.Reason, domain.ErrBadRequest)
	}
	if purpose != domain.OTPPurposeLogin && purpose != domain.OTPPurposeVerification {
		return 0, fmt.Errorf("unknown OTP type: %w", domain.ErrBadRequest)
	}
	normalized := credential.NormalizeMobile(mobile)
	if purpose == domain.OTPPurposeLogin {
		if _, err := s.store.GetByMobile(ctx, normalized); err != nil {
			return 0, fmt.Errorf("no account found with this mobile number: %w", domain.ErrNotFound)
		}
	}
	return s.otp.Request(ctx, normalized, purpose)
}

func (s *service) VerifyMobile(ctx context.Context, mobile, code string) error {
	if res := credential.ValidateMobile(mobile); !res.Valid {
		return fmt.Errorf("%s: %w", res.Reason, domain.ErrBadRequest)
	}
	if res := credential.ValidateOTP(code); !res.Valid {
		return fmt.Errorf("%s: %w", res.Reason, domain.ErrBadRequest)
	}
	normalized := credential.NormalizeMobile(mobile)
	v, err := s.store.GetByMobile(ctx, normalized)
	if err != nil {
		return fmt.Errorf("no account found with this mobile number: %w", domain.ErrNotFound)
	}
	if err := s.otp.Verify(ctx, normalized, code, domain.OTPPurposeVerification); err != nil {
		return err
	}
	return s.store.Update(ctx, v.VoterID, map[string]interface{}{"is_verified": true})
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}

	var v *domain.Voter
	var err error
	switch req.LoginType {
	case "voterID":
		if req.VoterID == "" || req.Password == "" {
			return nil, fmt.Errorf("voter ID and password are required: %w", domain.ErrBadRequest)
		}
		if res := credential.ValidateVoterID(req.VoterID); !res.Valid {
			return nil, fmt.Errorf("%s: %w", res.Reason, domain.ErrBadRequest)
		}
		hash := credential.HashIdentifier(credential.NormalizeVoterID(req.VoterID))
		v, err = s.store.GetByVoterIDHash(ctx, hash)
		if err != nil {
			return nil, errBadCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(v.PasswordHash), []byte(req.Password)) != nil {
			return nil, errBadCredentials
		}
	case "email":
		if req.Email == "" || req.Password == "" {
			return nil, fmt.Errorf("email and password are required: %w", domain.ErrBadRequest)
		}
		v, err = s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil {
			return nil, errBadCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(v.PasswordHash), []byte(req.Password)) != nil {
			return nil, errBadCredentials
		}
	case "mobile":
		if req.Mobile == "" || req.OTP == "" {
			return nil, fmt.Errorf("mobile number and OTP are required: %w", domain.ErrBadRequest)
		}
		if res := credential.ValidateOTP(req.OTP); !res.Valid {
			return nil, fmt.Errorf("%s: %w", res.Reason, domain.ErrBadRequest)
		}
		mobile := credential.NormalizeMobile(req.Mobile)
		if err := s.otp.Verify(ctx, mobile, req.OTP, domain.OTPPurposeLogin); err != nil {
			return nil, err
		}
		v, err = s.store.GetByMobile(ctx, mobile)
		if err != nil {
			return nil, errBadCredentials
		}
	default:
		return nil, fmt.Errorf("invalid login type: %w", domain.ErrBadRequest)
	}

	token, expiresIn, err := s.sessions.Create(ctx, v.VoterID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresIn: expiresIn, Voter: v}, nil
}

func (s *service) Get(ctx context.Context, voterID string) (*domain.Voter, error) {
	return s.store.Get(ctx, voterID)
}
