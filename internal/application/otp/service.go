// Package otp issues and consumes single-use, short-lived one-time codes
// with attempt limits and per-mobile request cooldown.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/securevoting/backend/internal/domain"
	"github.com/securevoting/backend/internal/infrastructure/sns"
	"github.com/securevoting/backend/internal/pkg/id"
)

// Verification outcomes. All wrap domain.ErrUnauthorized or
// domain.ErrRateLimited so the HTTP layer maps them without knowing the
// details.
var (
	ErrInvalidCode      = fmt.Errorf("invalid OTP: %w", domain.ErrUnauthorized)
	ErrExpiredCode      = fmt.Errorf("OTP expired: %w", domain.ErrUnauthorized)
	ErrAttemptsExceeded = fmt.Errorf("too many failed attempts, request a new OTP: %w", domain.ErrUnauthorized)
	ErrCooldown         = fmt.Errorf("OTP already sent, wait before requesting again: %w", domain.ErrRateLimited)
)

// Store is the persistence the authenticator needs. One row per
// (mobile, purpose); Put replaces any previous row.
type Store interface {
	Put(ctx context.Context, c *domain.OneTimeCode) error
	Get(ctx context.Context, mobile, purpose string) (*domain.OneTimeCode, error)
	IncrementAttempts(ctx context.Context, mobile, purpose string) (int, error)
	MarkUsed(ctx context.Context, mobile, purpose string) error
	Delete(ctx context.Context, mobile, purpose string) error
	DeleteExpired(ctx context.Context, now time.Time) error
}

type Service interface {
	// Request issues a fresh code and dispatches it via SMS. Returns the
	// code lifetime in seconds; the code itself is never returned to the
	// caller.
	Request(ctx context.Context, mobile, purpose string) (expiresIn int, err error)
	// Verify consumes the active code for (mobile, purpose). Mismatches and
	// expiries increment the attempt counter before reporting failure, so
	// retries stay bounded and visible.
	Verify(ctx context.Context, mobile, code, purpose string) error
	// Sweep removes expired codes.
	Sweep(ctx context.Context) error
}

type service struct {
	store      Store
	sms        sns.SMSSender
	codeLength int
	ttl        time.Duration
	cooldown   time.Duration
	now        func() time.Time

	// mobileLocks serializes Request/Verify per mobile so attempt counts
	// and cooldown checks are race-free.
	mu          sync.Mutex
	mobileLocks map[string]*sync.Mutex
}

type ServiceDeps struct {
	Store      Store
	SMSSender  sns.SMSSender
	CodeLength int
	TTL        time.Duration
	Cooldown   time.Duration
	Now        func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:       deps.Store,
		sms:         deps.SMSSender,
		codeLength:  deps.CodeLength,
		ttl:         deps.TTL,
		cooldown:    deps.Cooldown,
		now:         now,
		mobileLocks: make(map[string]*sync.Mutex),
	}
}

func (s *service) lockMobile(mobile string) func() {
	s.mu.Lock()
	m, ok := s.mobileLocks[mobile]
	if !ok {
		m = &sync.Mutex{}
		s.mobileLocks[mobile] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (s *service) Request(ctx context.Context, mobile, purpose string) (int, error) {
	unlock := s.lockMobile(mobile)
	defer unlock()

	now := s.now()
	if existing, err := s.store.Get(ctx, mobile, purpose); err == nil {
		active := !existing.Used && now.Before(existing.ExpiresAt)
		if active && now.Sub(existing.CreatedAt) < s.cooldown {
			return 0, ErrCooldown
		}
	}

	code, err := generateCode(s.codeLength)
	if err != nil {
		return 0, err
	}
	c := &domain.OneTimeCode{
		ID:        id.New(),
		Mobile:    mobile,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Put(ctx, c); err != nil {
		return 0, err
	}

	msg := fmt.Sprintf("Your SecureVoting OTP is %s. Valid for %d minutes. Do not share this code.",
		code, int(s.ttl.Minutes()))
	if err := s.sms.SendSMS(ctx, mobile, msg); err != nil {
		// Undelivered code must not arm the cooldown: the voter has nothing
		// in hand and needs to be able to request again immediately.
		if delErr := s.store.Delete(ctx, mobile, purpose); delErr != nil {
			slog.Warn("failed to delete undelivered otp", "mobile", mobile, "err", delErr)
		}
		return 0, fmt.Errorf("send otp: %w", err)
	}
	return int(s.ttl.Seconds()), nil
}

func (s *service) Verify(ctx context.Context, mobile, code, purpose string) error {
	unlock := s.lockMobile(mobile)
	defer unlock()

	c, err := s.store.Get(ctx, mobile, purpose)
	if err != nil {
		return ErrInvalidCode
	}
	if c.Used {
		return ErrInvalidCode
	}
	// A code with exhausted attempts is permanently dead, even if the
	// correct value is presented afterwards.
	if c.Attempts >= domain.MaxOTPAttempts {
		return ErrAttemptsExceeded
	}
	if s.now().After(c.ExpiresAt) {
		if _, err := s.store.IncrementAttempts(ctx, mobile, purpose); err != nil {
			slog.Warn("failed to increment otp attempts", "mobile", mobile, "err", err)
		}
		return ErrExpiredCode
	}
	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		n, err := s.store.IncrementAttempts(ctx, mobile, purpose)
		if err != nil {
			slog.Warn("failed to increment otp attempts", "mobile", mobile, "err", err)
		}
		if n >= domain.MaxOTPAttempts {
			return ErrAttemptsExceeded
		}
		return ErrInvalidCode
	}
	return s.store.MarkUsed(ctx, mobile, purpose)
}

func (s *service) Sweep(ctx context.Context) error {
	return s.store.DeleteExpired(ctx, s.now())
}

// generateCode produces a cryptographically random numeric code, one digit
// at a time to avoid modulo bias.
func generateCode(length int) (string, error) {
	const digits = "0123456789"
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		b[i] = digits[n.Int64()]
	}
	return string(b), nil
}
