package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/securevoting/backend/internal/domain"
)

// OTPStore keeps one-time codes keyed by (mobile, purpose).
type OTPStore struct {
	mu    sync.Mutex
	codes map[string]domain.OneTimeCode
}

func NewOTPStore() *OTPStore {
	return &OTPStore{codes: make(map[string]domain.OneTimeCode)}
}

func otpKey(mobile, purpose string) string { return mobile + "#" + purpose }

func (s *OTPStore) Put(_ context.Context, c *domain.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[otpKey(c.Mobile, c.Purpose)] = *c
	return nil
}

func (s *OTPStore) Get(_ context.Context, mobile, purpose string) (*domain.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[otpKey(mobile, purpose)]
	if !ok {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (s *OTPStore) IncrementAttempts(_ context.Context, mobile, purpose string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[otpKey(mobile, purpose)]
	if !ok {
		return 0, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	c.Attempts++
	s.codes[otpKey(mobile, purpose)] = c
	return c.Attempts, nil
}

func (s *OTPStore) MarkUsed(_ context.Context, mobile, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[otpKey(mobile, purpose)]
	if !ok {
		return fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	c.Used = true
	s.codes[otpKey(mobile, purpose)] = c
	return nil
}

func (s *OTPStore) Delete(_ context.Context, mobile, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, otpKey(mobile, purpose))
	return nil
}

func (s *OTPStore) DeleteExpired(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.codes {
		if c.ExpiresAt.Before(now) {
			delete(s.codes, k)
		}
	}
	return nil
}
