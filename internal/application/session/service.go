// Package session mints, validates, and revokes signed session tokens bound
// to voter identities.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/securevoting/backend/internal/domain"
	jwtinfra "github.com/securevoting/backend/internal/infrastructure/jwt"
	"github.com/securevoting/backend/internal/pkg/id"
)

// errOpaque is returned for every validation failure. Revealing whether the
// signature, the declared expiry, or the record lookup failed would tell an
// attacker which part of a forged token was right.
var errOpaque = fmt.Errorf("invalid or expired session: %w", domain.ErrUnauthorized)

// Store is the session-record persistence. Deleting a record revokes the
// matching token even while its signature window is still open.
type Store interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time) error
}

// TokenProvider signs and verifies the bearer tokens themselves.
type TokenProvider interface {
	Sign(voterID, sessionID string) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
	Expiry() time.Duration
}

type Service interface {
	// Create mints a signed token and persists the matching session record.
	Create(ctx context.Context, voterID string) (token string, expiresIn int, err error)
	// Validate checks signature, declared expiry, and that an active session
	// record still exists. All three must pass.
	Validate(ctx context.Context, token string) (*domain.Session, error)
	// Revoke deletes the session record behind a token.
	Revoke(ctx context.Context, token string) error
	// Sweep removes session records past expiry.
	Sweep(ctx context.Context) error
}

type service struct {
	store    Store
	provider TokenProvider
	now      func() time.Time
}

type ServiceDeps struct {
	Store    Store
	Provider TokenProvider
	Now      func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{store: deps.Store, provider: deps.Provider, now: now}
}

func (s *service) Create(ctx context.Context, voterID string) (string, int, error) {
	now := s.now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		VoterID:   voterID,
		ExpiresAt: now.Add(s.provider.Expiry()),
		CreatedAt: now,
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return "", 0, err
	}
	token, err := s.provider.Sign(voterID, sess.SessionID)
	if err != nil {
		return "", 0, err
	}
	return token, int(s.provider.Expiry().Seconds()), nil
}

func (s *service) Validate(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := s.provider.Verify(token)
	if err != nil {
		return nil, errOpaque
	}
	// Cross-check the record: a revoked token still carries a valid
	// signature but its session row is gone.
	sess, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, errOpaque
	}
	if sess.VoterID != claims.VoterID || s.now().After(sess.ExpiresAt) {
		return nil, errOpaque
	}
	return sess, nil
}

func (s *service) Revoke(ctx context.Context, token string) error {
	claims, err := s.provider.Verify(token)
	if err != nil {
		return errOpaque
	}
	return s.store.Delete(ctx, claims.SessionID)
}

func (s *service) Sweep(ctx context.Context) error {
	return s.store.DeleteExpired(ctx, s.now())
}
