package session

import (
	"context"
	"testing"
	"time"

	"github.com/securevoting/backend/internal/domain"
	jwtinfra "github.com/securevoting/backend/internal/infrastructure/jwt"
	"github.com/securevoting/backend/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, now *time.Time) Service {
	t.Helper()
	provider, err := jwtinfra.NewProvider("test-secret", 24*time.Hour,
		jwtinfra.WithTimeFunc(func() time.Time { return *now }))
	require.NoError(t, err)
	return NewService(ServiceDeps{
		Store:    memory.NewSessionStore(),
		Provider: provider,
		Now:      func() time.Time { return *now },
	})
}

func TestCreateAndValidate(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	token, expiresIn, err := svc.Create(context.Background(), "voter-1")
	require.NoError(t, err)
	assert.Equal(t, int((24 * time.Hour).Seconds()), expiresIn)

	sess, err := svc.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "voter-1", sess.VoterID)
}

func TestValidate_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	token, _, err := svc.Create(context.Background(), "voter-1")
	require.NoError(t, err)

	// Just inside the 24-hour window.
	now = now.Add(23*time.Hour + 59*time.Minute)
	_, err = svc.Validate(context.Background(), token)
	require.NoError(t, err)

	// Just past it.
	now = now.Add(2 * time.Minute)
	_, err = svc.Validate(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidate_TamperedToken(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	token, _, err := svc.Create(context.Background(), "voter-1")
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = svc.Validate(context.Background(), tampered)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidate_GarbageToken(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	_, err := svc.Validate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRevoke_InvalidatesToken(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	token, _, err := svc.Create(context.Background(), "voter-1")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), token))

	// The signature is still valid, but the session record is gone.
	_, err = svc.Validate(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSweep_RemovesExpiredRecords(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, &now)

	token, _, err := svc.Create(context.Background(), "voter-1")
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	require.NoError(t, svc.Sweep(context.Background()))

	_, err = svc.Validate(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
