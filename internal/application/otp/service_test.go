package otp

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/securevoting/backend/internal/domain"
	"github.com/securevoting/backend/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMobile = "+919876543210"

type fakeSMS struct {
	messages []string
	to       []string
}

func (f *fakeSMS) SendSMS(_ context.Context, to, message string) error {
	f.to = append(f.to, to)
	f.messages = append(f.messages, message)
	return nil
}

var codeRe = regexp.MustCompile(`\d{6}`)

func (f *fakeSMS) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.messages)
	code := codeRe.FindString(f.messages[len(f.messages)-1])
	require.Len(t, code, 6)
	return code
}

func newTestService(sms *fakeSMS, now *time.Time) Service {
	return NewService(ServiceDeps{
		Store:      memory.NewOTPStore(),
		SMSSender:  sms,
		CodeLength: 6,
		TTL:        10 * time.Minute,
		Cooldown:   2 * time.Minute,
		Now:        func() time.Time { return *now },
	})
}

func TestRequestAndVerify_HappyPath(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &fakeSMS{}
	svc := newTestService(sms, &now)

	expiresIn, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 600, expiresIn)
	assert.Equal(t, []string{testMobile}, sms.to)

	code := sms.lastCode(t)
	require.NoError(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeLogin))
}

func TestVerify_SingleUse(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &fakeSMS{}
	svc := newTestService(sms, &now)

	_, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	code := sms.lastCode(t)

	require.NoError(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeLogin))
	assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeLogin), ErrInvalidCode)
}

func TestRequest_Cooldown(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &fakeSMS{}
	svc := newTestService(sms, &now)

	_, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	assert.ErrorIs(t, err, ErrCooldown)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	// After the cooldown window a fresh code is issued, invalidating the old one.
	now = now.Add(2 * time.Minute)
	_, err = svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Len(t, sms.messages, 2)
}

func TestRequest_ReissueReplacesOldCode(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &fakeSMS{}
	svc := newTestService(sms, &now)

	_, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	first := sms.lastCode(t)

	now = now.Add(3 * time.Minute)
	_, err = svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	second := sms.lastCode(t)

	if first != second {
		assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, first, domain.OTPPurposeLogin), ErrInvalidCode)
	}
	require.NoError(t, svc.Verify(context.Background(), testMobile, second, domain.OTPPurposeLogin))
}

func TestVerify_AttemptsExhausted(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &fakeSMS{}
	svc := newTestService(sms, &now)

	_, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	code := sms.lastCode(t)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, wrong, domain.OTPPurposeLogin), ErrInvalidCode)
	assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, wrong, domain.OTPPurposeLogin), ErrInvalidCode)
	assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, wrong, domain.OTPPurposeLogin), ErrAttemptsExceeded)

	// The correct code is dead once attempts are exhausted.
	assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeLogin), ErrAttemptsExceeded)
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &fakeSMS{}
	svc := newTestService(sms, &now)

	_, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	code := sms.lastCode(t)

	now = now.Add(11 * time.Minute)
	assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeLogin), ErrExpiredCode)
}

func TestVerify_PurposesAreIndependent(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &fakeSMS{}
	svc := newTestService(sms, &now)

	_, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeVerification)
	require.NoError(t, err)
	code := sms.lastCode(t)

	// A verification code never satisfies a login challenge.
	assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeLogin), ErrInvalidCode)
	require.NoError(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeVerification))
}

func TestSweep_RemovesExpiredCodes(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &fakeSMS{}
	svc := newTestService(sms, &now)

	_, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	code := sms.lastCode(t)

	now = now.Add(15 * time.Minute)
	require.NoError(t, svc.Sweep(context.Background()))
	assert.ErrorIs(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeLogin), ErrInvalidCode)
}

// failingSMS fails the first N dispatches, then delivers normally.
type failingSMS struct {
	fakeSMS
	failures int
}

func (f *failingSMS) SendSMS(ctx context.Context, to, message string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("sms gateway down")
	}
	return f.fakeSMS.SendSMS(ctx, to, message)
}

func TestRequest_FailedDispatchDoesNotArmCooldown(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	sms := &failingSMS{failures: 1}
	svc := NewService(ServiceDeps{
		Store:      memory.NewOTPStore(),
		SMSSender:  sms,
		CodeLength: 6,
		TTL:        10 * time.Minute,
		Cooldown:   2 * time.Minute,
		Now:        func() time.Time { return now },
	})

	_, err := svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.Error(t, err)

	// The voter got no code, so an immediate retry must not be rate limited.
	_, err = svc.Request(context.Background(), testMobile, domain.OTPPurposeLogin)
	require.NoError(t, err)
	code := sms.lastCode(t)
	require.NoError(t, svc.Verify(context.Background(), testMobile, code, domain.OTPPurposeLogin))
}
