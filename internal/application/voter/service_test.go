package voter

import (
	"context"
	"fmt"
	"testing"

	"github.com/securevoting/backend/internal/domain"
	"github.com/securevoting/backend/internal/infrastructure/memory"
	"github.com/securevoting/backend/internal/pkg/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOTP struct {
	requests []string // "mobile/purpose"
	code     string
}

func (f *fakeOTP) Request(_ context.Context, mobile, purpose string) (int, error) {
	f.requests = append(f.requests, mobile+"/"+purpose)
	return 600, nil
}

func (f *fakeOTP) Verify(_ context.Context, mobile, code, purpose string) error {
	if code != f.code {
		return fmt.Errorf("invalid OTP: %w", domain.ErrUnauthorized)
	}
	return nil
}

type fakeSessions struct{ created []string }

func (f *fakeSessions) Create(_ context.Context, voterID string) (string, int, error) {
	f.created = append(f.created, voterID)
	return "token-" + voterID, 86400, nil
}

func validRegistration() domain.RegisterRequest {
	return domain.RegisterRequest{
		VoterID:      "ABC1234567",
		Email:        "asha@example.com",
		Password:     "Str0ng@Pass",
		Mobile:       "9876543210",
		State:        "Maharashtra",
		Constituency: "Mumbai North",
	}
}

func newTestService() (Service, *memory.VoterStore, *fakeOTP, *fakeSessions) {
	store := memory.NewVoterStore()
	otps := &fakeOTP{code: "123456"}
	sessions := &fakeSessions{}
	svc := NewService(ServiceDeps{Store: store, OTP: otps, Sessions: sessions})
	return svc, store, otps, sessions
}

func TestRegister_HappyPath(t *testing.T) {
	svc, store, otps, _ := newTestService()

	v, otpExpiresIn, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Equal(t, 600, otpExpiresIn)
	assert.False(t, v.IsVerified)
	assert.False(t, v.HasVoted)
	assert.Equal(t, "+919876543210", v.Mobile)
	assert.NotEmpty(t, v.VoterIDHash, "voter ID hash must be set")

	// The raw electoral-roll ID is never stored, only its hash.
	stored, err := store.Get(context.Background(), v.VoterID)
	require.NoError(t, err)
	assert.NotEqual(t, "ABC1234567", stored.VoterID)
	assert.Equal(t, credential.HashIdentifier("ABC1234567"), stored.VoterIDHash)

	// A verification OTP goes out on registration.
	assert.Equal(t, []string{"+919876543210/" + domain.OTPPurposeVerification}, otps.requests)
}

func TestRegister_InvalidVoterID(t *testing.T) {
	svc, _, _, _ := newTestService()

	req := validRegistration()
	req.VoterID = "AB12345678" // two letters instead of three
	_, _, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRegister_InvalidMobile(t *testing.T) {
	svc, _, _, _ := newTestService()

	req := validRegistration()
	req.Mobile = "1234567890" // must start with 6-9
	_, _, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRegister_UnknownState(t *testing.T) {
	svc, _, _, _ := newTestService()

	req := validRegistration()
	req.State = "Atlantis"
	_, _, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRegister_DuplicateVoterID(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.Email = "other@example.com"
	req.Mobile = "9123456780"
	_, _, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegister_DuplicateMobile(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	req := validRegistration()
	req.VoterID = "XYZ7654321"
	req.Email = "other@example.com"
	req.Mobile = "+91 98765 43210" // same number, different formatting
	_, _, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestVerifyMobile_MarksVerified(t *testing.T) {
	svc, store, _, _ := newTestService()

	v, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	require.NoError(t, svc.VerifyMobile(context.Background(), "9876543210", "123456"))

	stored, err := store.Get(context.Background(), v.VoterID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
}

func TestVerifyMobile_WrongCode(t *testing.T) {
	svc, store, _, _ := newTestService()

	v, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.VerifyMobile(context.Background(), "9876543210", "654321"), domain.ErrUnauthorized)

	stored, err := store.Get(context.Background(), v.VoterID)
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
}

func TestLogin_VoterIDPassword(t *testing.T) {
	svc, _, _, sessions := newTestService()

	v, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), domain.LoginRequest{
		LoginType: "voterID",
		VoterID:   "ABC1234567",
		Password:  "Str0ng@Pass",
	})
	require.NoError(t, err)
	assert.Equal(t, v.VoterID, result.Voter.VoterID)
	assert.Equal(t, "token-"+v.VoterID, result.Token)
	assert.Equal(t, []string{v.VoterID}, sessions.created)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), domain.LoginRequest{
		LoginType: "voterID",
		VoterID:   "ABC1234567",
		Password:  "wrong-password",
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_UnknownVoterID_SameErrorAsWrongPassword(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, errUnknown := svc.Login(context.Background(), domain.LoginRequest{
		LoginType: "voterID", VoterID: "ZZZ9999999", Password: "Str0ng@Pass",
	})
	_, errWrongPw := svc.Login(context.Background(), domain.LoginRequest{
		LoginType: "voterID", VoterID: "ABC1234567", Password: "nope-nope-1",
	})
	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	// Identical messages: the response must not reveal which part failed.
	assert.Equal(t, errWrongPw.Error(), errUnknown.Error())
}

func TestLogin_EmailPassword(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), domain.LoginRequest{
		LoginType: "email",
		Email:     "Asha@Example.com", // case-insensitive
		Password:  "Str0ng@Pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestLogin_MobileOTP(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), domain.LoginRequest{
		LoginType: "mobile",
		Mobile:    "9876543210",
		OTP:       "123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestLogin_MobileWrongOTP(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, _, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), domain.LoginRequest{
		LoginType: "mobile",
		Mobile:    "9876543210",
		OTP:       "000000",
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_InvalidType(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Login(context.Background(), domain.LoginRequest{LoginType: "aadhaar"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRequestOTP_LoginRequiresAccount(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.RequestOTP(context.Background(), "9000000001", domain.OTPPurposeLogin)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
