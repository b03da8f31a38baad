package domain

import "time"

// OTP purposes. A login code cannot be consumed for verification or vice versa.
const (
	OTPPurposeLogin        = "login"
	OTPPurposeVerification = "verification"
)

// OneTimeCode is a short-lived single-use authentication code.
// PK: mobile, SK: purpose — at most one active code per (mobile, purpose).
// A code is valid iff !Used && now < ExpiresAt && Attempts < MaxOTPAttempts
// && the code matches.
type OneTimeCode struct {
	ID        string    `json:"id" dynamodbav:"otp_id"`
	Mobile    string    `json:"mobile" dynamodbav:"mobile"`
	Purpose   string    `json:"purpose" dynamodbav:"purpose"`
	Code      string    `json:"-" dynamodbav:"code"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	Used      bool      `json:"used" dynamodbav:"used"`
	Attempts  int       `json:"attempts" dynamodbav:"attempts"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at,unixtime"`
}

// MaxOTPAttempts is the number of failed verifications after which a code is
// permanently dead, even if later guessed correctly.
const MaxOTPAttempts = 3
