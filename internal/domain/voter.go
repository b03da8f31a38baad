package domain

import "time"

// Voter is the identity record for a registered voter. The raw voter ID is
// never stored; only its SHA-256 hash is kept for lookup and uniqueness.
type Voter struct {
	VoterID      string    `json:"id" dynamodbav:"voter_id"`
	VoterIDHash  string    `json:"-" dynamodbav:"voter_id_hash"`
	Mobile       string    `json:"mobile" dynamodbav:"mobile"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	State        string    `json:"state" dynamodbav:"state"`
	Constituency string    `json:"constituency" dynamodbav:"constituency"`
	IsVerified   bool      `json:"is_verified" dynamodbav:"is_verified"`
	HasVoted     bool      `json:"has_voted" dynamodbav:"has_voted"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	VoterID      string `json:"voterID" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	Mobile       string `json:"mobile" validate:"required"`
	State        string `json:"state" validate:"required"`
	Constituency string `json:"constituency" validate:"required,min=2"`
}

// LoginRequest supports three login types: voterID+password, email+password,
// and mobile+otp.
type LoginRequest struct {
	LoginType string `json:"loginType" validate:"required,oneof=voterID email mobile"`
	VoterID   string `json:"voterID"`
	Email     string `json:"email"`
	Mobile    string `json:"mobile"`
	Password  string `json:"password"`
	OTP       string `json:"otp"`
}
