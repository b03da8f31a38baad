package domain

import "time"

// Session is the server-side record backing a signed bearer token. Token
// validation requires both a valid signature and an existing session record,
// so revocation takes effect immediately even while the signature window is
// still open. The raw token is never persisted.
type Session struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	VoterID   string    `json:"voter_id" dynamodbav:"voter_id"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}
