package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash anchors the first record of the chain.
var GenesisHash = func() string {
	h := sha256.Sum256([]byte("genesis"))
	return hex.EncodeToString(h[:])
}()

// VoteRecord is an entry in the append-only ballot ledger. Records form a
// hash chain: each record's hash covers its own fields plus the previous
// record's hash, so retroactive tampering breaks verification for the
// altered record and every descendant.
//
// VoterID is the opaque voter record key, never the raw electoral-roll ID;
// the ledger stores no PII.
type VoteRecord struct {
	ReceiptID   string    `json:"receipt_id" dynamodbav:"receipt_id"`
	Seq         int64     `json:"seq" dynamodbav:"seq"`
	VoterID     string    `json:"voter_id" dynamodbav:"voter_id"`
	CandidateID int       `json:"candidate_id" dynamodbav:"candidate_id"`
	// Stored at full precision: the chain hash covers UnixNano, so any
	// truncation on the storage path would break verification of untampered
	// records.
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
	PrevHash    string    `json:"prev_hash" dynamodbav:"prev_hash"`
	Hash        string    `json:"hash" dynamodbav:"hash"`
}

// ComputeHash derives the chain hash from the record's stored fields and its
// link to the previous record. Verification re-derives this and compares it
// against the stored Hash.
func (r *VoteRecord) ComputeHash() string {
	payload := fmt.Sprintf("%s|%d|%d|%s", r.VoterID, r.CandidateID, r.Timestamp.UnixNano(), r.PrevHash)
	h := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(h[:])
}

// Verify checks that the stored hash matches the re-derived one and that the
// record links to the expected previous hash.
func (r *VoteRecord) Verify(prevHash string) bool {
	return r.PrevHash == prevHash && r.Hash == r.ComputeHash()
}

// Receipt is the proof returned to a voter that their ballot was durably
// recorded. It is verifiable without revealing the candidate choice.
type Receipt struct {
	ReceiptID  string    `json:"receiptId"`
	RecordHash string    `json:"recordHash"`
	Timestamp  time.Time `json:"timestamp"`
}
