// Package ledger is the append-only ballot ledger: it accepts authenticated
// cast-vote requests, enforces exactly-once voting per voter, and maintains
// the tamper-evident hash chain of vote records.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/securevoting/backend/internal/domain"
	"github.com/securevoting/backend/internal/infrastructure/sns"
	"github.com/securevoting/backend/internal/pkg/id"
)

var (
	ErrAlreadyVoted     = fmt.Errorf("vote already cast for this voter: %w", domain.ErrConflict)
	ErrNotVerified      = fmt.Errorf("voter identity is not verified: %w", domain.ErrForbidden)
	ErrUnknownCandidate = fmt.Errorf("unknown candidate: %w", domain.ErrBadRequest)

	// errLedgerUnavailable tells the caller the outcome is uncertain: the
	// append and the voted-flag flip are atomic, but the acknowledgement may
	// have been lost. Clients must check the receipt or voting status before
	// resubmitting.
	errLedgerUnavailable = fmt.Errorf("ledger unavailable, check vote status before retrying: %w", domain.ErrUnavailable)
)

// VoteStore persists the chain. Append must write the record and flip the
// voter's has_voted flag indivisibly, failing with domain.ErrConflict when
// the voter has already voted.
type VoteStore interface {
	Append(ctx context.Context, rec *domain.VoteRecord, voterID string) error
	GetByReceipt(ctx context.Context, receiptID string) (*domain.VoteRecord, error)
	GetByVoter(ctx context.Context, voterID string) (*domain.VoteRecord, error)
	Head(ctx context.Context) (*domain.VoteRecord, error)
	List(ctx context.Context) ([]domain.VoteRecord, error)
}

// VoterStore is the read side of the identity store the ledger needs.
type VoterStore interface {
	Get(ctx context.Context, voterID string) (*domain.Voter, error)
}

// SessionValidator is the authentication gate in front of every cast.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Session, error)
}

// Archiver stores verified chain snapshots for offline audit.
type Archiver interface {
	PutSnapshot(ctx context.Context, body []byte) (string, error)
}

type Service interface {
	// CastVote runs the full gate: session, verification status, prior-vote
	// check, candidate roster, then the atomic append+flip.
	CastVote(ctx context.Context, token string, candidateID int) (*domain.Receipt, error)
	// Status reports whether the caller has voted and, if so, their receipt.
	// This is the check clients run after an uncertain cast outcome.
	Status(ctx context.Context, token string) (*domain.Receipt, bool, error)
	// VerifyReceipt re-derives the chain hashes up to the receipt's record
	// and confirms them against the stored values.
	VerifyReceipt(ctx context.Context, receiptID string) (*domain.VoteRecord, error)
	// Tally counts votes per candidate over the verified prefix of the
	// chain. A broken link yields the prefix tally plus ErrIntegrity.
	Tally(ctx context.Context) (map[int]int, error)
	// ExportAudit uploads a verified snapshot of the chain and returns the
	// object key.
	ExportAudit(ctx context.Context) (string, error)
	Candidates() []domain.Candidate
}

type service struct {
	votes    VoteStore
	voters   VoterStore
	sessions SessionValidator
	archive  Archiver
	sms      sns.SMSSender
	roster   map[int]domain.Candidate
	ordered  []domain.Candidate
	now      func() time.Time
	sleep    func(time.Duration)

	// mu serializes the head read + append. The storage transaction already
	// guarantees per-voter exactly-once; the mutex keeps the chain linear,
	// since every append links to the previous head. It is never held
	// across notifier calls.
	mu sync.Mutex
}

type ServiceDeps struct {
	Votes      VoteStore
	Voters     VoterStore
	Sessions   SessionValidator
	Archive    Archiver
	SMSSender  sns.SMSSender
	Candidates []domain.Candidate
	Now        func() time.Time     // defaults to time.Now
	Sleep      func(time.Duration)  // defaults to time.Sleep
}

const (
	appendAttempts = 3
	backoffBase    = 100 * time.Millisecond
)

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	roster := make(map[int]domain.Candidate, len(deps.Candidates))
	for _, c := range deps.Candidates {
		roster[c.ID] = c
	}
	return &service{
		votes:    deps.Votes,
		voters:   deps.Voters,
		sessions: deps.Sessions,
		archive:  deps.Archive,
		sms:      deps.SMSSender,
		roster:   roster,
		ordered:  deps.Candidates,
		now:      now,
		sleep:    sleep,
	}
}

func (s *service) Candidates() []domain.Candidate { return s.ordered }

func (s *service) CastVote(ctx context.Context, token string, candidateID int) (*domain.Receipt, error) {
	sess, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	v, err := s.voters.Get(ctx, sess.VoterID)
	if err != nil {
		return nil, fmt.Errorf("voter not found: %w", domain.ErrUnauthorized)
	}
	if !v.IsVerified {
		return nil, ErrNotVerified
	}
	if v.HasVoted {
		return nil, ErrAlreadyVoted
	}
	if _, ok := s.roster[candidateID]; !ok {
		return nil, ErrUnknownCandidate
	}

	rec, err := s.append(ctx, v.VoterID, candidateID)
	if err != nil {
		return nil, err
	}

	if s.sms != nil {
		msg := fmt.Sprintf("Your vote has been recorded. Receipt: %s", rec.ReceiptID)
		if err := s.sms.SendSMS(ctx, v.Mobile, msg); err != nil {
			slog.Warn("failed to send vote confirmation", "receipt_id", rec.ReceiptID, "err", err)
		}
	}
	return &domain.Receipt{ReceiptID: rec.ReceiptID, RecordHash: rec.Hash, Timestamp: rec.Timestamp}, nil
}

// append builds the next record from the current head and writes it under
// the chain lock, retrying transient storage faults with backoff.
func (s *service) append(ctx context.Context, voterID string, candidateID int) (*domain.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevHash := domain.GenesisHash
	var seq int64
	if head, err := s.votes.Head(ctx); err == nil {
		prevHash = head.Hash
		seq = head.Seq + 1
	} else if !isNotFound(err) {
		return nil, errLedgerUnavailable
	}

	rec := &domain.VoteRecord{
		ReceiptID:   id.New(),
		Seq:         seq,
		VoterID:     voterID,
		CandidateID: candidateID,
		Timestamp:   s.now().UTC(),
		PrevHash:    prevHash,
	}
	rec.Hash = rec.ComputeHash()

	backoff := backoffBase
	for attempt := 1; ; attempt++ {
		err := s.votes.Append(ctx, rec, voterID)
		if err == nil {
			return rec, nil
		}
		// The duplicate-vote condition lost the race to another request for
		// the same voter. Terminal, and reported exactly like the synchronous
		// has-voted check.
		if isConflict(err) {
			return nil, ErrAlreadyVoted
		}
		if !isUnavailable(err) || attempt == appendAttempts {
			slog.Error("ledger append failed", "voter_id", voterID, "attempts", attempt, "err", err)
			return nil, errLedgerUnavailable
		}
		select {
		case <-ctx.Done():
			return nil, errLedgerUnavailable
		default:
		}
		s.sleep(backoff)
		backoff *= 2
	}
}

func (s *service) Status(ctx context.Context, token string) (*domain.Receipt, bool, error) {
	sess, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, false, err
	}
	v, err := s.voters.Get(ctx, sess.VoterID)
	if err != nil {
		return nil, false, fmt.Errorf("voter not found: %w", domain.ErrUnauthorized)
	}
	if !v.HasVoted {
		return nil, false, nil
	}
	rec, err := s.votes.GetByVoter(ctx, v.VoterID)
	if err != nil {
		return nil, true, err
	}
	return &domain.Receipt{ReceiptID: rec.ReceiptID, RecordHash: rec.Hash, Timestamp: rec.Timestamp}, true, nil
}

func (s *service) VerifyReceipt(ctx context.Context, receiptID string) (*domain.VoteRecord, error) {
	rec, err := s.votes.GetByReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	chain, err := s.votes.List(ctx)
	if err != nil {
		return nil, err
	}
	prev := domain.GenesisHash
	for _, r := range chain {
		if !r.Verify(prev) {
			slog.Error("ledger integrity violation", "seq", r.Seq, "receipt_id", r.ReceiptID)
			return nil, fmt.Errorf("record %d fails verification: %w", r.Seq, domain.ErrIntegrity)
		}
		if r.ReceiptID == rec.ReceiptID {
			return &r, nil
		}
		prev = r.Hash
	}
	return nil, fmt.Errorf("vote record not found in chain: %w", domain.ErrNotFound)
}

func (s *service) Tally(ctx context.Context) (map[int]int, error) {
	chain, err := s.votes.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int)
	prev := domain.GenesisHash
	for _, r := range chain {
		if !r.Verify(prev) {
			// A broken link invalidates the record and all its descendants.
			// Count the verified prefix only and surface the fault.
			slog.Error("ledger integrity violation during tally", "seq", r.Seq, "receipt_id", r.ReceiptID)
			return counts, fmt.Errorf("chain breaks at record %d: %w", r.Seq, domain.ErrIntegrity)
		}
		counts[r.CandidateID]++
		prev = r.Hash
	}
	return counts, nil
}

func (s *service) ExportAudit(ctx context.Context) (string, error) {
	chain, err := s.votes.List(ctx)
	if err != nil {
		return "", err
	}
	prev := domain.GenesisHash
	for _, r := range chain {
		if !r.Verify(prev) {
			slog.Error("ledger integrity violation during export", "seq", r.Seq, "receipt_id", r.ReceiptID)
			return "", fmt.Errorf("chain breaks at record %d: %w", r.Seq, domain.ErrIntegrity)
		}
		prev = r.Hash
	}
	snapshot := struct {
		ExportedAt time.Time           `json:"exported_at"`
		HeadHash   string              `json:"head_hash"`
		Records    []domain.VoteRecord `json:"records"`
	}{ExportedAt: s.now().UTC(), HeadHash: prev, Records: chain}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return s.archive.PutSnapshot(ctx, body)
}

func isNotFound(err error) bool    { return errors.Is(err, domain.ErrNotFound) }
func isConflict(err error) bool    { return errors.Is(err, domain.ErrConflict) }
func isUnavailable(err error) bool { return errors.Is(err, domain.ErrUnavailable) }
