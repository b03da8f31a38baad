package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/securevoting/backend/internal/domain"
)

// VoteStore keeps the append-only ledger as an ordered slice. The append and
// the voter's has_voted flip happen under a single lock ordering, mirroring
// the DynamoDB transaction: no observer sees one without the other.
type VoteStore struct {
	mu        sync.RWMutex
	chain     []domain.VoteRecord
	byReceipt map[string]int
	byVoter   map[string]int
	voters    *VoterStore
}

func NewVoteStore(voters *VoterStore) *VoteStore {
	return &VoteStore{
		byReceipt: make(map[string]int),
		byVoter:   make(map[string]int),
		voters:    voters,
	}
}

func (s *VoteStore) Append(_ context.Context, rec *domain.VoteRecord, voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byVoter[voterID]; dup {
		return fmt.Errorf("already voted: %w", domain.ErrConflict)
	}
	if err := s.voters.markVoted(voterID); err != nil {
		return err
	}
	idx := len(s.chain)
	s.chain = append(s.chain, *rec)
	s.byReceipt[rec.ReceiptID] = idx
	s.byVoter[rec.VoterID] = idx
	return nil
}

func (s *VoteStore) GetByReceipt(_ context.Context, receiptID string) (*domain.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byReceipt[receiptID]
	if !ok {
		return nil, fmt.Errorf("vote record not found: %w", domain.ErrNotFound)
	}
	rec := s.chain[idx]
	return &rec, nil
}

func (s *VoteStore) GetByVoter(_ context.Context, voterID string) (*domain.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byVoter[voterID]
	if !ok {
		return nil, fmt.Errorf("vote record not found: %w", domain.ErrNotFound)
	}
	rec := s.chain[idx]
	return &rec, nil
}

func (s *VoteStore) Head(_ context.Context) (*domain.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chain) == 0 {
		return nil, fmt.Errorf("chain is empty: %w", domain.ErrNotFound)
	}
	rec := s.chain[len(s.chain)-1]
	return &rec, nil
}

func (s *VoteStore) List(_ context.Context) ([]domain.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.VoteRecord, len(s.chain))
	copy(out, s.chain)
	return out, nil
}

// Tamper overwrites a stored record in place. Only for integrity tests;
// the real ledger has no mutation path.
func (s *VoteStore) Tamper(receiptID string, mutate func(*domain.VoteRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byReceipt[receiptID]
	if !ok {
		return fmt.Errorf("vote record not found: %w", domain.ErrNotFound)
	}
	mutate(&s.chain[idx])
	return nil
}
