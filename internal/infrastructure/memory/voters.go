// Package memory provides in-process implementations of the storage
// interfaces. It backs tests and local runs where a real DynamoDB (or
// LocalStack) is not available. All stores are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/securevoting/backend/internal/domain"
)

// VoterStore keeps voter records in maps with the same uniqueness indexes
// the DynamoDB table maintains via GSIs.
type VoterStore struct {
	mu       sync.RWMutex
	voters   map[string]domain.Voter
	byHash   map[string]string
	byMobile map[string]string
	byEmail  map[string]string
}

func NewVoterStore() *VoterStore {
	return &VoterStore{
		voters:   make(map[string]domain.Voter),
		byHash:   make(map[string]string),
		byMobile: make(map[string]string),
		byEmail:  make(map[string]string),
	}
}

// Put stores a new voter. Uniqueness of the record key and of every
// secondary identifier is checked under the write lock, so concurrent
// registrations sharing a mobile, email, or voter ID hash cannot both land.
func (s *VoterStore) Put(_ context.Context, v *domain.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.voters[v.VoterID]; exists {
		return fmt.Errorf("voter exists: %w", domain.ErrConflict)
	}
	if _, exists := s.byHash[v.VoterIDHash]; exists {
		return fmt.Errorf("voter ID already registered: %w", domain.ErrConflict)
	}
	if _, exists := s.byMobile[v.Mobile]; exists {
		return fmt.Errorf("mobile already registered: %w", domain.ErrConflict)
	}
	if _, exists := s.byEmail[v.Email]; exists {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	s.voters[v.VoterID] = *v
	s.byHash[v.VoterIDHash] = v.VoterID
	s.byMobile[v.Mobile] = v.VoterID
	s.byEmail[v.Email] = v.VoterID
	return nil
}

func (s *VoterStore) Get(_ context.Context, voterID string) (*domain.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.voters[voterID]
	if !ok {
		return nil, fmt.Errorf("voter not found: %w", domain.ErrNotFound)
	}
	return &v, nil
}

func (s *VoterStore) GetByVoterIDHash(ctx context.Context, hash string) (*domain.Voter, error) {
	s.mu.RLock()
	id, ok := s.byHash[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("voter not found: %w", domain.ErrNotFound)
	}
	return s.Get(ctx, id)
}

func (s *VoterStore) GetByMobile(ctx context.Context, mobile string) (*domain.Voter, error) {
	s.mu.RLock()
	id, ok := s.byMobile[mobile]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("voter not found: %w", domain.ErrNotFound)
	}
	return s.Get(ctx, id)
}

func (s *VoterStore) GetByEmail(ctx context.Context, email string) (*domain.Voter, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("voter not found: %w", domain.ErrNotFound)
	}
	return s.Get(ctx, id)
}

func (s *VoterStore) Update(_ context.Context, voterID string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok {
		return fmt.Errorf("voter not found: %w", domain.ErrNotFound)
	}
	for k, val := range updates {
		switch k {
		case "is_verified":
			v.IsVerified = val.(bool)
		case "has_voted":
			v.HasVoted = val.(bool)
		case "password_hash":
			v.PasswordHash = val.(string)
		}
	}
	v.UpdatedAt = time.Now().UTC()
	s.voters[voterID] = v
	return nil
}

// markVoted is used by the vote store's transactional append. Caller holds
// no voter lock; this takes it.
func (s *VoterStore) markVoted(voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok {
		return fmt.Errorf("voter not found: %w", domain.ErrNotFound)
	}
	if v.HasVoted {
		return fmt.Errorf("already voted: %w", domain.ErrConflict)
	}
	v.HasVoted = true
	v.UpdatedAt = time.Now().UTC()
	s.voters[voterID] = v
	return nil
}
