package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/securevoting/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVoter(id, hash, mobile, email string) *domain.Voter {
	return &domain.Voter{
		VoterID:     id,
		VoterIDHash: hash,
		Mobile:      mobile,
		Email:       email,
		State:       "Maharashtra",
	}
}

func TestVoterStorePut_RejectsDuplicateIdentifiers(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		dup  *domain.Voter
	}{
		{"voter ID hash", testVoter("v2", "hash-a", "+919000000002", "b@example.com")},
		{"mobile", testVoter("v2", "hash-b", "+919000000001", "b@example.com")},
		{"email", testVoter("v2", "hash-b", "+919000000002", "a@example.com")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewVoterStore()
			require.NoError(t, s.Put(ctx, testVoter("v1", "hash-a", "+919000000001", "a@example.com")))
			assert.ErrorIs(t, s.Put(ctx, tt.dup), domain.ErrConflict)
		})
	}
}

func TestVoterStorePut_ConcurrentSameMobile_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewVoterStore()

	const workers = 16
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := testVoter(
				"v"+string(rune('a'+i)),
				"hash-"+string(rune('a'+i)),
				"+919000000001",
				string(rune('a'+i))+"@example.com",
			)
			errs[i] = s.Put(ctx, v)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domain.ErrConflict)
		}
	}
	assert.Equal(t, 1, wins, "exactly one registration may claim a mobile number")
}
