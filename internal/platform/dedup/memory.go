package dedup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryClaimStore keeps submission claims in process memory. Claims expire after their TTL so a
// crashed request cannot hold a fingerprint forever.
type MemoryClaimStore struct {
	mu     sync.Mutex
	claims map[string]memoryClaim
	clock  func() time.Time
	tokens func() string
}

type memoryClaim struct {
	token   string
	expires time.Time
}

// MemoryOption customises a MemoryClaimStore.
type MemoryOption func(*MemoryClaimStore)

// WithClock overrides the clock used to evaluate claim expiry.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryClaimStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTokenGenerator overrides the holder token source.
func WithTokenGenerator(gen func() string) MemoryOption {
	return func(s *MemoryClaimStore) {
		if gen != nil {
			s.tokens = gen
		}
	}
}

func NewMemoryClaimStore(opts ...MemoryOption) *MemoryClaimStore {
	store := &MemoryClaimStore{
		claims: make(map[string]memoryClaim),
		clock:  time.Now,
		tokens: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *MemoryClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, errors.New("dedup: claim key is required")
	}
	if ttl <= 0 {
		return "", false, errors.New("dedup: claim ttl must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if existing, ok := s.claims[key]; ok && now.Before(existing.expires) {
		return "", false, nil
	}
	token := s.tokens()
	s.claims[key] = memoryClaim{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (s *MemoryClaimStore) Release(ctx context.Context, key, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.claims[key]; ok && existing.token == token {
		delete(s.claims, key)
	}
	return nil
}

// Sweep drops expired claims and reports how many were removed.
func (s *MemoryClaimStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	removed := 0
	for key, claim := range s.claims {
		if !now.Before(claim.expires) {
			delete(s.claims, key)
			removed++
		}
	}
	return removed
}
