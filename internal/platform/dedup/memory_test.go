package dedup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryClaimStoreExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryClaimStore()

	token, ok, err := store.Claim(ctx, "k", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("expected first claim, got %q %v %v", token, ok, err)
	}
	if _, ok, err := store.Claim(ctx, "k", time.Minute); err != nil || ok {
		t.Fatalf("expected second claim to lose, got %v %v", ok, err)
	}

	if err := store.Release(ctx, "k", "someone-else"); err != nil {
		t.Fatalf("release with foreign token: %v", err)
	}
	if _, ok, _ := store.Claim(ctx, "k", time.Minute); ok {
		t.Fatalf("foreign token must not release the claim")
	}

	if err := store.Release(ctx, "k", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := store.Claim(ctx, "k", time.Minute); !ok {
		t.Fatalf("expected claim after release")
	}
}

func TestMemoryClaimStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryClaimStore(WithClock(func() time.Time { return now }))

	if _, ok, _ := store.Claim(ctx, "k", 10*time.Second); !ok {
		t.Fatalf("expected claim")
	}
	now = now.Add(10 * time.Second)
	if _, ok, _ := store.Claim(ctx, "k", 10*time.Second); !ok {
		t.Fatalf("expected expired claim to be reclaimable")
	}
	now = now.Add(time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected sweep to remove 1, got %d", removed)
	}
}

func TestMemoryClaimStoreRejectsBadInput(t *testing.T) {
	store := NewMemoryClaimStore()
	if _, _, err := store.Claim(context.Background(), " ", time.Second); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, _, err := store.Claim(context.Background(), "k", 0); err == nil {
		t.Fatalf("expected ttl error")
	}
}

func TestMemoryClaimStoreSingleWinnerUnderContention(t *testing.T) {
	ctx := context.Background()
	var seq int
	var seqMu sync.Mutex
	store := NewMemoryClaimStore(WithTokenGenerator(func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("t%d", seq)
	}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := store.Claim(ctx, "hot", time.Minute); err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}
