package services

import (
	"context"
	"strings"
	"testing"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories/memory"
)

func TestSubmissionKeyIgnoresSurroundingWhitespace(t *testing.T) {
	a := SubmissionKey(Submission{CreatedBy: "u1", CustomerPhone: "0500", Details: "lamp"})
	b := SubmissionKey(Submission{CreatedBy: " u1", CustomerPhone: "0500 ", Details: "\tlamp\n"})
	if a != b {
		t.Fatalf("expected equal keys, got %s and %s", a, b)
	}
	c := SubmissionKey(Submission{CreatedBy: "u2", CustomerPhone: "0500", Details: "lamp"})
	if a == c {
		t.Fatalf("expected creator to be part of the key")
	}
	if !strings.HasPrefix(a, submissionKeyPrefix) {
		t.Fatalf("expected key prefix, got %s", a)
	}
}

func TestSubmissionClaimRoundTrip(t *testing.T) {
	store := newStubClaimStore()
	dedup, err := NewSubmissionDeduplicator(SubmissionDeduplicatorDeps{Orders: memory.NewRegistry().Orders(), Claims: store})
	if err != nil {
		t.Fatalf("new deduplicator: %v", err)
	}
	ctx := context.Background()
	sub := Submission{CreatedBy: "u1", CustomerPhone: "0500", Details: "lamp"}

	first, err := dedup.Claim(ctx, sub)
	if err != nil || !first.Acquired {
		t.Fatalf("expected first claim acquired, got %+v %v", first, err)
	}
	second, err := dedup.Claim(ctx, sub)
	if err != nil || second.Acquired {
		t.Fatalf("expected second claim lost, got %+v %v", second, err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release of lost claim: %v", err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	third, err := dedup.Claim(ctx, sub)
	if err != nil || !third.Acquired {
		t.Fatalf("expected claim after release, got %+v %v", third, err)
	}
}

func TestFindDuplicateWindowIsInclusive(t *testing.T) {
	registry := memory.NewRegistry()
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	registry.SeedOrders(domain.Order{ID: "o1", CreatedBy: "u1", CustomerPhone: "0500", Details: "lamp", CreatedAt: created})

	clock := newTestClock(created.Add(30 * time.Second))
	dedup, err := NewSubmissionDeduplicator(SubmissionDeduplicatorDeps{Orders: registry.Orders(), Clock: clock.Now})
	if err != nil {
		t.Fatalf("new deduplicator: %v", err)
	}
	sub := Submission{CreatedBy: "u1", CustomerPhone: "0500", Details: "lamp"}

	order, found, err := dedup.FindDuplicate(context.Background(), sub)
	if err != nil || !found || order.ID != "o1" {
		t.Fatalf("expected duplicate at 30s, got %v %v %v", order.ID, found, err)
	}

	clock.Advance(time.Second)
	if _, found, err := dedup.FindDuplicate(context.Background(), sub); err != nil || found {
		t.Fatalf("expected no duplicate at 31s, got %v %v", found, err)
	}

	other := sub
	other.Details = "lamp, blue"
	clock = newTestClock(created)
	dedup, _ = NewSubmissionDeduplicator(SubmissionDeduplicatorDeps{Orders: registry.Orders(), Clock: clock.Now})
	if _, found, _ := dedup.FindDuplicate(context.Background(), other); found {
		t.Fatalf("different details must not match")
	}
}
