package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/codfleet/api/internal/repositories"
)

// DefaultDuplicateWindow is the trailing window in which an identical submission is suppressed.
const DefaultDuplicateWindow = 30 * time.Second

const submissionKeyPrefix = "order-submission:"

// SubmissionDeduplicatorDeps configures the deduplicator. Claims is optional; without it only the
// stored-order lookback applies.
type SubmissionDeduplicatorDeps struct {
	Orders repositories.OrderRepository
	Claims ClaimStore
	Window time.Duration
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type submissionDeduplicator struct {
	orders repositories.OrderRepository
	claims ClaimStore
	window time.Duration
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// SubmissionClaim is held by the request that won the fingerprint. Release is safe to call on a
// claim that was not acquired.
type SubmissionClaim struct {
	Acquired bool

	key   string
	token string
	store ClaimStore
}

// Release drops the claim if this request still holds it.
func (c SubmissionClaim) Release(ctx context.Context) error {
	if !c.Acquired || c.store == nil || c.token == "" {
		return nil
	}
	return c.store.Release(ctx, c.key, c.token)
}

func NewSubmissionDeduplicator(deps SubmissionDeduplicatorDeps) (SubmissionDeduplicator, error) {
	if deps.Orders == nil {
		return nil, errors.New("submission deduplicator: order repository is required")
	}
	window := deps.Window
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &submissionDeduplicator{
		orders: deps.Orders,
		claims: deps.Claims,
		window: window,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// SubmissionKey fingerprints a submission. Inputs are trimmed so whitespace retries collide.
func SubmissionKey(sub Submission) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimSpace(sub.CreatedBy),
		strings.TrimSpace(sub.CustomerPhone),
		strings.TrimSpace(sub.Details),
	}, "|")))
	return submissionKeyPrefix + hex.EncodeToString(sum[:])
}

func (d *submissionDeduplicator) Claim(ctx context.Context, sub Submission) (SubmissionClaim, error) {
	if d.claims == nil {
		return SubmissionClaim{Acquired: true}, nil
	}
	key := SubmissionKey(sub)
	token, ok, err := d.claims.Claim(ctx, key, d.window)
	if err != nil {
		// Claim store outages fall back to the stored-order lookback alone.
		d.logger(ctx, "dedup.claim_failed", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
		return SubmissionClaim{Acquired: true}, nil
	}
	return SubmissionClaim{Acquired: ok, key: key, token: token, store: d.claims}, nil
}

func (d *submissionDeduplicator) FindDuplicate(ctx context.Context, sub Submission) (Order, bool, error) {
	order, err := d.orders.FindRecentDuplicate(ctx, repositories.DuplicateQuery{
		CreatedBy:     strings.TrimSpace(sub.CreatedBy),
		CustomerPhone: strings.TrimSpace(sub.CustomerPhone),
		Details:       strings.TrimSpace(sub.Details),
		Since:         d.clock().Add(-d.window),
	})
	if err != nil {
		if isNotFound(err) {
			return Order{}, false, nil
		}
		return Order{}, false, mapRepositoryError(nil, err)
	}
	return order, true, nil
}
