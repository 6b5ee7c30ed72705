package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/codfleet/api/internal/domain"
	pfirestore "github.com/codfleet/api/internal/platform/firestore"
	"github.com/codfleet/api/internal/repositories"
)

const outboxCollection = "orderEvents"

// OutboxRepository stores lifecycle events next to the orders they describe so both land in one
// transaction.
type OutboxRepository struct {
	base *pfirestore.BaseRepository[outboxDocument]
}

func NewOutboxRepository(provider *pfirestore.Provider) (*OutboxRepository, error) {
	if provider == nil {
		return nil, errors.New("outbox repository requires firestore provider")
	}
	return &OutboxRepository{base: pfirestore.NewBaseRepository[outboxDocument](provider, outboxCollection)}, nil
}

func (r *OutboxRepository) Append(ctx context.Context, event domain.OutboxEvent) error {
	return r.base.Create(ctx, event.ID, outboxDocument{
		OrderID:       event.OrderID,
		Action:        event.Action,
		NewStatus:     event.NewStatus,
		Snapshot:      newOrderDocument(event.Snapshot),
		Recipients:    event.Recipients,
		ActorID:       event.ActorID,
		State:         string(event.State),
		Attempts:      event.Attempts,
		NextAttemptAt: event.NextAttemptAt.UTC(),
		CreatedAt:     event.CreatedAt.UTC(),
	})
}

// ListDue returns pending events whose next attempt is due, oldest first.
func (r *OutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEvent, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("state", "==", string(domain.OutboxPending)).
			Where("nextAttemptAt", "<=", now.UTC()).
			OrderBy("nextAttemptAt", firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	events := make([]domain.OutboxEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, doc.Data.toDomain(doc.ID))
	}
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string, publishedAt time.Time) error {
	return r.base.Update(ctx, strings.TrimSpace(eventID), []firestore.Update{
		{Path: "state", Value: string(domain.OutboxPublished)},
		{Path: "publishedAt", Value: publishedAt.UTC()},
		{Path: "lastError", Value: firestore.Delete},
	})
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, eventID string, update repositories.OutboxRetryUpdate) error {
	updates := []firestore.Update{
		{Path: "attempts", Value: update.Attempts},
		{Path: "nextAttemptAt", Value: update.NextAttemptAt.UTC()},
		{Path: "lastError", Value: update.LastError},
	}
	if update.Failed {
		updates = append(updates, firestore.Update{Path: "state", Value: string(domain.OutboxFailed)})
	}
	return r.base.Update(ctx, strings.TrimSpace(eventID), updates)
}

type outboxDocument struct {
	OrderID       string        `firestore:"orderId"`
	Action        string        `firestore:"action"`
	NewStatus     string        `firestore:"newStatus"`
	Snapshot      orderDocument `firestore:"snapshot"`
	Recipients    []string      `firestore:"recipients"`
	ActorID       string        `firestore:"actorId"`
	State         string        `firestore:"state"`
	Attempts      int           `firestore:"attempts"`
	NextAttemptAt time.Time     `firestore:"nextAttemptAt"`
	LastError     string        `firestore:"lastError,omitempty"`
	PublishedAt   *time.Time    `firestore:"publishedAt,omitempty"`
	CreatedAt     time.Time     `firestore:"createdAt"`
}

func (d outboxDocument) toDomain(id string) domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:            id,
		OrderID:       d.OrderID,
		Action:        d.Action,
		NewStatus:     d.NewStatus,
		Snapshot:      d.Snapshot.toDomain(d.OrderID),
		Recipients:    d.Recipients,
		ActorID:       d.ActorID,
		State:         domain.OutboxState(d.State),
		Attempts:      d.Attempts,
		NextAttemptAt: d.NextAttemptAt.UTC(),
		LastError:     d.LastError,
		PublishedAt:   utcPtr(d.PublishedAt),
		CreatedAt:     d.CreatedAt.UTC(),
	}
}
