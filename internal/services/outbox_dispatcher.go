package services

import (
	"context"
	"errors"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/codfleet/api/internal/repositories"
)

const (
	defaultOutboxBatchSize   = 50
	defaultOutboxMaxAttempts = 8
	defaultOutboxBaseBackoff = 5 * time.Second
	defaultOutboxMaxBackoff  = 10 * time.Minute

	outboxMetricNamespace = "github.com/codfleet/api/outbox"
	orderEventTypePrefix  = "order."
)

// OutboxDispatcherDeps enumerates collaborators required to construct the dispatcher.
type OutboxDispatcherDeps struct {
	Outbox      repositories.OutboxRepository
	Publisher   OrderEventPublisher
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// Backoff overrides the delay before attempt number attempts+1. Defaults to jittered
	// exponential backoff.
	Backoff func(attempts int) time.Duration
	Meter   metric.Meter
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type outboxDispatcher struct {
	outbox      repositories.OutboxRepository
	publisher   OrderEventPublisher
	batchSize   int
	maxAttempts int
	backoff     func(int) time.Duration
	outcomes    metric.Int64Counter
	clock       func() time.Time
	logger      func(context.Context, string, map[string]any)
}

// NewOutboxDispatcher wires dependencies into an OutboxDispatcher implementation.
func NewOutboxDispatcher(deps OutboxDispatcherDeps) (OutboxDispatcher, error) {
	if deps.Outbox == nil {
		return nil, errors.New("outbox dispatcher: outbox repository is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("outbox dispatcher: publisher is required")
	}

	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultOutboxBatchSize
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = defaultOutboxMaxAttempts
	}
	backoff := deps.Backoff
	if backoff == nil {
		backoff = exponentialBackoff(deps.BaseBackoff, deps.MaxBackoff)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(outboxMetricNamespace)
	}
	outcomes, err := meter.Int64Counter(
		"outbox.dispatch.events",
		metric.WithDescription("Outbox events processed by outcome"),
	)
	if err != nil {
		logger(context.Background(), "outbox.metric_registration_failed", map[string]any{"error": err.Error()})
		outcomes = nil
	}

	return &outboxDispatcher{
		outbox:      deps.Outbox,
		publisher:   deps.Publisher,
		batchSize:   batch,
		maxAttempts: attempts,
		backoff:     backoff,
		outcomes:    outcomes,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Dispatch publishes due events once each. Publish failures are recorded on the event and never
// returned; only listing failures abort the pass.
func (d *outboxDispatcher) Dispatch(ctx context.Context, limit int) (DispatchResult, error) {
	if limit <= 0 || limit > d.batchSize {
		limit = d.batchSize
	}

	now := d.clock()
	events, err := d.outbox.ListDue(ctx, now, limit)
	if err != nil {
		return DispatchResult{}, mapRepositoryError(nil, err)
	}

	var result DispatchResult
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pubErr := d.publisher.PublishOrderEvent(ctx, toOrderEvent(event))
		if pubErr == nil {
			if err := d.outbox.MarkPublished(ctx, event.ID, d.clock()); err != nil {
				// Stays pending and is re-published next pass. Consumers dedupe on event ID.
				d.logger(ctx, "outbox.mark_published_failed", map[string]any{
					"eventId": event.ID,
					"error":   err.Error(),
				})
				continue
			}
			result.Published++
			d.record(ctx, "published", event.Action)
			continue
		}

		attempts := event.Attempts + 1
		update := repositories.OutboxRetryUpdate{
			Attempts:  attempts,
			LastError: pubErr.Error(),
		}
		if attempts >= d.maxAttempts {
			update.Failed = true
			update.NextAttemptAt = now
		} else {
			update.NextAttemptAt = now.Add(d.backoff(attempts))
		}
		if err := d.outbox.MarkRetry(ctx, event.ID, update); err != nil {
			d.logger(ctx, "outbox.mark_retry_failed", map[string]any{
				"eventId": event.ID,
				"error":   err.Error(),
			})
			continue
		}

		fields := map[string]any{
			"eventId":  event.ID,
			"orderId":  event.OrderID,
			"action":   event.Action,
			"attempts": attempts,
			"error":    pubErr.Error(),
		}
		if update.Failed {
			result.Failed++
			d.record(ctx, "failed", event.Action)
			d.logger(ctx, "outbox.event_parked", fields)
		} else {
			result.Retried++
			d.record(ctx, "retried", event.Action)
			fields["nextAttemptAt"] = update.NextAttemptAt
			d.logger(ctx, "outbox.publish_failed", fields)
		}
	}
	return result, nil
}

func (d *outboxDispatcher) record(ctx context.Context, outcome, action string) {
	if d.outcomes == nil {
		return
	}
	d.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("action", action),
	))
}

func toOrderEvent(event OutboxEvent) OrderEvent {
	return OrderEvent{
		ID:            event.ID,
		Type:          orderEventTypePrefix + event.Action,
		OrderID:       event.OrderID,
		InvoiceNumber: event.Snapshot.InvoiceNumber,
		Status:        event.NewStatus,
		ActorID:       event.ActorID,
		Recipients:    append([]string(nil), event.Recipients...),
		Snapshot:      event.Snapshot,
		OccurredAt:    event.CreatedAt,
	}
}

// exponentialBackoff replays a fresh gax.Backoff so the delay for a given attempt grows with it.
func exponentialBackoff(base, ceiling time.Duration) func(int) time.Duration {
	if base <= 0 {
		base = defaultOutboxBaseBackoff
	}
	if ceiling <= 0 {
		ceiling = defaultOutboxMaxBackoff
	}
	return func(attempts int) time.Duration {
		bo := gax.Backoff{Initial: base, Max: ceiling, Multiplier: 2}
		var pause time.Duration
		for range max(attempts, 1) {
			pause = bo.Pause()
		}
		return pause
	}
}
