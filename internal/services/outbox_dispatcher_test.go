package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/codfleet/api/internal/domain"
	"github.com/codfleet/api/internal/repositories/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	fail   map[string]error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[event.ID]; err != nil {
		return err
	}
	p.events = append(p.events, event)
	return nil
}

func seedOutbox(t *testing.T, registry *memory.Registry, events ...domain.OutboxEvent) {
	t.Helper()
	for _, event := range events {
		if err := registry.Outbox().Append(context.Background(), event); err != nil {
			t.Fatalf("append %s: %v", event.ID, err)
		}
	}
}

func TestOutboxDispatchPublishesAndRetries(t *testing.T) {
	registry := memory.NewRegistry()
	clock := newTestClock(time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC))
	now := clock.Now()
	seedOutbox(t, registry,
		domain.OutboxEvent{ID: "evt_1", OrderID: "o1", Action: OrderActionShipped, NewStatus: "shipped", Snapshot: Order{ID: "o1", InvoiceNumber: "INV-2025-000001"}, Recipients: []string{"owner-1"}, State: domain.OutboxPending, CreatedAt: now},
		domain.OutboxEvent{ID: "evt_2", OrderID: "o2", Action: OrderActionDelivered, State: domain.OutboxPending, CreatedAt: now.Add(time.Second)},
		domain.OutboxEvent{ID: "evt_3", OrderID: "o3", Action: OrderActionCreated, State: domain.OutboxPending, NextAttemptAt: now.Add(time.Hour), CreatedAt: now},
	)

	publisher := &recordingPublisher{fail: map[string]error{"evt_2": errors.New("broker unavailable")}}
	logs := &captureLogger{}
	dispatcher, err := NewOutboxDispatcher(OutboxDispatcherDeps{
		Outbox:    registry.Outbox(),
		Publisher: publisher,
		Backoff:   func(attempts int) time.Duration { return time.Duration(attempts) * time.Minute },
		Clock:     clock.Now,
		Logger:    logs.Log,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result != (DispatchResult{Published: 1, Retried: 1}) {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	published := publisher.events[0]
	if published.Type != "order.shipped" || published.InvoiceNumber != "INV-2025-000001" || published.Status != "shipped" {
		t.Fatalf("unexpected published event %+v", published)
	}

	events := map[string]domain.OutboxEvent{}
	for _, event := range registry.OutboxEvents() {
		events[event.ID] = event
	}
	if events["evt_1"].State != domain.OutboxPublished || events["evt_1"].PublishedAt == nil {
		t.Fatalf("expected evt_1 published, got %+v", events["evt_1"])
	}
	retried := events["evt_2"]
	if retried.State != domain.OutboxPending || retried.Attempts != 1 || !retried.NextAttemptAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected evt_2 rescheduled, got %+v", retried)
	}
	if retried.LastError != "broker unavailable" {
		t.Fatalf("expected last error recorded, got %q", retried.LastError)
	}
	if events["evt_3"].State != domain.OutboxPending || events["evt_3"].Attempts != 0 {
		t.Fatalf("expected evt_3 untouched, got %+v", events["evt_3"])
	}
	if !logs.Has("outbox.publish_failed") {
		t.Fatalf("expected publish failure log")
	}

	// Nothing is due until the backoff elapses.
	result, err = dispatcher.Dispatch(context.Background(), 10)
	if err != nil || result != (DispatchResult{}) {
		t.Fatalf("expected idle pass, got %+v %v", result, err)
	}
}

func TestOutboxDispatchParksAfterMaxAttempts(t *testing.T) {
	registry := memory.NewRegistry()
	clock := newTestClock(time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC))
	seedOutbox(t, registry, domain.OutboxEvent{ID: "evt_1", OrderID: "o1", Action: OrderActionCreated, State: domain.OutboxPending, Attempts: 2, CreatedAt: clock.Now()})

	publisher := &recordingPublisher{fail: map[string]error{"evt_1": errors.New("nope")}}
	logs := &captureLogger{}
	dispatcher, err := NewOutboxDispatcher(OutboxDispatcherDeps{
		Outbox:      registry.Outbox(),
		Publisher:   publisher,
		MaxAttempts: 3,
		Clock:       clock.Now,
		Logger:      logs.Log,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected event parked, got %+v", result)
	}
	event := registry.OutboxEvents()[0]
	if event.State != domain.OutboxFailed || event.Attempts != 3 {
		t.Fatalf("unexpected parked event %+v", event)
	}
	if !logs.Has("outbox.event_parked") {
		t.Fatalf("expected park log")
	}

	clock.Advance(24 * time.Hour)
	if result, _ := dispatcher.Dispatch(context.Background(), 0); result != (DispatchResult{}) {
		t.Fatalf("expected parked event to stay parked, got %+v", result)
	}
}

func TestOutboxDispatchPicksUpLifecycleEvents(t *testing.T) {
	f := newLifecycleFixture(t)
	order := f.createOrder(testOwner.ID)
	if _, err := f.orders.Ship(context.Background(), ShipOrderCommand{OrderID: order.ID, ActorID: testOwner.ID}); err != nil {
		t.Fatalf("ship: %v", err)
	}

	publisher := &recordingPublisher{}
	dispatcher, err := NewOutboxDispatcher(OutboxDispatcherDeps{Outbox: f.registry.Outbox(), Publisher: publisher, Clock: f.clock.Now})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	result, err := dispatcher.Dispatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Published != 2 {
		t.Fatalf("expected created and shipped events, got %+v", result)
	}
	types := map[string]bool{}
	for _, event := range publisher.events {
		types[event.Type] = true
		if event.OrderID != order.ID {
			t.Fatalf("unexpected order id %s", event.OrderID)
		}
	}
	if !types["order.created"] || !types["order.shipped"] {
		t.Fatalf("unexpected event types %v", types)
	}
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	backoff := exponentialBackoff(time.Second, 8*time.Second)
	for attempts := 1; attempts <= 10; attempts++ {
		pause := backoff(attempts)
		if pause < 0 || pause > 8*time.Second {
			t.Fatalf("attempt %d: pause %s outside [0, 8s]", attempts, pause)
		}
	}
}
