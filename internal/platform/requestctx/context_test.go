package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFallbacks(t *testing.T) {
	fallback := zap.NewExample()
	if got := LoggerOr(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback without request logger")
	}
	if Logger(context.Background()) == nil {
		t.Fatal("expected no-op logger without request logger")
	}

	core, _ := observer.New(zap.InfoLevel)
	reqLogger := zap.New(core)
	ctx := WithLogger(context.Background(), reqLogger)
	if got := LoggerOr(ctx, fallback); got != reqLogger {
		t.Fatal("expected request logger to win over fallback")
	}
	if WithLogger(ctx, nil) != ctx {
		t.Fatal("nil logger must not replace the request logger")
	}
}

func TestWithLogFieldsNarrowsRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = WithLogFields(ctx, zap.String("actor_id", "agent-7"))
	Logger(ctx).Info("order_created")

	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["actor_id"] != "agent-7" {
		t.Fatalf("expected actor_id on entry, got %+v", entries)
	}

	bare := context.Background()
	if WithLogFields(bare, zap.String("k", "v")) != bare {
		t.Fatal("expected no-op without request logger")
	}
}

func TestTraceID(t *testing.T) {
	if TraceID(context.Background()) != "" {
		t.Fatal("expected empty trace id")
	}
	ctx := WithTrace(context.Background(), TraceInfo{TraceID: "abc", ProjectID: "codfleet"})
	if TraceID(ctx) != "abc" {
		t.Fatalf("unexpected trace id %q", TraceID(ctx))
	}
}
