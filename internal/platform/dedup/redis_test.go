package dedup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	values  map[string]string
	ttls    map[string]time.Duration
	setErr  error
	scripts int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) compareAndDelete(keys []string, args []interface{}) *redis.Cmd {
	f.scripts++
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script arity"))
	}
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args)
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func TestRedisClaimStoreClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	store, err := NewRedisClaimStore(client)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	token, ok, err := store.Claim(ctx, "orders:submission:abc", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected claim, got %v %v", ok, err)
	}
	if client.ttls["orders:submission:abc"] != 30*time.Second {
		t.Fatalf("expected ttl forwarded, got %s", client.ttls["orders:submission:abc"])
	}
	if _, ok, _ := store.Claim(ctx, "orders:submission:abc", 30*time.Second); ok {
		t.Fatalf("expected held key to refuse second claim")
	}

	if err := store.Release(ctx, "orders:submission:abc", "stale"); err != nil {
		t.Fatalf("release stale: %v", err)
	}
	if _, held := client.values["orders:submission:abc"]; !held {
		t.Fatalf("stale token must not delete the claim")
	}
	if err := store.Release(ctx, "orders:submission:abc", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, held := client.values["orders:submission:abc"]; held {
		t.Fatalf("expected claim deleted")
	}
	if client.scripts != 2 {
		t.Fatalf("expected release to run through the script, got %d calls", client.scripts)
	}
}

func TestRedisClaimStoreWrapsErrors(t *testing.T) {
	client := newFakeRedis()
	client.setErr = errors.New("connection refused")
	store, _ := NewRedisClaimStore(client)

	_, _, err := store.Claim(context.Background(), "k", time.Second)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := NewRedisClaimStore(nil); err == nil {
		t.Fatalf("expected nil client rejected")
	}
}
