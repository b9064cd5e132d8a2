package itemapprove

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements RedisKV over a map.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = value.(string)
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, f.err)
}

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore("initial")

	if token, _ := store.Token(ctx); token != "initial" {
		t.Errorf("Expected initial token, got %q", token)
	}
	_ = store.SetToken(ctx, "next")
	if token, _ := store.Token(ctx); token != "next" {
		t.Errorf("Expected next token, got %q", token)
	}
	_ = store.ClearToken(ctx)
	if token, _ := store.Token(ctx); token != "" {
		t.Errorf("Expected empty token, got %q", token)
	}
}

func TestRedisTokenStore(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	store := NewRedisTokenStore(client, "", time.Hour)

	token, err := store.Token(ctx)
	if err != nil || token != "" {
		t.Fatalf("Expected empty token for missing key, got %q, %v", token, err)
	}

	if err := store.SetToken(ctx, "abc"); err != nil {
		t.Fatalf("SetToken returned error: %v", err)
	}
	if client.data["itemapprove:session:token"] != "abc" {
		t.Errorf("Expected token under default key, got %v", client.data)
	}
	if client.ttl["itemapprove:session:token"] != time.Hour {
		t.Errorf("Expected 1h ttl, got %v", client.ttl["itemapprove:session:token"])
	}

	if token, _ := store.Token(ctx); token != "abc" {
		t.Errorf("Expected abc, got %q", token)
	}

	if err := store.ClearToken(ctx); err != nil {
		t.Fatalf("ClearToken returned error: %v", err)
	}
	if _, ok := client.data["itemapprove:session:token"]; ok {
		t.Error("Expected key to be deleted")
	}
}

func TestRedisTokenStoreError(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	store := NewRedisTokenStore(client, "console:token", 0)

	if _, err := store.Token(context.Background()); err == nil {
		t.Error("Expected error from failing redis")
	}
	if err := store.SetToken(context.Background(), "x"); err == nil {
		t.Error("Expected error from failing redis")
	}
}

func TestTokenStoreFailureIsNetworkError(t *testing.T) {
	var hits int32
	server := okServer(&hits)
	defer server.Close()

	client := newFakeRedis()
	client.err = errors.New("connection refused")
	o, notifier := newTestOrchestrator(t, server,
		WithDebounce(0),
		WithTokenStore(NewRedisTokenStore(client, "", 0)),
	)

	_, err := o.Get(context.Background(), "/items", nil)
	reqErr, ok := AsRequestError(err)
	if !ok || reqErr.Type != ErrorTypeNetwork {
		t.Fatalf("Expected network error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("Expected no dispatch without a token lookup")
	}
	if len(notifier.all()) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(notifier.all()))
	}
}
