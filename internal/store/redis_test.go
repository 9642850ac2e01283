package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testCache(t *testing.T) *TokenCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewTokenCache(client)
}

func TestTokenCache_LoadEmpty(t *testing.T) {
	cache := testCache(t)

	payload, err := cache.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if payload != nil {
		t.Errorf("Load() = %s, want nil for empty cache", payload)
	}
}

func TestTokenCache_RoundTrip(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()

	original := json.RawMessage(`{"accessToken":"tok-abc","mdAccessToken":"md-xyz","expirationTime":"2026-08-31T12:00:00Z"}`)
	if err := cache.Store(ctx, original); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(loaded) != string(original) {
		t.Errorf("Load() = %s, want %s", loaded, original)
	}
}

func TestTokenCache_Overwrite(t *testing.T) {
	cache := testCache(t)
	ctx := context.Background()

	if err := cache.Store(ctx, json.RawMessage(`{"accessToken":"old"}`)); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err := cache.Store(ctx, json.RawMessage(`{"accessToken":"new"}`)); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(loaded) != `{"accessToken":"new"}` {
		t.Errorf("Load() = %s, want the last written payload", loaded)
	}
}
