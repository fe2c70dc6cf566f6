package credstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("expected v, got %q", got)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
}

func TestMemoryStoreMiss(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v", time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after expiry, got %v", err)
	}
}

func TestMemoryStoreFailing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.SetFailing(true)

	if err := store.Set(ctx, "k", "v", 0); err == nil {
		t.Fatal("expected set error while failing")
	}
	if _, err := store.Get(ctx, "k"); err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("expected non-miss error while failing, got %v", err)
	}
	if err := store.Ping(ctx); err == nil {
		t.Fatal("expected ping error while failing")
	}

	store.SetFailing(false)
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping after recovery: %v", err)
	}
}

func TestSelfTest(t *testing.T) {
	store := NewMemoryStore()
	if err := SelfTest(context.Background(), store); err != nil {
		t.Fatalf("self-test on healthy store: %v", err)
	}
}

func TestSelfTestFailure(t *testing.T) {
	store := NewMemoryStore()
	store.SetFailing(true)
	if err := SelfTest(context.Background(), store); err == nil {
		t.Fatal("expected self-test failure on failing store")
	}
}
