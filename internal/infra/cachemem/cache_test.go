package cachemem

import (
	"context"
	"testing"
	"time"

	"wipetrace/internal/domain"
)

func TestGetReturnsStoredResult(t *testing.T) {
	cache := New()
	want := domain.VerificationResult{Found: true, Valid: true}

	if err := cache.Put(context.Background(), "CODE|1", want, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := cache.Get(context.Background(), "CODE|1")
	if err != nil || !ok {
		t.Fatalf("expected a hit, got ok=%t err=%v", ok, err)
	}
	if got.Valid != want.Valid || got.Found != want.Found {
		t.Fatalf("expected %+v, got %+v", want, *got)
	}
}

func TestMissOnUnknownKey(t *testing.T) {
	cache := New()
	if _, ok, err := cache.Get(context.Background(), "NOPE"); ok || err != nil {
		t.Fatalf("expected a miss, got ok=%t err=%v", ok, err)
	}
}

func TestEntryGoesStaleAfterTTL(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := NewWithClock(func() time.Time { return now })

	if err := cache.Put(context.Background(), "CODE|1", domain.VerificationResult{Found: true}, 30*time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := cache.Get(context.Background(), "CODE|1"); !ok {
		t.Fatal("expected a hit inside the TTL")
	}

	now = now.Add(time.Minute)
	if _, ok, _ := cache.Get(context.Background(), "CODE|1"); ok {
		t.Fatal("expected a miss after the TTL lapsed")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := NewWithClock(func() time.Time { return now })

	if err := cache.Put(context.Background(), "CODE|1", domain.VerificationResult{Found: true}, 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.AddDate(1, 0, 0)
	if _, ok, _ := cache.Get(context.Background(), "CODE|1"); !ok {
		t.Fatal("entries without a TTL must not expire")
	}
}

func TestWritesSweepStaleEntries(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := NewWithClock(func() time.Time { return now })

	if err := cache.Put(context.Background(), "OLD|1", domain.VerificationResult{}, time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(time.Minute)
	if err := cache.Put(context.Background(), "NEW|1", domain.VerificationResult{}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	cache.mu.RLock()
	_, held := cache.items["OLD|1"]
	cache.mu.RUnlock()
	if held {
		t.Fatal("stale entries must be evicted on write")
	}
}
