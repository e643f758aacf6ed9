package memcache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := New(10, time.Minute)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	_ = c.Set(ctx, "k", []byte("v"), 60)
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected v, got %q (%v)", got, err)
	}
	_ = c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := New(2, time.Minute)

	for i := 0; i < 3; i++ {
		_ = c.Set(ctx, fmt.Sprintf("k%d", i), []byte{byte(i)}, 60)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, err := c.Get(ctx, "k0"); !errors.Is(err, ErrMiss) {
		t.Error("oldest entry should have been evicted")
	}
}

func TestCache_PerKeyTTL(t *testing.T) {
	ctx := context.Background()
	c := New(10, time.Minute)

	c.lru.Add("stale", entry{value: []byte("x"), expires: time.Now().Add(-time.Second)})
	if _, err := c.Get(ctx, "stale"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected expired entry to miss, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("expired entry should be removed")
	}
}
