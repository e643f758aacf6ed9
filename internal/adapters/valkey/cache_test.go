package valkey

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestKeyPrefix(t *testing.T) {
	c := &Cache{prefix: defaultPrefix}
	if got := c.key("trajectory:ab12"); got != "gpspath:trajectory:ab12" {
		t.Errorf("unexpected key %q", got)
	}
}

// TestCache_RoundTrip runs against GPSPATH_TEST_VALKEY_ADDR when set.
func TestCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("GPSPATH_TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("GPSPATH_TEST_VALKEY_ADDR not set")
	}
	c, err := New(Options{Addr: addr, Prefix: "gpspath-test:"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
	if err := c.Set(ctx, "k", []byte{0xc1, 0x00}, 60); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || len(got) != 2 || got[0] != 0xc1 {
		t.Fatalf("unexpected value %v, %v", got, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatal(err)
	}
}
