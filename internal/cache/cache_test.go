package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string, int](0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "a", 1, time.Minute)

	got, ok := c.Get(ctx, "a")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != 1 {
		t.Errorf("value = %d, want 1", got)
	}
}

func TestCache_Miss(t *testing.T) {
	c := New[string, int](0)
	defer c.Close()

	if _, ok := c.Get(context.Background(), "missing"); ok {
		t.Error("expected cache miss")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[string, string](0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k", "v", 10*time.Millisecond)

	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted on read, len = %d", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c := New[string, int](0)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "a", 1, time.Minute)
	c.Delete(ctx, "a")

	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected miss after delete")
	}
}

func TestCache_BackgroundSweep(t *testing.T) {
	c := New[string, int](10 * time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "a", 1, 5*time.Millisecond)
	c.Set(ctx, "b", 2, time.Minute)

	time.Sleep(50 * time.Millisecond)

	if c.Len() != 1 {
		t.Errorf("len = %d after sweep, want 1", c.Len())
	}
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Close()
	c.Close()
}
