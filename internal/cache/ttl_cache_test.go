package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 7, time.Minute)

	got, ok := c.Get("a")
	if !ok || got != 7 {
		t.Fatalf("Get = %d, %v; want 7, true", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("short", "x", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Fatal("expected expired entry to miss")
	}

	c.Set("forever", "y", 0)
	if _, ok := c.Get("forever"); !ok {
		t.Fatal("zero TTL entry should not expire")
	}
}

func TestTTLCacheFlush(t *testing.T) {
	c := NewTTLCache[int, int]()
	c.Set(1, 1, time.Minute)
	c.Set(2, 2, time.Minute)
	c.Flush()
	if _, ok := c.Get(1); ok {
		t.Fatal("expected flush to drop entries")
	}
}

func TestNoopCache(t *testing.T) {
	var c Cache[string, int] = NoopCache[string, int]{}
	c.Set("a", 1, time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("noop cache must always miss")
	}
}
