package summarize

import (
	"fmt"
	"testing"
	"time"
)

type fakeClock struct {
	at time.Time
}

func (c *fakeClock) now() time.Time { return c.at }

func (c *fakeClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func TestCacheHitWithinTTL(t *testing.T) {
	clock := &fakeClock{at: time.Unix(1700000000, 0)}
	cache := newSummaryCache(10, 30*time.Minute, clock.now)

	cache.Put("k", "the summary")
	clock.advance(29 * time.Minute)
	if got, ok := cache.Get("k"); !ok || got != "the summary" {
		t.Fatalf("expected hit within TTL, got %q ok=%v", got, ok)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{at: time.Unix(1700000000, 0)}
	cache := newSummaryCache(10, 30*time.Minute, clock.now)

	cache.Put("k", "the summary")
	clock.advance(31 * time.Minute)
	if _, ok := cache.Get("k"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry not removed, len=%d", cache.Len())
	}
}

func TestCacheEvictsOnlyOldestAtCapacity(t *testing.T) {
	clock := &fakeClock{at: time.Unix(1700000000, 0)}
	cache := newSummaryCache(3, time.Hour, clock.now)

	for i := 0; i < 3; i++ {
		cache.Put(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))
		clock.advance(time.Minute)
	}

	// Reading the oldest entry must not refresh its age.
	if _, ok := cache.Get("k0"); !ok {
		t.Fatal("expected k0 present before eviction")
	}

	cache.Put("k3", "v3")
	if cache.Len() != 3 {
		t.Fatalf("expected capacity-bounded length 3, got %d", cache.Len())
	}
	if _, ok := cache.Get("k0"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	for _, key := range []string{"k1", "k2", "k3"} {
		if _, ok := cache.Get(key); !ok {
			t.Fatalf("entry %s evicted unexpectedly", key)
		}
	}
}

func TestCacheOverwriteResetsAge(t *testing.T) {
	clock := &fakeClock{at: time.Unix(1700000000, 0)}
	cache := newSummaryCache(2, time.Hour, clock.now)

	cache.Put("a", "old")
	clock.advance(time.Minute)
	cache.Put("b", "b")
	clock.advance(time.Minute)
	cache.Put("a", "new")
	clock.advance(time.Minute)

	// "b" is now the oldest entry and must be the one evicted.
	cache.Put("c", "c")
	if _, ok := cache.Get("b"); ok {
		t.Fatal("expected b evicted after a was rewritten")
	}
	if got, _ := cache.Get("a"); got != "new" {
		t.Fatalf("expected rewritten value, got %q", got)
	}
}
