package pricing

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for deterministic TTL tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestQuoteCacheRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache := NewQuoteCache(30*time.Minute, clock.Now)

	cache.Put("BTC", "USD", 45000)

	price, ok := cache.Get("BTC", "USD")
	if !ok {
		t.Fatal("Expected cache hit immediately after put")
	}
	if price != 45000 {
		t.Errorf("Expected 45000, got %f", price)
	}
}

func TestQuoteCacheExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache := NewQuoteCache(30*time.Minute, clock.Now)

	cache.Put("BTC", "USD", 45000)

	clock.Advance(29 * time.Minute)
	if _, ok := cache.Get("BTC", "USD"); !ok {
		t.Error("Expected hit just inside the TTL")
	}

	clock.Advance(1 * time.Minute)
	if _, ok := cache.Get("BTC", "USD"); ok {
		t.Error("Expected miss once the quote is exactly one TTL old")
	}
}

func TestQuoteCacheMissUnknownKey(t *testing.T) {
	cache := NewQuoteCache(30*time.Minute, nil)
	if _, ok := cache.Get("ETH", "USD"); ok {
		t.Error("Expected miss for a key never stored")
	}
}

func TestQuoteCacheKeyIncludesCurrency(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache := NewQuoteCache(30*time.Minute, clock.Now)

	cache.Put("BTC", "USD", 45000)

	if _, ok := cache.Get("BTC", "PHP"); ok {
		t.Error("Expected USD quote not to satisfy a PHP lookup")
	}
}

func TestQuoteCacheCaseInsensitiveKey(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache := NewQuoteCache(30*time.Minute, clock.Now)

	cache.Put("btc", "usd", 45000)

	if _, ok := cache.Get("BTC", "USD"); !ok {
		t.Error("Expected case-insensitive key match")
	}
}

func TestQuoteCacheClear(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache := NewQuoteCache(30*time.Minute, clock.Now)

	cache.Put("BTC", "USD", 45000)
	cache.Put("ETH", "USD", 3000)

	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after clear, got %d entries", cache.Len())
	}
	if _, ok := cache.Get("BTC", "USD"); ok {
		t.Error("Expected miss after clear")
	}
}
