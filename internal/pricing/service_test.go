package pricing

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSourceServesFromCache(t *testing.T) {
	var requests int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"bitcoin":{"usd":45000.0}}`))
	})

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	source := NewSource(client, NewQuoteCache(30*time.Minute, clock.Now), nil, zerolog.Nop())

	first := source.Price(context.Background(), "BTC", "USD")
	if first == nil || *first != 45000 {
		t.Fatalf("Expected 45000, got %v", first)
	}

	second := source.Price(context.Background(), "BTC", "USD")
	if second == nil || *second != 45000 {
		t.Fatalf("Expected cached 45000, got %v", second)
	}

	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("Expected 1 outbound request, got %d", n)
	}
}

func TestSourceRefetchesAfterTTL(t *testing.T) {
	var requests int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"bitcoin":{"usd":45000.0}}`))
	})

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	source := NewSource(client, NewQuoteCache(30*time.Minute, clock.Now), nil, zerolog.Nop())

	source.Price(context.Background(), "BTC", "USD")
	clock.Advance(31 * time.Minute)
	source.Price(context.Background(), "BTC", "USD")

	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("Expected refetch after TTL, got %d requests", n)
	}
}

func TestSourceBatchFetchesOnlyMisses(t *testing.T) {
	var requests int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"ethereum":{"usd":3000.0}}`))
	})

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache := NewQuoteCache(30*time.Minute, clock.Now)
	cache.Put("BTC", "USD", 45000)

	source := NewSource(client, cache, nil, zerolog.Nop())

	prices, err := source.Prices(context.Background(), []string{"BTC", "ETH"}, "USD")
	if err != nil {
		t.Fatalf("Prices failed: %v", err)
	}

	if prices["BTC"] == nil || *prices["BTC"] != 45000 {
		t.Errorf("Expected cached BTC 45000, got %v", prices["BTC"])
	}
	if prices["ETH"] == nil || *prices["ETH"] != 3000 {
		t.Errorf("Expected fetched ETH 3000, got %v", prices["ETH"])
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("Expected 1 outbound request for the misses, got %d", n)
	}
}

func TestSourceBatchAllCachedSkipsFetch(t *testing.T) {
	var requests int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	})

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache := NewQuoteCache(30*time.Minute, clock.Now)
	cache.Put("BTC", "USD", 45000)

	source := NewSource(client, cache, nil, zerolog.Nop())

	if _, err := source.Prices(context.Background(), []string{"BTC"}, "USD"); err != nil {
		t.Fatalf("Prices failed: %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("Expected no outbound request, got %d", n)
	}
}

func TestSourceBatchFailureKeepsCachedPartial(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache := NewQuoteCache(30*time.Minute, clock.Now)
	cache.Put("BTC", "USD", 45000)

	source := NewSource(client, cache, nil, zerolog.Nop())

	prices, err := source.Prices(context.Background(), []string{"BTC", "ETH"}, "USD")
	if err == nil {
		t.Fatal("Expected fetch error to surface")
	}
	if prices["BTC"] == nil || *prices["BTC"] != 45000 {
		t.Errorf("Expected cached BTC to survive the failure, got %v", prices["BTC"])
	}
	if prices["ETH"] != nil {
		t.Errorf("Expected nil ETH after failed fetch, got %v", *prices["ETH"])
	}
}

func TestSourceClear(t *testing.T) {
	var requests int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"bitcoin":{"usd":45000.0}}`))
	})

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	source := NewSource(client, NewQuoteCache(30*time.Minute, clock.Now), nil, zerolog.Nop())

	source.Price(context.Background(), "BTC", "USD")
	source.Clear(context.Background())
	source.Price(context.Background(), "BTC", "USD")

	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("Expected refetch after clear, got %d requests", n)
	}
}
