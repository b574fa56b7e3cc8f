package pricing

import (
	"strings"
	"sync"
	"time"
)

// Clock returns the current time. Injected so cache TTL behavior is
// deterministic under test.
type Clock func() time.Time

type quote struct {
	price     float64
	fetchedAt time.Time
}

// QuoteCache is a process-wide, time-bounded memoization layer in front of
// the price source. Staleness is checked lazily on access; there is no
// background refresh. A quote is valid strictly less than one TTL after it
// was stored.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]quote
	ttl    time.Duration
	now    Clock
}

// NewQuoteCache creates a quote cache with the given TTL. A nil clock uses
// wall time.
func NewQuoteCache(ttl time.Duration, now Clock) *QuoteCache {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &QuoteCache{
		quotes: make(map[string]quote),
		ttl:    ttl,
		now:    now,
	}
}

func quoteKey(symbol, currency string) string {
	return strings.ToUpper(symbol) + "|" + strings.ToUpper(currency)
}

// Get returns the cached price for (symbol, currency) and whether a fresh
// quote was present. A quote older than the TTL is treated as absent.
func (c *QuoteCache) Get(symbol, currency string) (float64, bool) {
	c.mu.RLock()
	q, ok := c.quotes[quoteKey(symbol, currency)]
	c.mu.RUnlock()

	if !ok {
		return 0, false
	}
	if c.now().Sub(q.fetchedAt) >= c.ttl {
		return 0, false
	}
	return q.price, true
}

// Put stores a freshly observed price.
func (c *QuoteCache) Put(symbol, currency string, price float64) {
	c.mu.Lock()
	c.quotes[quoteKey(symbol, currency)] = quote{price: price, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Clear removes all quotes unconditionally. Invoked by an explicit user
// refresh, never automatically.
func (c *QuoteCache) Clear() {
	c.mu.Lock()
	c.quotes = make(map[string]quote)
	c.mu.Unlock()
}

// Len returns the number of stored quotes, fresh or stale.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
