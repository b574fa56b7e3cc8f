package pricing

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Source combines the process quote cache, the optional shared Redis tier,
// and the price source client into the one price lookup the valuation engine
// uses. Reads check the process cache, then the shared tier, then fall
// through to the adapter; fresh quotes are written back to both caches.
//
// Single-symbol lookups for the same key are coalesced so concurrent callers
// share one outbound request.
type Source struct {
	client *Client
	cache  *QuoteCache
	shared *RedisQuoteCache // nil when the shared tier is disabled
	logger zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done  chan struct{}
	price *float64
}

// NewSource creates a price source. shared may be nil.
func NewSource(client *Client, cache *QuoteCache, shared *RedisQuoteCache, logger zerolog.Logger) *Source {
	return &Source{
		client:   client,
		cache:    cache,
		shared:   shared,
		logger:   logger.With().Str("component", "price_source").Logger(),
		inflight: make(map[string]*inflightCall),
	}
}

// Price returns the current price of one asset, or nil when unavailable.
func (s *Source) Price(ctx context.Context, symbol, currency string) *float64 {
	if price, ok := s.lookupCached(ctx, symbol, currency); ok {
		return &price
	}

	key := quoteKey(symbol, currency)

	s.mu.Lock()
	if call, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.price
		case <-ctx.Done():
			return nil
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	price := s.client.FetchPrice(ctx, symbol, currency)
	if price != nil {
		s.store(ctx, symbol, currency, *price)
	}

	call.price = price
	close(call.done)

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()

	return price
}

// Prices returns current prices for a set of assets, preferring one batched
// outbound request for all cache misses. Symbols with no data map to nil.
// The returned error is non-nil only when the outbound fetch itself failed;
// cached quotes gathered before the failure are still returned.
func (s *Source) Prices(ctx context.Context, symbols []string, currency string) (map[string]*float64, error) {
	result := make(map[string]*float64, len(symbols))
	var misses []string

	for _, sym := range symbols {
		if price, ok := s.lookupCached(ctx, sym, currency); ok {
			p := price
			result[normalizeSymbol(sym)] = &p
			continue
		}
		result[normalizeSymbol(sym)] = nil
		misses = append(misses, sym)
	}

	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := s.client.FetchBatch(ctx, misses, currency)
	if err != nil {
		s.logger.Warn().Err(err).Int("misses", len(misses)).Msg("batch price fetch failed")
		return result, err
	}

	for sym, price := range fetched {
		result[sym] = price
		if price != nil {
			s.store(ctx, sym, currency, *price)
		}
	}

	return result, nil
}

// Clear empties both cache tiers. Exposed as the explicit user "refresh"
// action.
func (s *Source) Clear(ctx context.Context) {
	s.cache.Clear()
	if s.shared != nil {
		s.shared.Clear(ctx)
	}
	s.logger.Info().Msg("price caches cleared")
}

func (s *Source) lookupCached(ctx context.Context, symbol, currency string) (float64, bool) {
	if price, ok := s.cache.Get(symbol, currency); ok {
		return price, true
	}
	if s.shared != nil {
		if price, ok := s.shared.Get(ctx, symbol, currency); ok {
			// Promote to the process cache.
			s.cache.Put(symbol, currency, price)
			return price, true
		}
	}
	return 0, false
}

func (s *Source) store(ctx context.Context, symbol, currency string, price float64) {
	s.cache.Put(symbol, currency, price)
	if s.shared != nil {
		s.shared.Put(ctx, symbol, currency, price)
	}
}
