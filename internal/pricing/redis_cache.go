package pricing

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Quote key layout in Redis.
const redisQuotePrefix = "quote:%s:%s" // quote:<SYMBOL>:<CURRENCY>

// RedisQuoteCache is an optional shared quote tier sitting between the
// process cache and the price source, so several service instances can share
// fetched quotes. It degrades gracefully: when Redis is unavailable,
// operations report a miss and callers fall through to the adapter.
type RedisQuoteCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	// Circuit breaker settings
	maxFailures   int
	checkInterval time.Duration
}

// RedisConfig holds connection settings for the shared tier.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisQuoteCache connects to Redis. A failed initial connection returns
// the cache in degraded mode rather than an error.
func NewRedisQuoteCache(cfg RedisConfig, ttl time.Duration, logger zerolog.Logger) *RedisQuoteCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	rc := &RedisQuoteCache{
		client:        client,
		ttl:           ttl,
		logger:        logger.With().Str("component", "quote_cache_redis").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		rc.logger.Warn().Err(err).Msg("initial redis connection failed, starting degraded")
		return rc
	}

	rc.healthy = true
	rc.lastCheck = time.Now()
	rc.logger.Info().Str("address", cfg.Address).Msg("redis quote cache connected")
	return rc
}

// IsHealthy returns whether Redis is currently available.
func (rc *RedisQuoteCache) IsHealthy() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.healthy
}

func (rc *RedisQuoteCache) recordFailure() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.failureCount++
	if rc.failureCount >= rc.maxFailures {
		if rc.healthy {
			rc.logger.Warn().Int("failures", rc.failureCount).Msg("circuit breaker open, redis marked unhealthy")
		}
		rc.healthy = false
	}
}

func (rc *RedisQuoteCache) recordSuccess() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.healthy {
		rc.logger.Info().Msg("circuit breaker closed, redis recovered")
	}
	rc.healthy = true
	rc.failureCount = 0
	rc.lastCheck = time.Now()
}

// checkHealth performs a background ping if the breaker is open and enough
// time has passed.
func (rc *RedisQuoteCache) checkHealth() {
	rc.mu.RLock()
	shouldCheck := !rc.healthy && time.Since(rc.lastCheck) >= rc.checkInterval
	rc.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := rc.client.Ping(pingCtx).Err(); err == nil {
			rc.recordSuccess()
		}
	}()
}

// Get returns the shared quote for (symbol, currency), or a miss when the
// key is absent, expired, or Redis is unavailable.
func (rc *RedisQuoteCache) Get(ctx context.Context, symbol, currency string) (float64, bool) {
	rc.checkHealth()
	if !rc.IsHealthy() {
		return 0, false
	}

	key := fmt.Sprintf(redisQuotePrefix, symbol, currency)
	val, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			rc.recordFailure()
		}
		return 0, false
	}

	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		rc.logger.Warn().Str("key", key).Str("value", val).Msg("malformed quote in redis")
		return 0, false
	}

	rc.recordSuccess()
	return price, true
}

// Put stores a quote with the cache TTL.
func (rc *RedisQuoteCache) Put(ctx context.Context, symbol, currency string, price float64) {
	rc.checkHealth()
	if !rc.IsHealthy() {
		return
	}

	key := fmt.Sprintf(redisQuotePrefix, symbol, currency)
	if err := rc.client.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), rc.ttl).Err(); err != nil {
		rc.recordFailure()
		return
	}
	rc.recordSuccess()
}

// Clear removes every stored quote.
func (rc *RedisQuoteCache) Clear(ctx context.Context) {
	rc.checkHealth()
	if !rc.IsHealthy() {
		return
	}

	iter := rc.client.Scan(ctx, 0, "quote:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			rc.recordFailure()
			return
		}
	}
	if err := iter.Err(); err != nil {
		rc.recordFailure()
		return
	}
	rc.recordSuccess()
}

// Close closes the Redis connection.
func (rc *RedisQuoteCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}
