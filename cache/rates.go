// Package cache holds the Redis-backed exchange-rate cache consumed by
// the pricing presentation layer.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ratesKey = "exchangeRates"

// Rates maps an ISO currency code to the NGN->currency multiplier.
type Rates map[string]float64

type RateCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRateCache(rdb *redis.Client) *RateCache {
	return &RateCache{rdb: rdb, ttl: 6 * time.Hour}
}

// Get returns the cached rates, or redis.Nil-wrapped error on a miss.
func (c *RateCache) Get(ctx context.Context) (Rates, error) {
	raw, err := c.rdb.Get(ctx, ratesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ratesKey, err)
	}
	var rates Rates
	if err := json.Unmarshal([]byte(raw), &rates); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ratesKey, err)
	}
	return rates, nil
}

func (c *RateCache) Set(ctx context.Context, rates Rates) error {
	raw, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ratesKey, err)
	}
	if err := c.rdb.Set(ctx, ratesKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", ratesKey, err)
	}
	return nil
}

// Rate returns the multiplier for currency, defaulting to 1 (base
// currency) when the cache is cold or the currency is unknown.
func (c *RateCache) Rate(ctx context.Context, currency string) float64 {
	if currency == "" || currency == "NGN" {
		return 1
	}
	rates, err := c.Get(ctx)
	if err != nil {
		return 1
	}
	if r, ok := rates[currency]; ok && r > 0 {
		return r
	}
	return 1
}
