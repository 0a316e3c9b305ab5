// Package cache wraps the optional Redis key/value store. Per the "optional
// infra falls back silently" design rule, a nil or unreachable client never
// fails a caller: Get reports a miss and Set is a no-op.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TTLWeather            = 600 * time.Second
	TTLPollutantMovement  = 600 * time.Second
	TTLHotspots           = 300 * time.Second
	TTLRouteOptimized     = 300 * time.Second
	TTLTempoLastUpdate    = 3600 * time.Second
	TTLUPESLastUpdate     = 3600 * time.Second
)

// Client is a thin, miss-safe wrapper over *redis.Client.
type Client struct {
	redis *redis.Client
}

// New returns a Client. addr may point at an unreachable host; callers never
// see connection errors, only cache misses.
func New(addr, password string, db int) *Client {
	return &Client{redis: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Ping checks connectivity; used only for startup diagnostics, never to gate
// request handling.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return fmt.Errorf("cache: not configured")
	}
	return c.redis.Ping(ctx).Err()
}

// Get returns (value, true) on a hit, ("", false) on a miss or any error.
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.redis == nil {
		return "", false
	}
	v, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

// GetJSON unmarshals a cached JSON value into dest; returns false on miss,
// unreachable cache, or a decode error (treated as a miss, never a failure).
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false
	}
	return true
}

// Set stores value with a TTL; errors (including an unreachable cache) are
// swallowed, matching the "writes are no-ops" contract.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil || c.redis == nil {
		return
	}
	_ = c.redis.Set(ctx, key, value, ttl).Err()
}

// SetJSON marshals value and stores it with a TTL; marshal failures and
// cache errors are both swallowed.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.Set(ctx, key, string(raw), ttl)
}

// Del removes a key; errors are swallowed.
func (c *Client) Del(ctx context.Context, key string) {
	if c == nil || c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, key).Err()
}

// KeyWeather builds the weather-cache key.
func KeyWeather(lat, lon float64, days int) string {
	return fmt.Sprintf("weather:%.4f:%.4f:%d", lat, lon, days)
}

// KeyPollutantMovement builds the pollutant-movement-cache key.
func KeyPollutantMovement(lat, lon float64) string {
	return fmt.Sprintf("pollutant_movement:%.4f:%.4f", lat, lon)
}

// KeyRouteOptimized builds the route-optimization cache key. Mode is
// normalized (trimmed, lowercased, alias-resolved) before interpolation so
// equivalent mode spellings hash to the same key.
func KeyRouteOptimized(startLat, startLon, endLat, endLon float64, normalizedMode string) string {
	return fmt.Sprintf("route_opt:%.4f:%.4f:%.4f:%.4f:%s", startLat, startLon, endLat, endLon, normalizedMode)
}

const (
	KeyTempoLastUpdate = "tempo:last_update"
	KeyUPESLastUpdate  = "upes:last_update"
)
