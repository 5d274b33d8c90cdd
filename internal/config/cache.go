package config

import "time"

// CacheConfig defines settings for the booking list cache.  When Enabled
// is false or no Redis client is configured, caching is disabled.  Prefix
// namespaces the keys; it is empty by default so keys keep the
// bookings:showtime:<id> layout.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("BOOKING_CACHE_TTL", time.Hour),
		Prefix:  envStr("CACHE_PREFIX", ""),
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	return c
}
