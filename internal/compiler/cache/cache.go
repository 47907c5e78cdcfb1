package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is a build-output store
type Cache interface {
	// Get retrieves a value; a missing key returns ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL; zero uses the backend default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every value under the cache's prefix
	Clear(ctx context.Context) error
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL is the time-to-live used when Set is given none
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 24 * time.Hour,
		Prefix:     "fieldmeta:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}
