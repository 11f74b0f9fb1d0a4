package cache

import (
	"context"
	"time"
)

// Store caches synthesized output paths keyed by the request fingerprint.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the cached output path for key, reporting whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set records the output path for key, subject to the store TTL.
	Set(ctx context.Context, key, path string) error
	// Delete drops a cached entry, typically after the file behind it vanished.
	Delete(ctx context.Context, key string) error
	// Stats reports implementation-specific counters for diagnostics.
	Stats(ctx context.Context) (map[string]any, error)
	// Close releases background resources.
	Close(ctx context.Context) error
}

// Config selects and tunes a cache driver.
type Config struct {
	Driver string
	TTL    time.Duration
	Memory *MemoryConfig
	Redis  *RedisConfig
}

// MemoryConfig tunes the in-memory driver.
type MemoryConfig struct {
	GCInterval time.Duration
}

// RedisConfig carries connection settings for the redis driver.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
