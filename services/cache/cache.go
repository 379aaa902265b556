package cache

import (
	stderrors "errors"
	"time"
)

// ErrNotStored is returned by Add when the key already exists.
var ErrNotStored = stderrors.New("cache: item not stored")

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = stderrors.New("cache: miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Add stores a value only if the key is not present yet
	Add(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}
