package cache

import (
	stderrors "errors"
	"time"

	"sjsage522/dealrefresher/pkg/errors"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{
		client: memcache.New(serverAddr),
	}
}

// Ping checks that the server is reachable.
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		return errors.NewCache("memcache", "ping", err)
	}
	return nil
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if stderrors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, errors.NewCache("memcache", "get "+key, err)
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Add stores a value only if no item exists under key.
func (m *MemcacheService) Add(key string, value []byte, expiration time.Duration) error {
	err := m.client.Add(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if stderrors.Is(err, memcache.ErrNotStored) {
		return ErrNotStored
	}
	return err
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if stderrors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
