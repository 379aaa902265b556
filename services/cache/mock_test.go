package cache

import (
	stderrors "errors"
	"time"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache  map[string][]byte
	addErr error
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Add(key string, value []byte, expiration time.Duration) error {
	if m.addErr != nil {
		return m.addErr
	}
	if _, ok := m.cache[key]; ok {
		return ErrNotStored
	}
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

var errUnreachable = stderrors.New("dial tcp: connection refused")
