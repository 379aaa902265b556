package cache

import (
	stderrors "errors"
	"sync"
	"time"

	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/pkg/errors"
)

// ErrLocked is returned by TryAcquire when another holder owns the lock.
var ErrLocked = stderrors.New("refresh already running")

// RunLock is a cross-process mutex stored in the cache. The TTL releases the
// lock of a holder that died without calling Release.
type RunLock struct {
	cache CacheService
	key   string
	ttl   time.Duration
	owner string
	log   *logger.Logger

	// local guards against two holders in the same process when the cache is
	// unreachable and the lock degrades to process scope.
	local  sync.Mutex
	held   bool
	remote bool
}

// NewRunLock creates a lock stored under key. owner identifies this process in
// the stored value.
func NewRunLock(c CacheService, key, owner string, ttl time.Duration) *RunLock {
	return &RunLock{
		cache: c,
		key:   key,
		ttl:   ttl,
		owner: owner,
		log:   logger.ForCache(),
	}
}

// TryAcquire takes the lock without waiting. It returns ErrLocked when the lock
// is held. When the cache cannot be reached the lock falls back to this process
// only, and a warning is logged.
func (l *RunLock) TryAcquire() error {
	l.local.Lock()
	defer l.local.Unlock()

	if l.held {
		return ErrLocked
	}

	remote := false
	if l.cache != nil {
		err := l.cache.Add(l.key, []byte(l.owner), l.ttl)
		switch {
		case stderrors.Is(err, ErrNotStored):
			return ErrLocked
		case err != nil:
			l.log.Warn().Err(errors.NewCache("memcache", "acquire "+l.key, err)).Msg("Run lock unavailable, locking this process only")
		default:
			remote = true
		}
	}

	l.held = true
	l.remote = remote
	return nil
}

// Release frees the lock. Releasing a lock that is not held is a no-op. The
// cache entry is only deleted when this holder stored it and still owns it; an
// entry that expired and was taken by another owner is left alone.
func (l *RunLock) Release() {
	l.local.Lock()
	defer l.local.Unlock()

	if !l.held {
		return
	}
	remote := l.remote
	l.held = false
	l.remote = false

	if !remote || l.cache == nil {
		return
	}

	// Get and Delete are not atomic; the window is bounded by one round trip.
	current, err := l.cache.Get(l.key)
	switch {
	case stderrors.Is(err, ErrCacheMiss):
		l.log.Debug().Str("key", l.key).Msg("Run lock already expired")
		return
	case err != nil:
		l.log.Warn().Err(err).Str("key", l.key).Msg("Failed to read run lock, leaving it to expire")
		return
	case string(current) != l.owner:
		l.log.Warn().Str("key", l.key).Str("owner", string(current)).Msg("Run lock taken over by another owner")
		return
	}

	if err := l.cache.Delete(l.key); err != nil {
		l.log.Warn().Err(err).Str("key", l.key).Msg("Failed to release run lock")
	}
}
