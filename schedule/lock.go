package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a lease that keeps two instances from draining the queue at once.
type Lock interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// DistLock is a redis lease: SET NX PX to acquire, compare and delete to
// release so an expired holder cannot free someone else's lease.
type DistLock struct {
	RDB *redis.Client
}

func NewDistLock(rdb *redis.Client) *DistLock {
	return &DistLock{RDB: rdb}
}

func (l *DistLock) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return l.RDB.SetNX(ctx, key, token, ttl).Result()
}

func (l *DistLock) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.RDB, []string{key}, token).Err()
}

// LocalLock serves single instance deployments without redis.
type LocalLock struct {
	mu      sync.Mutex
	holders map[string]localHolder
	now     func() time.Time
}

type localHolder struct {
	token   string
	expires time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{holders: map[string]localHolder{}, now: time.Now}
}

func (l *LocalLock) Acquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.holders[key]; ok && l.now().Before(h.expires) {
		return false, nil
	}
	l.holders[key] = localHolder{token: token, expires: l.now().Add(ttl)}
	return true, nil
}

func (l *LocalLock) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.holders[key]; ok && h.token == token {
		delete(l.holders, key)
	}
	return nil
}
