// Package lock provides the per-transaction single-writer lock used by confirmation tracking.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Handle releases an acquired lock
type Handle interface {
	Unlock(ctx context.Context) error
}

// Locker acquires named locks without waiting. acquired is false when another holder owns key.
type Locker interface {
	TryLock(ctx context.Context, key string) (handle Handle, acquired bool, err error)
}

// LocalLocker is an in-process Locker for single-instance deployments
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an empty in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string) (Handle, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	return &localHandle{locker: l, key: key}, true, nil
}

type localHandle struct {
	locker *LocalLocker
	key    string
	once   sync.Once
}

func (h *localHandle) Unlock(ctx context.Context) error {
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.held, h.key)
		h.locker.mu.Unlock()
	})
	return nil
}

// RedisLocker coordinates writers across service instances through redsync
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	prefix string
}

// NewRedisLocker creates a locker on client. expiry must exceed the longest tracking run.
func NewRedisLocker(client redis.UniversalClient, expiry time.Duration) *RedisLocker {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		prefix: "lock:remittance:",
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (Handle, bool, error) {
	mutex := l.rs.NewMutex(
		l.prefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) || strings.Contains(err.Error(), "lock already taken") {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	return &redisHandle{mutex: mutex}, true, nil
}

type redisHandle struct {
	mutex *redsync.Mutex
}

func (h *redisHandle) Unlock(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", h.mutex.Name(), err)
	}
	if !ok {
		return fmt.Errorf("lock %s expired before release", h.mutex.Name())
	}
	return nil
}
