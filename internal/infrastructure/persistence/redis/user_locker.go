package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rhythmofsigns/progress-engine/internal/application/command"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLocker is a per-user lease lock shared by every engine instance.
type UserLocker struct {
	cache *Cache
	lease time.Duration
	poll  time.Duration
}

// NewUserLocker creates a UserLocker. A zero lease means TTLDistributedLock.
func NewUserLocker(cache *Cache, lease time.Duration) *UserLocker {
	if lease <= 0 {
		lease = TTLDistributedLock
	}
	return &UserLocker{cache: cache, lease: lease, poll: 25 * time.Millisecond}
}

// Lock blocks until userID's lock is held or ctx ends. The returned function
// releases it.
func (l *UserLocker) Lock(ctx context.Context, userID shared.UserID) (func(), error) {
	key := LockKey(userID)
	token := uuid.NewString()
	client := l.cache.Client()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return nil, unavailable("LockUser", err)
		}
		if ok {
			return func() {
				// Released on a fresh context so a cancelled caller still frees it.
				rctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(rctx, client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, shared.WrapError("redis", "LockUser", shared.ErrTimeout, "user lock not acquired", ctx.Err())
		case <-ticker.C:
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCKED UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// LockedUnitOfWork takes the distributed user lock before delegating to the
// local unit of work.
type LockedUnitOfWork struct {
	locker *UserLocker
	inner  command.UnitOfWork
}

var _ command.UnitOfWork = (*LockedUnitOfWork)(nil)

// NewLockedUnitOfWork wraps inner with locker.
func NewLockedUnitOfWork(locker *UserLocker, inner command.UnitOfWork) *LockedUnitOfWork {
	return &LockedUnitOfWork{locker: locker, inner: inner}
}

// Within implements command.UnitOfWork.
func (u *LockedUnitOfWork) Within(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, store command.Store) error) error {
	unlock, err := u.locker.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	return u.inner.Within(ctx, userID, fn)
}
