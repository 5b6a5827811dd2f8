package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld reports the lock is held by another worker; callers skip the item
// and let the holder (or the next sweep) finish the work.
var ErrHeld = errors.New("lock held by another worker")

// unlockLua deletes the lock key only if it still carries the caller's token,
// so an expired holder cannot release its successor's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Manager hands out per-key distributed locks via SETNX with a TTL. Trades
// use it to serialize deposit application and status moves across api,
// worker and indexer instances; the database row conditions remain the
// authority if a TTL lapses mid-operation.
type Manager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

func NewManager(rdb *redis.Client) *Manager {
	return &Manager{
		rdb:      rdb,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// TradeKey names the lock that serializes all balance and status writes for
// one trade.
func TradeKey(tradeID uuid.UUID) string {
	return "trade:" + tradeID.String()
}

// Acquire takes the lock or returns ErrHeld. The returned release function
// is safe to call more than once.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := m.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// Background context so release works even after the caller's
		// context is cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = m.unlockSc.Run(unlockCtx, m.rdb, []string{lk}, token).Err()
	}

	return release, nil
}
