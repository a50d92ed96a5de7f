package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

const leaseKeyPrefix = "compliance:lease:"

// Deletes the key only when it still holds the caller's owner id.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps leases as keys with a native expiry, so expired leases
// disappear without passive cleanup.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a lease store on client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// DeleteExpired is a no-op: Redis expires the key itself.
func (s *RedisStore) DeleteExpired(context.Context, string, time.Time) error {
	return nil
}

// TryInsert sets the key with SET NX PX.
func (s *RedisStore) TryInsert(ctx context.Context, lease entities.Lease) (bool, error) {
	ttl := lease.ExpiresAt.Sub(lease.AcquiredAt)
	if ttl <= 0 {
		return false, fmt.Errorf("lease for %s has non-positive ttl", lease.LockKey)
	}

	ok, err := s.client.SetNX(ctx, leaseKeyPrefix+lease.LockKey, lease.OwnerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set lease key: %w", err)
	}
	return ok, nil
}

// DeleteOwned runs the compare-and-delete script.
func (s *RedisStore) DeleteOwned(ctx context.Context, key, ownerID string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{leaseKeyPrefix + key}, ownerID).Int()
	if err != nil {
		return false, fmt.Errorf("failed to run release script: %w", err)
	}
	return n == 1, nil
}
