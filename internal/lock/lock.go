// Package lock implements a lease-based distributed lock over a shared store.
//
// The lock is best-effort: leases are never renewed, so a holder that runs
// longer than its TTL can be raced by another instance acquiring the same key.
// Callers must size the TTL generously relative to the expected job duration.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/internal/metrics"
)

// ErrNotAcquired is returned when another owner holds an unexpired lease on the key.
var ErrNotAcquired = errors.New("lock not acquired")

const releaseTimeout = 5 * time.Second

// LeaseStore is the storage boundary of the lock. TryInsert is a conditional
// insert keyed on the lock key: a conflict is reported as false, nil.
type LeaseStore interface {
	DeleteExpired(ctx context.Context, key string, now time.Time) error
	TryInsert(ctx context.Context, lease entities.Lease) (bool, error)
	DeleteOwned(ctx context.Context, key, ownerID string) (bool, error)
}

// DistributedLock grants at most one lease per key across all instances sharing the store.
type DistributedLock struct {
	logger  *slog.Logger
	store   LeaseStore
	metrics *metrics.Metrics

	hostname   string
	pid        int
	retryDelay time.Duration
	now        func() time.Time
}

// Option configures a DistributedLock.
type Option func(*DistributedLock)

// WithRetryDelay sets the fixed delay between AcquireWithRetry attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(l *DistributedLock) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// WithMetrics records acquisition outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *DistributedLock) {
		l.metrics = m
	}
}

// WithClock overrides time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *DistributedLock) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a lock backed by store.
func New(logger *slog.Logger, store LeaseStore, opts ...Option) *DistributedLock {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-host"
	}

	l := &DistributedLock{
		logger:     logger,
		store:      store,
		hostname:   hostname,
		pid:        os.Getpid(),
		retryDelay: ports.DefaultLockRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *DistributedLock) ownerID(leaseID string) string {
	return fmt.Sprintf("%s:%d:%s", l.hostname, l.pid, leaseID)
}

// Acquire tries once to take a lease on key for ttl. It returns the lease id,
// or ErrNotAcquired when an unexpired lease is held by someone else.
func (l *DistributedLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("lock key is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("invalid lease ttl %s", ttl)
	}

	now := l.now()

	// Passive cleanup of a lease left behind by a crashed or overrunning owner
	if err := l.store.DeleteExpired(ctx, key, now); err != nil {
		l.metrics.IncLockAcquisition(key, "error")
		return "", fmt.Errorf("failed to delete expired leases for %s: %w", key, err)
	}

	leaseID := uuid.NewString()
	lease := entities.Lease{
		LockKey:    key,
		OwnerID:    l.ownerID(leaseID),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
		Active:     true,
	}

	inserted, err := l.store.TryInsert(ctx, lease)
	if err != nil {
		l.metrics.IncLockAcquisition(key, "error")
		return "", fmt.Errorf("failed to insert lease for %s: %w", key, err)
	}
	if !inserted {
		l.metrics.IncLockAcquisition(key, "held")
		l.logger.DebugContext(ctx, "Lock is held by another owner", "lock_key", key)
		return "", ErrNotAcquired
	}

	l.metrics.IncLockAcquisition(key, "acquired")
	l.logger.DebugContext(ctx, "Lock acquired",
		"lock_key", key,
		"owner_id", lease.OwnerID,
		"expires_at", lease.ExpiresAt)

	return leaseID, nil
}

// Release deletes the lease if it is still owned by leaseID. Releasing an
// expired, stolen or already released lease is a no-op returning false.
func (l *DistributedLock) Release(ctx context.Context, key, leaseID string) (bool, error) {
	released, err := l.store.DeleteOwned(ctx, key, l.ownerID(leaseID))
	if err != nil {
		return false, fmt.Errorf("failed to release lease for %s: %w", key, err)
	}

	if !released {
		l.logger.WarnContext(ctx, "Lease was not owned on release", "lock_key", key, "lease_id", leaseID)
	}

	return released, nil
}

// AcquireWithRetry makes up to maxRetries additional attempts, sleeping the
// configured delay between them, and gives up with ErrNotAcquired.
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int) (string, error) {
	for attempt := 0; ; attempt++ {
		leaseID, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return leaseID, nil
		}
		if !errors.Is(err, ErrNotAcquired) {
			return "", err
		}
		if attempt >= maxRetries {
			return "", ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

// WithLock runs fn while holding a lease on key. It returns ErrNotAcquired
// without running fn when the lease is unavailable, otherwise fn's error.
// The lease is released after fn returns, even if ctx was cancelled.
func (l *DistributedLock) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	leaseID, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		if _, err := l.Release(releaseCtx, key, leaseID); err != nil {
			l.logger.ErrorContext(ctx, "Failed to release lock", "lock_key", key, "error", err)
		}
	}()

	return fn(ctx)
}
