package entities

import "time"

// Lease is a time-bounded lock grant recorded in shared storage.
type Lease struct {
	LockKey    string    `db:"lock_key"`
	OwnerID    string    `db:"owner_id"`
	AcquiredAt time.Time `db:"acquired_at"`
	ExpiresAt  time.Time `db:"expires_at"`
	Active     bool      `db:"active"`
}

// Expired reports whether the lease is past its expiry at now.
func (l Lease) Expired(now time.Time) bool {
	return l.ExpiresAt.Before(now)
}
