package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/pkg/database"
)

// PostgresStore keeps leases in the distributed_locks table; the primary key
// on lock_key is what makes TryInsert atomic across instances.
type PostgresStore struct {
	logger *slog.Logger
	db     tx.DBGetter
}

// NewPostgresStore creates a lease store on the shared database.
func NewPostgresStore(logger *slog.Logger, pg *database.Postgres) *PostgresStore {
	return &PostgresStore{logger: logger, db: pg.DBGetter}
}

// DeleteExpired removes the lease for key if it expired before now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, key string, now time.Time) error {
	tag, err := s.db(ctx).Exec(ctx,
		"DELETE FROM distributed_locks WHERE lock_key = $1 AND expires_at < $2", key, now)
	if err != nil {
		return fmt.Errorf("failed to delete expired lease: %w", err)
	}

	if tag.RowsAffected() > 0 {
		s.logger.InfoContext(ctx, "Removed expired lease", "lock_key", key)
	}
	return nil
}

// TryInsert inserts the lease unless a row for the key already exists.
func (s *PostgresStore) TryInsert(ctx context.Context, lease entities.Lease) (bool, error) {
	query := `INSERT INTO distributed_locks (lock_key, owner_id, acquired_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lock_key) DO NOTHING`

	tag, err := s.db(ctx).Exec(ctx, query,
		lease.LockKey,
		lease.OwnerID,
		lease.AcquiredAt,
		lease.ExpiresAt,
		lease.Active,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert lease: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteOwned removes the lease only when ownerID still holds it.
func (s *PostgresStore) DeleteOwned(ctx context.Context, key, ownerID string) (bool, error) {
	tag, err := s.db(ctx).Exec(ctx,
		"DELETE FROM distributed_locks WHERE lock_key = $1 AND owner_id = $2", key, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete owned lease: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
