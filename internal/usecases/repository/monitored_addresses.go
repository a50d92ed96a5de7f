package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/pkg/database"
)

type MonitoredAddressesRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewMonitoredAddressesRepository(logger *slog.Logger, pg *database.Postgres) *MonitoredAddressesRepository {
	return &MonitoredAddressesRepository{
		logger: logger,
		db:     pg.DBGetter,
	}
}

// ListActive returns every active monitored address.
func (r *MonitoredAddressesRepository) ListActive(ctx context.Context) ([]entities.MonitoredAddress, error) {
	query := `SELECT id, address, blockchain, client_id, organization_id, notes, active, created_at
                FROM monitored_addresses
               WHERE active = TRUE
               ORDER BY id`

	rows, err := r.db(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitored addresses: %w", err)
	}

	addresses, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.MonitoredAddress])
	if err != nil {
		return nil, fmt.Errorf("failed to collect monitored addresses: %w", err)
	}

	return addresses, nil
}

func (r *MonitoredAddressesRepository) FindByID(ctx context.Context, id int64) (*entities.MonitoredAddress, error) {
	query := `SELECT id, address, blockchain, client_id, organization_id, notes, active, created_at
                FROM monitored_addresses
               WHERE id = $1`

	rows, err := r.db(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitored address: %w", err)
	}

	address, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[entities.MonitoredAddress])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find monitored address %d: %w", id, err)
	}

	return address, nil
}

// Create inserts a monitored address and sets its id.
func (r *MonitoredAddressesRepository) Create(ctx context.Context, a *entities.MonitoredAddress) error {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO monitored_addresses (address, blockchain, client_id, organization_id, notes, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		a.Address, a.Blockchain, a.ClientID, a.OrganizationID, a.Notes, a.Active,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create monitored address: %w", err)
	}
	return nil
}
