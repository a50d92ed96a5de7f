package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/pkg/database"
)

// OrganizationsRepository reads organization settings and members.
type OrganizationsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewOrganizationsRepository(logger *slog.Logger, pg *database.Postgres) *OrganizationsRepository {
	return &OrganizationsRepository{
		logger: logger,
		db:     pg.DBGetter,
	}
}

// Get returns the organization with its members, or nil when it does not exist.
func (r *OrganizationsRepository) Get(ctx context.Context, organizationID string) (*entities.Organization, error) {
	var (
		org       entities.Organization
		threshold string
	)

	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, name, risk_score_threshold, transaction_threshold::text
		   FROM organizations
		  WHERE id = $1`, organizationID,
	).Scan(&org.ID, &org.Name, &org.RiskScoreThreshold, &threshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %s: %w", organizationID, err)
	}

	org.TransactionThreshold, err = decimal.NewFromString(threshold)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction threshold %q for organization %s: %w", threshold, organizationID, err)
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT user_id, role, active
		   FROM organization_members
		  WHERE organization_id = $1
		  ORDER BY user_id`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query organization members: %w", err)
	}

	org.Members, err = pgx.CollectRows(rows, pgx.RowToStructByName[entities.Member])
	if err != nil {
		return nil, fmt.Errorf("failed to collect organization members: %w", err)
	}

	return &org, nil
}
