package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.openly.dev/pointy"

	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

// TransactionService serves organization listings of compliance transactions.
type TransactionService struct {
	logger       *slog.Logger
	transactions ComplianceTransactionRepository
	orgs         ports.OrganizationDirectory
	now          func() time.Time
}

// NewTransactionService creates a new compliance transaction service
func NewTransactionService(logger *slog.Logger, transactions ComplianceTransactionRepository, orgs ports.OrganizationDirectory) *TransactionService {
	return &TransactionService{
		logger:       logger,
		transactions: transactions,
		orgs:         orgs,
		now:          time.Now,
	}
}

// ListForOrganization returns the records matching filter. UNASSIGNED
// records of the listed set are handed to the organization's reviewer first.
func (ts *TransactionService) ListForOrganization(ctx context.Context, filter entities.ComplianceTransactionFilter) ([]entities.ComplianceTransaction, error) {
	if filter.OrganizationID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrOrganizationNotFound)
	}

	org, err := ts.orgs.Get(ctx, filter.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	if org == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrganizationNotFound, filter.OrganizationID)
	}

	listed, err := ts.transactions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliance transactions: %w", err)
	}

	if _, err = ts.AutoAssign(ctx, org, listed); err != nil {
		return nil, err
	}

	return listed, nil
}

// AutoAssign hands the UNASSIGNED records among listed to the organization's
// only active member and updates them in place. Organizations with zero or
// several active members are left alone. It returns the number of records
// assigned.
func (ts *TransactionService) AutoAssign(ctx context.Context, org *entities.Organization, listed []entities.ComplianceTransaction) (int, error) {
	members := org.ActiveMembers()
	if len(members) != 1 {
		return 0, nil
	}
	reviewer := members[0].UserID

	assigned := 0
	for i := range listed {
		if listed[i].Status != entities.StatusUnassigned {
			continue
		}

		t := listed[i]
		if prev := reviewerOf(&t); prev != "" {
			t.StatusHistory = append(t.StatusHistory, entities.StatusChange{
				Status:     t.Status,
				Timestamp:  t.UpdatedAt,
				ReviewerID: prev,
			})
		}
		t.ReviewerID = pointy.String(reviewer)

		var ok bool
		err := ts.transactions.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			ok, err = ts.transactions.AssignReviewer(ctx, &t)
			return err
		})
		if err != nil {
			return assigned, fmt.Errorf("failed to assign transaction %d: %w", t.ID, err)
		}

		// запись уже забрал параллельный запрос
		if !ok {
			continue
		}

		t.Status = entities.StatusUnreviewed
		t.UpdatedAt = ts.now()
		listed[i] = t
		assigned++
	}

	if assigned > 0 {
		ts.logger.InfoContext(ctx, "Compliance transactions auto-assigned",
			"organization_id", org.ID,
			"reviewer_id", reviewer,
			"count", assigned)
	}

	return assigned, nil
}
