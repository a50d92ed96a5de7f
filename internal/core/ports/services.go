package ports

//go:generate mockgen -source=services.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

// AttributionLookup resolves addresses to attributed entities in one batch.
// Addresses without attribution are absent from the result.
type AttributionLookup interface {
	Lookup(ctx context.Context, addresses []string) ([]entities.Attribution, error)
}

// CospendResolver maps addresses to the representative address of their cospend group.
// Addresses without a group are absent from the result.
type CospendResolver interface {
	Representatives(ctx context.Context, addresses []string) (map[string]string, error)
}

// EntityDirectory returns source-of-truth entity records. Unknown ids yield nil, nil.
type EntityDirectory interface {
	Get(ctx context.Context, entityID string) (*entities.EntityRecord, error)
	GetMany(ctx context.Context, entityIDs []string) (map[string]*entities.EntityRecord, error)
}

// RiskReferenceSource provides the tables the risk cache is built from.
type RiskReferenceSource interface {
	ListJurisdictions(ctx context.Context) ([]entities.JurisdictionRisk, error)
	ListEntityTypeRisks(ctx context.Context) (map[string]float64, error)
	ListTagRisks(ctx context.Context) (map[string]float64, error)
}

// TransactionFeed lists chain transactions for an address.
type TransactionFeed interface {
	// ListIncoming returns transactions paying address that are not in excludeIDs.
	ListIncoming(ctx context.Context, address string, excludeIDs map[string]struct{}, page entities.PageRequest) (*entities.FeedPage, error)
	// ListRecent returns the most recent transactions touching address in either direction.
	ListRecent(ctx context.Context, address string, limit int) ([]entities.FeedTransaction, error)
}

// OrganizationDirectory returns organization settings. Unknown ids yield nil, nil.
type OrganizationDirectory interface {
	Get(ctx context.Context, organizationID string) (*entities.Organization, error)
}
