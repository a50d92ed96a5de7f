package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

// JurisdictionFetcher loads the full jurisdiction risk table from upstream.
type JurisdictionFetcher interface {
	FetchJurisdictions(ctx context.Context) ([]entities.JurisdictionRisk, error)
}

// JurisdictionStore replaces the stored jurisdiction table atomically.
type JurisdictionStore interface {
	ReplaceJurisdictions(ctx context.Context, jurisdictions []entities.JurisdictionRisk) error
}

// CacheInvalidator drops cached reference data.
type CacheInvalidator interface {
	Invalidate()
}

// ResyncService refreshes the reference tables the risk engine reads.
type ResyncService struct {
	logger *slog.Logger
	source JurisdictionFetcher
	store  JurisdictionStore
	cache  CacheInvalidator
}

func NewResyncService(logger *slog.Logger, source JurisdictionFetcher, store JurisdictionStore, cache CacheInvalidator) *ResyncService {
	return &ResyncService{
		logger: logger,
		source: source,
		store:  store,
		cache:  cache,
	}
}

// Run replaces the jurisdiction table with the upstream copy. Running it
// twice with the same upstream data leaves the same table.
func (s *ResyncService) Run(ctx context.Context) error {
	jurisdictions, err := s.source.FetchJurisdictions(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch jurisdictions: %w", err)
	}

	if err = s.store.ReplaceJurisdictions(ctx, jurisdictions); err != nil {
		return fmt.Errorf("failed to replace jurisdictions: %w", err)
	}

	s.cache.Invalidate()
	s.logger.InfoContext(ctx, "Reference data resynced", "jurisdictions", len(jurisdictions))
	return nil
}
