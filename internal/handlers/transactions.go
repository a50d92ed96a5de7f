package handlers

import (
	"context"

	"github.com/sand/chain-compliance/backend/internal/aml"
	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/entities"
	"github.com/sand/chain-compliance/backend/internal/workers"
)

type TransactionService interface {
	ListForOrganization(ctx context.Context, filter entities.ComplianceTransactionFilter) ([]entities.ComplianceTransaction, error)
}

type RiskService interface {
	ScoreAddress(ctx context.Context, address string, analysisType amlentities.AnalysisType, opts ...aml.ScoreOption) (*amlentities.RiskScoringResult, error)
}

type Scheduler interface {
	Status() workers.Status
	TriggerManual(ctx context.Context, name string) error
}
