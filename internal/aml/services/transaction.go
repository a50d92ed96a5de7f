package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

type side uint8

const (
	sideSender side = 1 << iota
	sideReceiver
)

// TransactionRiskService оценивает риск по контрагентам первого хопа
type TransactionRiskService struct {
	logger       *slog.Logger
	attributions ports.AttributionLookup
	directory    ports.EntityDirectory
}

// NewTransactionRiskService создает сервис оценки транзакционного риска
func NewTransactionRiskService(logger *slog.Logger, attributions ports.AttributionLookup, directory ports.EntityDirectory) *TransactionRiskService {
	return &TransactionRiskService{
		logger:       logger,
		attributions: attributions,
		directory:    directory,
	}
}

// Evaluate считает риск по транзакциям адреса self. Сущность самого адреса
// (selfEntity) исключается из усреднения.
func (s *TransactionRiskService) Evaluate(
	ctx context.Context,
	tables *RiskTables,
	txs []entities.FeedTransaction,
	self string,
	selfEntity *entities.EntityRecord,
) (amlentities.RiskComponent, error) {
	counterparties := collectCounterparties(txs, self)
	if len(counterparties) == 0 {
		return amlentities.RiskComponent{AggregateScore: amlentities.DefaultTransactionRisk}, nil
	}

	addresses := maps.Keys(counterparties)
	slices.Sort(addresses)

	attributions, err := s.attributions.Lookup(ctx, addresses)
	if err != nil {
		return amlentities.RiskComponent{}, fmt.Errorf("failed to lookup counterparty attributions: %w", err)
	}

	// адрес -> сущность, только для атрибутированных адресов
	addressEntity := make(map[string]string, len(attributions))
	entityIDs := make(map[string]struct{}, len(attributions))
	for _, a := range attributions {
		if a.EntityID == "" {
			continue
		}
		addressEntity[a.Address] = a.EntityID
		entityIDs[a.EntityID] = struct{}{}
	}

	if len(entityIDs) == 0 {
		return amlentities.RiskComponent{AggregateScore: amlentities.DefaultTransactionRisk}, nil
	}

	ids := maps.Keys(entityIDs)
	slices.Sort(ids)

	records, err := s.directory.GetMany(ctx, ids)
	if err != nil {
		return amlentities.RiskComponent{}, fmt.Errorf("failed to load counterparty entities: %w", err)
	}

	var (
		total       float64
		scored      int
		sanctioned  bool
		entityTypes = make(map[string]struct{})
		factors     []amlentities.RiskFactor
	)

	for _, id := range ids {
		record := records[id]
		if record == nil {
			continue
		}
		if selfEntity != nil && record.ID == selfEntity.ID {
			continue
		}

		total += EntityRisk(tables, record).AggregateScore
		scored++
		if record.EntityType != "" {
			entityTypes[record.EntityType] = struct{}{}
		}
		if record.IsSanctioned() {
			sanctioned = true
		}
	}

	if scored == 0 {
		return amlentities.RiskComponent{AggregateScore: amlentities.DefaultTransactionRisk}, nil
	}

	average := amlentities.Clamp01(total / float64(scored))

	if len(entityTypes) > 1 {
		factors = append(factors, amlentities.RiskFactor{
			Name:        amlentities.FactorMixedCounterparties,
			Score:       average,
			Description: fmt.Sprintf("%d distinct counterparty entity types", len(entityTypes)),
		})
	}

	if !sanctioned {
		return amlentities.RiskComponent{Factors: factors, AggregateScore: average}, nil
	}

	for _, address := range addresses {
		record := records[addressEntity[address]]
		if !record.IsSanctioned() {
			continue
		}
		if selfEntity != nil && record.ID == selfEntity.ID {
			continue
		}
		if counterparties[address]&sideSender != 0 {
			factors = append(factors, amlentities.RiskFactor{
				Name:        amlentities.FactorSanctionedSender,
				Score:       1,
				Description: address,
			})
		}
		if counterparties[address]&sideReceiver != 0 {
			factors = append(factors, amlentities.RiskFactor{
				Name:        amlentities.FactorSanctionedReceiver,
				Score:       1,
				Description: address,
			})
		}
	}

	s.logger.InfoContext(ctx, "Sanctioned counterparty found", "address", self)

	return amlentities.RiskComponent{Factors: factors, AggregateScore: 1}, nil
}

// collectCounterparties собирает уникальные адреса входов и выходов, кроме self
func collectCounterparties(txs []entities.FeedTransaction, self string) map[string]side {
	result := make(map[string]side)
	for _, t := range txs {
		for _, in := range t.Inputs {
			if in.Address != "" && in.Address != self {
				result[in.Address] |= sideSender
			}
		}
		for _, out := range t.Outputs {
			if out.Address != "" && out.Address != self {
				result[out.Address] |= sideReceiver
			}
		}
	}
	return result
}
