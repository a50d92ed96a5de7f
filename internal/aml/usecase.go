package aml

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/aml/services"
	"github.com/sand/chain-compliance/backend/internal/core/ports"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

// Config параметры движка оценки риска
type Config struct {
	Weights            amlentities.Weights
	RecentTransactions int
	// MaxHops и HopWeightDecay зарезервированы под обход графа контрагентов;
	// сейчас оценивается только первый хоп
	MaxHops        int
	HopWeightDecay float64
}

// RiskEngine считает юрисдикционный, сущностный и транзакционный риск адреса
type RiskEngine struct {
	logger       *slog.Logger
	cfg          Config
	cache        *services.RiskCache
	attributions ports.AttributionLookup
	directory    ports.EntityDirectory
	feed         ports.TransactionFeed
	txRisk       *services.TransactionRiskService
	now          func() time.Time
}

// NewRiskEngine создает движок. Веса проверяются при создании.
func NewRiskEngine(
	logger *slog.Logger,
	cfg Config,
	cache *services.RiskCache,
	attributions ports.AttributionLookup,
	directory ports.EntityDirectory,
	feed ports.TransactionFeed,
) (*RiskEngine, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.RecentTransactions <= 0 {
		cfg.RecentTransactions = ports.RecentTransactionsWindow
	}
	if cfg.MaxHops > 1 {
		logger.Warn("Multi-hop counterparty analysis is not supported, only the first hop is scored",
			"max_hops", cfg.MaxHops,
			"hop_weight_decay", cfg.HopWeightDecay)
	}

	return &RiskEngine{
		logger:       logger,
		cfg:          cfg,
		cache:        cache,
		attributions: attributions,
		directory:    directory,
		feed:         feed,
		txRisk:       services.NewTransactionRiskService(logger, attributions, directory),
		now:          time.Now,
	}, nil
}

// ScoreOption настраивает отдельный вызов оценки
type ScoreOption func(*scoreOptions)

type scoreOptions struct {
	prefetched  bool
	attribution *entities.Attribution
}

// WithAttribution передает заранее полученную атрибуцию адреса (nil означает,
// что атрибуции нет), чтобы не запрашивать ее повторно
func WithAttribution(a *entities.Attribution) ScoreOption {
	return func(o *scoreOptions) {
		o.prefetched = true
		o.attribution = a
	}
}

// Invalidate сбрасывает кеш справочников после их обновления
func (e *RiskEngine) Invalidate() {
	e.cache.Invalidate()
}

// ScoreAddress оценивает риск адреса
func (e *RiskEngine) ScoreAddress(ctx context.Context, address string, analysisType amlentities.AnalysisType, opts ...ScoreOption) (*amlentities.RiskScoringResult, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if analysisType != amlentities.AnalysisAddress && analysisType != amlentities.AnalysisCounterparty {
		return nil, fmt.Errorf("unsupported analysis type %q", analysisType)
	}

	var o scoreOptions
	for _, opt := range opts {
		opt(&o)
	}

	tables, err := e.cache.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk tables: %w", err)
	}

	attribution := o.attribution
	if !o.prefetched {
		attribution, err = e.lookupAttribution(ctx, address)
		if err != nil {
			return nil, err
		}
	}

	entity, err := e.resolveEntity(ctx, attribution)
	if err != nil {
		return nil, err
	}

	result := &amlentities.RiskScoringResult{
		Address:      address,
		AnalysisType: analysisType,
		Entity:       entity,
		ScoredAt:     e.now(),
	}

	// Для контрагента собственная история не запрашивается
	result.TransactionRisk = amlentities.RiskComponent{AggregateScore: amlentities.DefaultTransactionRisk}
	if analysisType == amlentities.AnalysisAddress {
		txs, err := e.feed.ListRecent(ctx, address, e.cfg.RecentTransactions)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent transactions: %w", err)
		}
		result.TransactionRisk, err = e.txRisk.Evaluate(ctx, tables, txs, address, entity)
		if err != nil {
			return nil, err
		}
	}

	if entity == nil {
		// Неатрибутированный адрес: юрисдикция и сущность не несут информации
		result.OverallRisk = amlentities.Clamp01(result.TransactionRisk.AggregateScore)
		return result, nil
	}

	result.JurisdictionRisk = services.JurisdictionRisk(tables, entity.Countries)
	result.EntityRisk = services.EntityRisk(tables, entity)

	w := e.cfg.Weights
	overall := w.Jurisdiction*result.JurisdictionRisk.AggregateScore +
		w.Entity*result.EntityRisk.AggregateScore +
		w.Transaction*result.TransactionRisk.AggregateScore

	if entity.IsSanctioned() {
		overall = 1
	}
	result.OverallRisk = amlentities.Clamp01(overall)

	e.logger.DebugContext(ctx, "Address scored",
		"address", address,
		"analysis_type", analysisType,
		"entity_id", entity.ID,
		"overall_risk", result.OverallRisk)

	return result, nil
}

func (e *RiskEngine) lookupAttribution(ctx context.Context, address string) (*entities.Attribution, error) {
	attributions, err := e.attributions.Lookup(ctx, []string{address})
	if err != nil {
		return nil, fmt.Errorf("failed to lookup attribution for %s: %w", address, err)
	}
	for i := range attributions {
		if attributions[i].Address == address {
			return &attributions[i], nil
		}
	}
	return nil, nil
}

// resolveEntity загружает сущность и применяет подмену на бенефициара
func (e *RiskEngine) resolveEntity(ctx context.Context, attribution *entities.Attribution) (*entities.EntityRecord, error) {
	if attribution == nil || attribution.EntityID == "" {
		return nil, nil
	}

	entity, err := e.directory.Get(ctx, attribution.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", attribution.EntityID, err)
	}

	return e.substituteBeneficialOwner(ctx, attribution, entity)
}

// substituteBeneficialOwner заменяет атрибутированную сущность на бенефициара,
// если он указан и отличается
func (e *RiskEngine) substituteBeneficialOwner(ctx context.Context, attribution *entities.Attribution, entity *entities.EntityRecord) (*entities.EntityRecord, error) {
	ownerID := attribution.BeneficialOwnerID
	if ownerID == "" || ownerID == attribution.EntityID {
		return entity, nil
	}

	owner, err := e.directory.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get beneficial owner %s: %w", ownerID, err)
	}
	if owner == nil {
		e.logger.WarnContext(ctx, "Beneficial owner not found, keeping attributed entity",
			"address", attribution.Address,
			"beneficial_owner_id", ownerID)
		return entity, nil
	}

	return owner, nil
}
