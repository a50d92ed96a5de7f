package entities

import (
	"fmt"
	"math"
	"time"

	"github.com/sand/chain-compliance/backend/internal/entities"
)

// AnalysisType определяет глубину анализа адреса
type AnalysisType string

const (
	// AnalysisAddress полный анализ, включая последние транзакции адреса
	AnalysisAddress AnalysisType = "address"
	// AnalysisCounterparty скоринг первого хопа без истории самого контрагента
	AnalysisCounterparty AnalysisType = "counterparty"
)

// Стандартные значения, когда данных для оценки нет
const (
	DefaultJurisdictionRisk = 0.36
	DefaultTransactionRisk  = 0.15
	UnknownCountryRisk      = 35.99
	UnknownTypeRisk         = 35.99
	UnknownTagRisk          = 35.99
	ZeroEntityRisk          = 25.0
	NoKYCPenalty            = 25.0
	FATFBlackPenalty        = 30.0
	FATFGrayPenalty         = 15.0
	MaxRawScore             = 100.0
)

// Названия факторов
const (
	FactorMixedCounterparties = "mixed counterparty pattern"
	FactorSanctionedSender    = "sanctioned sender"
	FactorSanctionedReceiver  = "sanctioned receiver"
	FactorNoKYC               = "no kyc"
	FactorOFAC                = entities.TagOFACSanctioned
)

// RiskFactor отдельный вклад в оценку риска
type RiskFactor struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// RiskComponent одна из трех составляющих риска
type RiskComponent struct {
	Factors        []RiskFactor `json:"factors"`
	AggregateScore float64      `json:"aggregate_score"`
}

// RiskScoringResult результат оценки риска адреса
type RiskScoringResult struct {
	Address          string                 `json:"address"`
	AnalysisType     AnalysisType           `json:"analysis_type"`
	Entity           *entities.EntityRecord `json:"entity,omitempty"`
	JurisdictionRisk RiskComponent          `json:"jurisdiction_risk"`
	EntityRisk       RiskComponent          `json:"entity_risk"`
	TransactionRisk  RiskComponent          `json:"transaction_risk"`
	OverallRisk      float64                `json:"overall_risk"`
	ScoredAt         time.Time              `json:"scored_at"`
}

// Score возвращает общий риск в шкале 0..100
func (r *RiskScoringResult) Score() int {
	return int(math.Round(r.OverallRisk * 100))
}

// Weights веса составляющих общего риска
type Weights struct {
	Jurisdiction float64 `json:"jurisdiction"`
	Entity       float64 `json:"entity"`
	Transaction  float64 `json:"transaction"`
}

// DefaultWeights стандартные веса 0.4 / 0.4 / 0.2
func DefaultWeights() Weights {
	return Weights{Jurisdiction: 0.4, Entity: 0.4, Transaction: 0.2}
}

const weightsTolerance = 1e-9

// Validate проверяет, что веса неотрицательны и в сумме дают 1
func (w Weights) Validate() error {
	if w.Jurisdiction < 0 || w.Entity < 0 || w.Transaction < 0 {
		return fmt.Errorf("risk weights must be non-negative: %+v", w)
	}
	sum := w.Jurisdiction + w.Entity + w.Transaction
	if math.Abs(sum-1) > weightsTolerance {
		return fmt.Errorf("risk weights must sum to 1, got %.6f", sum)
	}
	return nil
}

// Normalize переводит сырую оценку 0..100 в диапазон 0..1
func Normalize(raw float64) float64 {
	return Clamp01(raw / MaxRawScore)
}

// Clamp01 ограничивает значение диапазоном 0..1
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
