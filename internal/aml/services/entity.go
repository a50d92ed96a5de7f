package services

import (
	"math"

	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
	"github.com/sand/chain-compliance/backend/internal/entities"
)

// EntityRisk оценивает риск сущности по типу, тегам, KYC и санкциям
func EntityRisk(tables *RiskTables, entity *entities.EntityRecord) amlentities.RiskComponent {
	if entity == nil {
		return amlentities.RiskComponent{}
	}

	typeRisk, ok := tables.EntityTypeRisk(entity.EntityType)
	if !ok {
		typeRisk = amlentities.UnknownTypeRisk
	}
	factors := []amlentities.RiskFactor{{
		Name:  "entity type: " + entity.EntityType,
		Score: amlentities.Normalize(typeRisk),
	}}

	var (
		tagTotal float64
		tagCount int
	)
	for _, tag := range entity.Tags {
		normalized := entities.NormalizeTag(tag)
		if normalized == entities.TagOFACSanctioned || normalized == "" {
			continue
		}
		risk, ok := tables.TagRisk(normalized)
		if !ok {
			risk = amlentities.UnknownTagRisk
		}
		tagTotal += risk
		tagCount++
		factors = append(factors, amlentities.RiskFactor{
			Name:  "tag: " + normalized,
			Score: amlentities.Normalize(risk),
		})
	}

	var combined float64
	if tagCount > 0 {
		combined = 0.5*typeRisk + 0.25*(tagTotal/float64(tagCount))
	} else {
		combined = 0.75 * typeRisk
	}

	if combined == 0 {
		combined = amlentities.ZeroEntityRisk
	}

	if entity.NoKYC {
		combined = math.Min(combined+amlentities.NoKYCPenalty, amlentities.MaxRawScore)
		factors = append(factors, amlentities.RiskFactor{
			Name:  amlentities.FactorNoKYC,
			Score: amlentities.Normalize(amlentities.NoKYCPenalty),
		})
	}

	if entity.IsSanctioned() {
		combined = amlentities.MaxRawScore
		factors = append(factors, amlentities.RiskFactor{
			Name:  amlentities.FactorOFAC,
			Score: 1,
		})
	}

	return amlentities.RiskComponent{
		Factors:        factors,
		AggregateScore: amlentities.Normalize(combined),
	}
}
