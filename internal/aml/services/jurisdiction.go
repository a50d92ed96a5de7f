package services

import (
	"math"
	"strings"

	amlentities "github.com/sand/chain-compliance/backend/internal/aml/entities"
)

// JurisdictionRisk оценивает риск по странам присутствия сущности.
// Пустой список дает значение по умолчанию 0.36.
func JurisdictionRisk(tables *RiskTables, countries []string) amlentities.RiskComponent {
	if len(countries) == 0 {
		return amlentities.RiskComponent{AggregateScore: amlentities.DefaultJurisdictionRisk}
	}

	factors := make([]amlentities.RiskFactor, 0, len(countries))
	var total float64

	for _, country := range countries {
		raw := amlentities.UnknownCountryRisk
		description := "unknown jurisdiction"

		if j, ok := tables.Jurisdiction(country); ok {
			raw = j.RiskScore
			description = ""
			// Штрафы FATF применяются при чтении, в справочнике хранится базовая оценка
			switch {
			case j.FATFBlack:
				raw += amlentities.FATFBlackPenalty
				description = "FATF black list"
			case j.FATFGray:
				raw += amlentities.FATFGrayPenalty
				description = "FATF gray list"
			}
		}

		score := amlentities.Normalize(math.Min(raw, amlentities.MaxRawScore))
		total += score
		factors = append(factors, amlentities.RiskFactor{
			Name:        strings.ToUpper(strings.TrimSpace(country)),
			Score:       score,
			Description: description,
		})
	}

	return amlentities.RiskComponent{
		Factors:        factors,
		AggregateScore: amlentities.Clamp01(total / float64(len(countries))),
	}
}
